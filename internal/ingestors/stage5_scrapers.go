package ingestors

import (
	"context"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/sourceadapters/scraper"
)

// injuryRowPattern pulls "Name — Status — Note" triples out of the
// scraped injury report page. The two backends share this loose shape
// closely enough that one pattern covers both; a backend-specific
// parser would be the next step if that stops holding.
var injuryRowPattern = regexp.MustCompile(`(?m)^([A-Za-z.' -]{3,40})\s*[-—]\s*(Out|Doubtful|Questionable|Probable|Day-To-Day)\s*[-—]\s*(.*)$`)

type injuryRow struct {
	PlayerID int    `db:"player_id"`
	Status   string `db:"status"`
	Note     string `db:"note"`
}

type scrapedInjury struct {
	name   string
	status string
	note   string
}

// InjuryIngestor scrapes the current injury report and fuzzy-matches
// each scraped name against the player roster, since scrapers never
// expose a stable player id directly. Unmatched names are quarantined
// rather than dropped silently.
type InjuryIngestor struct {
	client  *scraper.Client
	db      *sqlx.DB
	deps    Deps
	backend scraper.Backend
	roster  func(ctx context.Context) (map[int]string, error)
}

func NewInjuryIngestor(client *scraper.Client, db *sqlx.DB, deps Deps, backend scraper.Backend, roster func(ctx context.Context) (map[int]string, error)) *InjuryIngestor {
	return &InjuryIngestor{client: client, db: db, deps: deps, backend: backend, roster: roster}
}

func (g *InjuryIngestor) EntityKind() string { return "injury" }
func (g *InjuryIngestor) Source(params ingestkit.Params) string {
	return "scraper:" + string(g.backendFor(params))
}

// backendFor picks params.Source when set, else the backend the
// ingestor was built with.
func (g *InjuryIngestor) backendFor(params ingestkit.Params) scraper.Backend {
	if params.Source != "" {
		return scraper.Backend(params.Source)
	}
	return g.backend
}

func (g *InjuryIngestor) Fetch(ctx context.Context, _ string, params ingestkit.Params) (any, error) {
	raw, err := g.client.FetchCurrent(ctx, g.backendFor(params))
	if err != nil {
		return nil, err
	}

	matches := injuryRowPattern.FindAllStringSubmatch(string(raw), -1)
	if len(matches) == 0 {
		return nil, ingestkit.ErrSourceEmpty
	}

	scraped := make([]scrapedInjury, 0, len(matches))
	for _, m := range matches {
		scraped = append(scraped, scrapedInjury{
			name:   strings.TrimSpace(m[1]),
			status: m[2],
			note:   strings.TrimSpace(m[3]),
		})
	}
	return scraped, nil
}

func (g *InjuryIngestor) Validate(raw any) ([]any, error) {
	return toAnySlice(raw.([]scrapedInjury)), nil
}

// Upsert resolves each scraped name against the roster by closest
// fuzzy match, quarantining names with no roster candidate rather
// than guessing and writing a wrong player id.
func (g *InjuryIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	scraped := fromAnySlice[scrapedInjury](rows)
	if len(scraped) == 0 {
		return 0, nil
	}

	roster, err := g.roster(ctx)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(roster))
	idByName := make(map[string]int, len(roster))
	for id, name := range roster {
		names = append(names, name)
		idByName[name] = id
	}

	resolved := make([]injuryRow, 0, len(scraped))
	for _, s := range scraped {
		match := fuzzy.RankFind(s.name, names)
		best, ok := bestRosterMatch(s.name, match)
		if !ok {
			if g.deps.Quarantine != nil {
				_, _ = g.deps.Quarantine.Write(g.EntityKind(), s.name, s, []error{fieldError{Field: "name", Msg: "no roster match within similarity cutoff"}})
			}
			continue
		}
		resolved = append(resolved, injuryRow{PlayerID: idByName[best], Status: s.status, Note: s.note})
	}

	return upsertMany(ctx, conn, g.db, "injuries",
		[]string{"player_id"}, []string{"status", "note"}, resolved)
}

// injuryNameSimilarityCutoff caps the Levenshtein distance, as a
// fraction of the scraped name's length, a roster candidate may have
// and still be accepted. Fixed by design, not inferred from data: a
// looser cutoff risks silently attaching a report to the wrong player.
const injuryNameSimilarityCutoff = 0.2

// bestRosterMatch picks the closest roster candidate out of a
// fuzzy.RankFind result set, rejecting it if its edit distance exceeds
// injuryNameSimilarityCutoff relative to the scraped name's length.
func bestRosterMatch(name string, ranks fuzzy.Ranks) (string, bool) {
	if len(ranks) == 0 {
		return "", false
	}
	best := ranks[0]
	for _, candidate := range ranks {
		if candidate.Distance < best.Distance {
			best = candidate
		}
	}
	if len(name) == 0 {
		return "", false
	}
	if float64(best.Distance)/float64(len(name)) > injuryNameSimilarityCutoff {
		return "", false
	}
	return best.Target, true
}

// ContractIngestor is registered for enumeration completeness: salary
// and contract data requires a licensed feed this module does not
// have access to, so every stage returns ErrNotImplemented rather than
// silently omitting the entity kind from the catalog.
type ContractIngestor struct{}

func NewContractIngestor() *ContractIngestor { return &ContractIngestor{} }

func (g *ContractIngestor) EntityKind() string { return "contract" }
func (g *ContractIngestor) Source(ingestkit.Params) string { return "unavailable" }

func (g *ContractIngestor) Fetch(context.Context, string, ingestkit.Params) (any, error) {
	return nil, ingestkit.ErrNotImplemented
}

func (g *ContractIngestor) Validate(any) ([]any, error) {
	return nil, ingestkit.ErrNotImplemented
}

func (g *ContractIngestor) Upsert(context.Context, ingestkit.Conn, []any) (int, error) {
	return 0, ingestkit.ErrNotImplemented
}
