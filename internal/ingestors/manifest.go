package ingestors

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/ingestkit"
	qb "github.com/nbavault/vault/internal/platform/querybuilder"
	"github.com/nbavault/vault/internal/sourceadapters/bulkarchive"
	"github.com/nbavault/vault/internal/sourceadapters/htmlarchive"
	"github.com/nbavault/vault/internal/sourceadapters/scraper"
	"github.com/nbavault/vault/internal/sourceadapters/statsapi"
)

// BulkSourceURLs names the archive URL to use for each bulk entity
// kind, one field per kind. There is no built-in default: an empty
// field leaves that ingestor without a URL unless Params.SourceURL
// supplies one.
type BulkSourceURLs struct {
	Elo               string
	Raptor            string
	PreModernBoxScore string
	PreAssembledPBP   string
}

// Resources bundles every shared collaborator the manifest wires into
// ingestor constructors. One Resources is built once per process and
// handed to Build.
type Resources struct {
	DB          *sqlx.DB
	Deps        Deps
	StatsAPI    *statsapi.Client
	HTMLArchive *htmlarchive.Client
	BulkArchive *bulkarchive.Client
	Scraper     *scraper.Client
	BulkURLs    BulkSourceURLs
}

func rosterLookup(db *sqlx.DB) func(ctx context.Context) (map[int]string, error) {
	return func(ctx context.Context) (map[int]string, error) {
		query, args, err := qb.Select("player_id", "first_name", "last_name").From("players").ToSQL()
		if err != nil {
			return nil, err
		}
		rows, err := db.QueryxContext(ctx, db.Rebind(query), args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make(map[int]string)
		for rows.Next() {
			var id int
			var first, last string
			if err := rows.Scan(&id, &first, &last); err != nil {
				return nil, err
			}
			out[id] = first + " " + last
		}
		return out, rows.Err()
	}
}

// Build registers every concrete ingestor the backfill recognizes into
// a fresh registry, in the fixed stage order the orchestrator expects.
// Registration is explicit and centralized here rather than via
// self-registering package init() functions, so enumeration order
// never depends on import order.
func Build(res Resources) *ingestkit.Registry {
	reg := ingestkit.NewRegistry()

	// stage 0: bulk archives
	reg.Register("bulk_elo", func() ingestkit.Ingestor {
		return NewEloIngestor(res.BulkArchive, res.DB, res.BulkURLs.Elo)
	})
	reg.Register("bulk_raptor", func() ingestkit.Ingestor {
		return NewRaptorIngestor(res.BulkArchive, res.DB, res.BulkURLs.Raptor)
	})
	reg.Register("bulk_pre_modern_box_score", func() ingestkit.Ingestor {
		return NewPreModernBoxScoreIngestor(res.BulkArchive, res.DB, res.BulkURLs.PreModernBoxScore)
	})
	reg.Register("bulk_pre_assembled_pbp", func() ingestkit.Ingestor {
		return NewPreAssembledPBPIngestor(res.BulkArchive, res.DB, res.BulkURLs.PreAssembledPBP)
	})

	// stage 1: foundation
	reg.Register("season", func() ingestkit.Ingestor {
		return NewSeasonIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("franchise", func() ingestkit.Ingestor {
		return NewFranchiseIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("player", func() ingestkit.Ingestor {
		return NewPlayerIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("draft", func() ingestkit.Ingestor {
		return NewDraftIngestor(res.StatsAPI, res.DB, res.Deps)
	})

	// stage 2: season-scoped
	reg.Register("schedule", func() ingestkit.Ingestor {
		return NewScheduleIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("lineup", func() ingestkit.Ingestor {
		return NewLineupIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("team_advanced", func() ingestkit.Ingestor {
		return NewTeamAdvancedIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("coach", func() ingestkit.Ingestor {
		return NewCoachIngestor(res.StatsAPI, res.DB, res.Deps)
	})

	// stage 3: per-game
	reg.Register("official", func() ingestkit.Ingestor {
		return NewOfficialIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("box_score_traditional", func() ingestkit.Ingestor {
		return NewBoxScoreTraditionalIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("box_score_advanced", func() ingestkit.Ingestor {
		return NewBoxScoreAdvancedIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("box_score_hustle", func() ingestkit.Ingestor {
		return NewBoxScoreHustleIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("team_other_stats", func() ingestkit.Ingestor {
		return NewTeamOtherStatsIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("play_by_play", func() ingestkit.Ingestor {
		return NewPlayByPlayIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("shot_chart", func() ingestkit.Ingestor {
		return NewShotChartIngestor(res.StatsAPI, res.DB, res.Deps)
	})

	// stage 4: per-player
	reg.Register("player_bio", func() ingestkit.Ingestor {
		return NewPlayerBioIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("player_season_stats", func() ingestkit.Ingestor {
		return NewPlayerSeasonStatsIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("award", func() ingestkit.Ingestor {
		return NewAwardIngestor(res.StatsAPI, res.DB, res.Deps)
	})
	reg.Register("tracking", func() ingestkit.Ingestor {
		return NewTrackingIngestor(res.StatsAPI, res.DB, res.Deps)
	})

	// stage 5: scrapers and stubs
	reg.Register("injury", func() ingestkit.Ingestor {
		return NewInjuryIngestor(res.Scraper, res.DB, res.Deps, scraper.BackendESPN, rosterLookup(res.DB))
	})
	reg.Register("contract", func() ingestkit.Ingestor {
		return NewContractIngestor()
	})

	return reg
}

// Stages lists every entity kind grouped by the orchestrator stage
// that drives it, in strict dependency order: a later stage's rows
// may reference an earlier stage's rows as a foreign key, so stage
// N+1 never starts until stage N has drained.
var Stages = [][]string{
	{"bulk_elo", "bulk_raptor", "bulk_pre_modern_box_score", "bulk_pre_assembled_pbp"},
	{"season", "franchise", "player", "draft"},
	{"schedule", "lineup", "team_advanced", "coach"},
	{"official", "box_score_traditional", "box_score_advanced", "box_score_hustle", "team_other_stats", "play_by_play", "shot_chart"},
	{"player_bio", "player_season_stats", "award", "tracking"},
	{"injury", "contract"},
}
