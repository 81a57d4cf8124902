package ingestors

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/era"
	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/sourceadapters/statsapi"
)

// --- season -----------------------------------------------------------

type seasonRow struct {
	SeasonID  int    `db:"season_id"`
	LeagueID  string `db:"league_id"`
	Label     string `db:"label"`
}

type seasonEnvelope struct {
	Seasons []struct {
		StartYear int    `json:"start_year"`
		Label     string `json:"label"`
	} `json:"seasons"`
}

// SeasonIngestor loads the season catalog for a league. It has no era
// gate: seasons are the thing era gates are measured against.
type SeasonIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewSeasonIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *SeasonIngestor {
	return &SeasonIngestor{client: client, db: db, deps: deps}
}

func (g *SeasonIngestor) EntityKind() string { return "season" }
func (g *SeasonIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *SeasonIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	var env seasonEnvelope
	if err := g.client.Call(ctx, "/leagueseasons", map[string]string{"LeagueID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		leagueID string
		env      seasonEnvelope
	}{leagueID: entityID, env: env}, nil
}

func (g *SeasonIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		leagueID string
		env      seasonEnvelope
	})

	rows := make([]seasonRow, 0, len(payload.env.Seasons))
	for _, s := range payload.env.Seasons {
		if s.StartYear <= 0 {
			continue
		}
		rows = append(rows, seasonRow{SeasonID: s.StartYear, LeagueID: payload.leagueID, Label: s.Label})
	}
	return toAnySlice(rows), nil
}

func (g *SeasonIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	for _, r := range fromAnySlice[seasonRow](rows) {
		if err := g.deps.FK.Require(ctx, nil, "leagues", "league_id", r.LeagueID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "seasons", []string{"season_id"}, []string{"league_id", "label"}, fromAnySlice[seasonRow](rows))
}

// --- franchise ----------------------------------------------------------

type franchiseRow struct {
	FranchiseID string `db:"franchise_id"`
	LeagueID    string `db:"league_id"`
	Name        string `db:"name"`
}

type franchiseEnvelope struct {
	Franchises []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"franchises"`
}

// FranchiseIngestor loads the all-time franchise catalog.
type FranchiseIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewFranchiseIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *FranchiseIngestor {
	return &FranchiseIngestor{client: client, db: db, deps: deps}
}

func (g *FranchiseIngestor) EntityKind() string { return "franchise" }
func (g *FranchiseIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *FranchiseIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	var env franchiseEnvelope
	if err := g.client.Call(ctx, "/franchisehistory", map[string]string{"LeagueID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		leagueID string
		env      franchiseEnvelope
	}{leagueID: entityID, env: env}, nil
}

func (g *FranchiseIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		leagueID string
		env      franchiseEnvelope
	})

	candidates := payload.env.Franchises
	rows := quarantineRows(g.deps.Quarantine, g.EntityKind(), payload.leagueID, candidates, func(f struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}) error {
		if _, err := requireNonEmpty("id", f.ID); err != nil {
			return err
		}
		if _, err := requireNonEmpty("name", f.Name); err != nil {
			return err
		}
		return nil
	})

	out := make([]franchiseRow, 0, len(rows))
	for _, r := range rows {
		f := r.(struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		})
		out = append(out, franchiseRow{FranchiseID: f.ID, LeagueID: payload.leagueID, Name: f.Name})
	}
	return toAnySlice(out), nil
}

func (g *FranchiseIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	for _, r := range fromAnySlice[franchiseRow](rows) {
		if err := g.deps.FK.Require(ctx, nil, "leagues", "league_id", r.LeagueID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "franchises", []string{"franchise_id"}, []string{"league_id", "name"}, fromAnySlice[franchiseRow](rows))
}

// --- player ---------------------------------------------------------------

type playerRow struct {
	PlayerID  int    `db:"player_id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	BirthDate string `db:"birth_date"`
}

type playerEnvelope struct {
	Players []struct {
		ID        int    `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		BirthDate string `json:"birth_date"`
	} `json:"players"`
}

// PlayerIngestor loads the all-time player index.
type PlayerIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewPlayerIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *PlayerIngestor {
	return &PlayerIngestor{client: client, db: db, deps: deps}
}

func (g *PlayerIngestor) EntityKind() string { return "player" }
func (g *PlayerIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *PlayerIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	var env playerEnvelope
	if err := g.client.Call(ctx, "/commonallplayers", map[string]string{"LeagueID": entityID}, &env); err != nil {
		return nil, err
	}
	return env, nil
}

func (g *PlayerIngestor) Validate(raw any) ([]any, error) {
	env := raw.(playerEnvelope)

	rows := make([]playerRow, 0, len(env.Players))
	for _, p := range env.Players {
		if p.ID <= 0 {
			if g.deps.Quarantine != nil {
				_, _ = g.deps.Quarantine.Write(g.EntityKind(), "bad_id", p, []error{fieldError{Field: "id", Msg: "must be a positive integer"}})
			}
			continue
		}
		if _, err := requireNonEmpty("last_name", p.LastName); err != nil {
			if g.deps.Quarantine != nil {
				_, _ = g.deps.Quarantine.Write(g.EntityKind(), fmt.Sprintf("%d", p.ID), p, []error{err})
			}
			continue
		}
		rows = append(rows, playerRow{PlayerID: p.ID, FirstName: p.FirstName, LastName: p.LastName, BirthDate: p.BirthDate})
	}
	return toAnySlice(rows), nil
}

func (g *PlayerIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return upsertMany(ctx, conn, g.db, "players", []string{"player_id"}, []string{"first_name", "last_name", "birth_date"}, fromAnySlice[playerRow](rows))
}

// --- draft ------------------------------------------------------------

type draftPickRow struct {
	SeasonID    int    `db:"season_id"`
	RoundNumber int    `db:"round_number"`
	PickNumber  int    `db:"pick_number"`
	PlayerID    int    `db:"player_id"`
	FranchiseID string `db:"franchise_id"`
}

type draftEnvelope struct {
	Picks []struct {
		Round       int    `json:"round"`
		Pick        int    `json:"pick"`
		PlayerID    int    `json:"player_id"`
		FranchiseID string `json:"franchise_id"`
	} `json:"picks"`
}

// DraftIngestor loads one season's draft board. Era gate:
// draft-combine measurables are gated separately (2000+); the draft
// pick list itself is unrestricted back to league founding.
type DraftIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewDraftIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *DraftIngestor {
	return &DraftIngestor{client: client, db: db, deps: deps}
}

func (g *DraftIngestor) EntityKind() string { return "draft" }
func (g *DraftIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *DraftIngestor) Fetch(ctx context.Context, entityID string, params ingestkit.Params) (any, error) {
	if params.Scope == "draft_combine" {
		if err := checkEra(era.FamilyDraftCombine, params.Season); err != nil {
			return nil, err
		}
	}

	year, err := seasonStartYear(params.Season)
	if err != nil {
		return nil, err
	}

	var env draftEnvelope
	if err := g.client.Call(ctx, "/draftboard", map[string]string{"Season": fmt.Sprintf("%d", year)}, &env); err != nil {
		return nil, err
	}
	return struct {
		seasonID int
		env      draftEnvelope
	}{seasonID: year, env: env}, nil
}

func (g *DraftIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		seasonID int
		env      draftEnvelope
	})

	rows := make([]draftPickRow, 0, len(payload.env.Picks))
	for _, p := range payload.env.Picks {
		if p.Round <= 0 || p.Pick <= 0 || p.PlayerID <= 0 {
			continue
		}
		rows = append(rows, draftPickRow{
			SeasonID:    payload.seasonID,
			RoundNumber: p.Round,
			PickNumber:  p.Pick,
			PlayerID:    p.PlayerID,
			FranchiseID: p.FranchiseID,
		})
	}
	return toAnySlice(rows), nil
}

func (g *DraftIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[draftPickRow](rows)
	for _, r := range typed {
		if err := g.deps.FK.Require(ctx, nil, "players", "player_id", fmt.Sprintf("%d", r.PlayerID)); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "draft_picks",
		[]string{"season_id", "round_number", "pick_number"},
		[]string{"player_id", "franchise_id"}, typed)
}
