package ingestors

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/sourceadapters/statsapi"
)

// --- schedule (games) ------------------------------------------------

type gameRow struct {
	GameID      string `db:"game_id"`
	SeasonID    int    `db:"season_id"`
	HomeTeamID  int    `db:"home_team_id"`
	AwayTeamID  int    `db:"away_team_id"`
	GameDate    string `db:"game_date"`
}

type scheduleEnvelope struct {
	Games []struct {
		GameID     string `json:"game_id"`
		HomeTeamID int    `json:"home_team_id"`
		AwayTeamID int    `json:"away_team_id"`
		GameDate   string `json:"game_date"`
	} `json:"games"`
}

// ScheduleIngestor loads one season's full game schedule.
type ScheduleIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewScheduleIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *ScheduleIngestor {
	return &ScheduleIngestor{client: client, db: db, deps: deps}
}

func (g *ScheduleIngestor) EntityKind() string { return "schedule" }
func (g *ScheduleIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *ScheduleIngestor) Fetch(ctx context.Context, entityID string, params ingestkit.Params) (any, error) {
	year, err := seasonStartYear(entityID)
	if err != nil {
		return nil, err
	}
	var env scheduleEnvelope
	q := map[string]string{"Season": fmt.Sprintf("%d", year), "SeasonType": params.SeasonType}
	if err := g.client.Call(ctx, "/schedule", q, &env); err != nil {
		return nil, err
	}
	return struct {
		seasonID int
		env      scheduleEnvelope
	}{seasonID: year, env: env}, nil
}

func (g *ScheduleIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		seasonID int
		env      scheduleEnvelope
	})

	rows := make([]gameRow, 0, len(payload.env.Games))
	for _, gm := range payload.env.Games {
		if _, err := requireNonEmpty("game_id", gm.GameID); err != nil {
			if g.deps.Quarantine != nil {
				_, _ = g.deps.Quarantine.Write(g.EntityKind(), gm.GameID, gm, []error{err})
			}
			continue
		}
		rows = append(rows, gameRow{
			GameID:     gm.GameID,
			SeasonID:   payload.seasonID,
			HomeTeamID: gm.HomeTeamID,
			AwayTeamID: gm.AwayTeamID,
			GameDate:   gm.GameDate,
		})
	}
	return toAnySlice(rows), nil
}

func (g *ScheduleIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[gameRow](rows)
	for _, r := range typed {
		if err := g.deps.FK.Require(ctx, nil, "seasons", "season_id", fmt.Sprintf("%d", r.SeasonID)); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "games",
		[]string{"game_id"}, []string{"season_id", "home_team_id", "away_team_id", "game_date"}, typed)
}

// --- lineups (per season) ----------------------------------------------

type lineupRow struct {
	Fingerprint string `db:"fingerprint"`
	TeamID      int    `db:"team_id"`
	SeasonID    int    `db:"season_id"`
	Player1     int    `db:"player1_id"`
	Player2     int    `db:"player2_id"`
	Player3     int    `db:"player3_id"`
	Player4     int    `db:"player4_id"`
	Player5     int    `db:"player5_id"`
}

type lineupEnvelope struct {
	Lineups []struct {
		TeamID     int   `json:"team_id"`
		PlayerIDs  [5]int `json:"player_ids"`
	} `json:"lineups"`
}

// LineupIngestor loads the season's five-man lineup combinations.
// Era-gated to the stats API's lineup coverage window (1996+).
type LineupIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewLineupIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *LineupIngestor {
	return &LineupIngestor{client: client, db: db, deps: deps}
}

func (g *LineupIngestor) EntityKind() string { return "lineup" }
func (g *LineupIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *LineupIngestor) Fetch(ctx context.Context, entityID string, params ingestkit.Params) (any, error) {
	if err := checkEra(statsAPICoreFamily, entityID); err != nil {
		return nil, err
	}
	year, err := seasonStartYear(entityID)
	if err != nil {
		return nil, err
	}
	var env lineupEnvelope
	if err := g.client.Call(ctx, "/lineups", map[string]string{"Season": fmt.Sprintf("%d", year)}, &env); err != nil {
		return nil, err
	}
	return struct {
		seasonID int
		env      lineupEnvelope
	}{seasonID: year, env: env}, nil
}

func lineupFingerprint(teamID int, ids [5]int) string {
	return fmt.Sprintf("%d:%d-%d-%d-%d-%d", teamID, ids[0], ids[1], ids[2], ids[3], ids[4])
}

func (g *LineupIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		seasonID int
		env      lineupEnvelope
	})

	rows := make([]lineupRow, 0, len(payload.env.Lineups))
	for _, l := range payload.env.Lineups {
		if !distinctFive(l.PlayerIDs) {
			if g.deps.Quarantine != nil {
				_, _ = g.deps.Quarantine.Write(g.EntityKind(), fmt.Sprintf("%d", l.TeamID), l,
					[]error{fieldError{Field: "player_ids", Msg: "the five player ids must be distinct"}})
			}
			continue
		}
		rows = append(rows, lineupRow{
			Fingerprint: lineupFingerprint(l.TeamID, l.PlayerIDs),
			TeamID:      l.TeamID,
			SeasonID:    payload.seasonID,
			Player1:     l.PlayerIDs[0], Player2: l.PlayerIDs[1], Player3: l.PlayerIDs[2],
			Player4: l.PlayerIDs[3], Player5: l.PlayerIDs[4],
		})
	}
	return toAnySlice(rows), nil
}

func distinctFive(ids [5]int) bool {
	seen := make(map[int]struct{}, 5)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

func (g *LineupIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return upsertMany(ctx, conn, g.db, "lineups",
		[]string{"fingerprint"},
		[]string{"team_id", "season_id", "player1_id", "player2_id", "player3_id", "player4_id", "player5_id"},
		fromAnySlice[lineupRow](rows))
}

// --- team advanced stats (per season) ----------------------------------

type teamAdvancedRow struct {
	TeamID     int     `db:"team_id"`
	SeasonID   int     `db:"season_id"`
	OffRating  float64 `db:"off_rating"`
	DefRating  float64 `db:"def_rating"`
	Pace       float64 `db:"pace"`
}

type teamAdvancedEnvelope struct {
	Teams []struct {
		TeamID    int     `json:"team_id"`
		OffRating float64 `json:"off_rating"`
		DefRating float64 `json:"def_rating"`
		Pace      float64 `json:"pace"`
	} `json:"teams"`
}

// TeamAdvancedIngestor loads team advanced metrics for a season,
// era-gated to 1996+ like the rest of the stats-API core family.
type TeamAdvancedIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewTeamAdvancedIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *TeamAdvancedIngestor {
	return &TeamAdvancedIngestor{client: client, db: db, deps: deps}
}

func (g *TeamAdvancedIngestor) EntityKind() string { return "team_advanced" }
func (g *TeamAdvancedIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *TeamAdvancedIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	if err := checkEra(statsAPICoreFamily, entityID); err != nil {
		return nil, err
	}
	year, err := seasonStartYear(entityID)
	if err != nil {
		return nil, err
	}
	var env teamAdvancedEnvelope
	if err := g.client.Call(ctx, "/teamadvanced", map[string]string{"Season": fmt.Sprintf("%d", year)}, &env); err != nil {
		return nil, err
	}
	return struct {
		seasonID int
		env      teamAdvancedEnvelope
	}{seasonID: year, env: env}, nil
}

func (g *TeamAdvancedIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		seasonID int
		env      teamAdvancedEnvelope
	})

	rows := make([]teamAdvancedRow, 0, len(payload.env.Teams))
	for _, t := range payload.env.Teams {
		rows = append(rows, teamAdvancedRow{
			TeamID: t.TeamID, SeasonID: payload.seasonID,
			OffRating: t.OffRating, DefRating: t.DefRating, Pace: t.Pace,
		})
	}
	return toAnySlice(rows), nil
}

func (g *TeamAdvancedIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[teamAdvancedRow](rows)
	for _, r := range typed {
		if err := g.deps.FK.Require(ctx, nil, "teams", "team_id", fmt.Sprintf("%d", r.TeamID)); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "team_advanced_stats",
		[]string{"team_id", "season_id"}, []string{"off_rating", "def_rating", "pace"}, typed)
}

// --- coaches (per season) ----------------------------------------------

type coachRow struct {
	CoachID     int    `db:"coach_id"`
	SeasonID    int    `db:"season_id"`
	FranchiseID string `db:"franchise_id"`
	FullName    string `db:"full_name"`
}

type coachEnvelope struct {
	Coaches []struct {
		CoachID     int    `json:"coach_id"`
		FranchiseID string `json:"franchise_id"`
		FullName    string `json:"full_name"`
	} `json:"coaches"`
}

// CoachIngestor loads a season's head/assistant coach roster.
type CoachIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewCoachIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *CoachIngestor {
	return &CoachIngestor{client: client, db: db, deps: deps}
}

func (g *CoachIngestor) EntityKind() string { return "coach" }
func (g *CoachIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *CoachIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	year, err := seasonStartYear(entityID)
	if err != nil {
		return nil, err
	}
	var env coachEnvelope
	if err := g.client.Call(ctx, "/coaches", map[string]string{"Season": fmt.Sprintf("%d", year)}, &env); err != nil {
		return nil, err
	}
	return struct {
		seasonID int
		env      coachEnvelope
	}{seasonID: year, env: env}, nil
}

func (g *CoachIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		seasonID int
		env      coachEnvelope
	})

	rows := make([]coachRow, 0, len(payload.env.Coaches))
	for _, c := range payload.env.Coaches {
		if _, err := requireNonEmpty("full_name", c.FullName); err != nil {
			continue
		}
		rows = append(rows, coachRow{CoachID: c.CoachID, SeasonID: payload.seasonID, FranchiseID: c.FranchiseID, FullName: c.FullName})
	}
	return toAnySlice(rows), nil
}

func (g *CoachIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return upsertMany(ctx, conn, g.db, "coaches",
		[]string{"coach_id", "season_id"}, []string{"franchise_id", "full_name"}, fromAnySlice[coachRow](rows))
}
