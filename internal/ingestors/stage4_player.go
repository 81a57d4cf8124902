package ingestors

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/era"
	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/sourceadapters/statsapi"
)

func requirePlayer(ctx context.Context, deps Deps, playerID int) error {
	return deps.FK.Require(ctx, nil, "players", "player_id", fmt.Sprintf("%d", playerID))
}

// --- player bio -----------------------------------------------------------

type playerBioRow struct {
	PlayerID   int    `db:"player_id"`
	Position   string `db:"position"`
	HeightIn   int    `db:"height_in"`
	WeightLb   int    `db:"weight_lb"`
	College    string `db:"college"`
}

type playerBioEnvelope struct {
	Position string `json:"position"`
	HeightIn int    `json:"height_in"`
	WeightLb int    `json:"weight_lb"`
	College  string `json:"college"`
}

// PlayerBioIngestor loads one player's biographical profile. No era
// gate: biography is timeless metadata, not a season-scoped stat.
type PlayerBioIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewPlayerBioIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *PlayerBioIngestor {
	return &PlayerBioIngestor{client: client, db: db, deps: deps}
}

func (g *PlayerBioIngestor) EntityKind() string { return "player_bio" }
func (g *PlayerBioIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *PlayerBioIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	var env playerBioEnvelope
	if err := g.client.Call(ctx, "/commonplayerinfo", map[string]string{"PlayerID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		playerID string
		env      playerBioEnvelope
	}{playerID: entityID, env: env}, nil
}

func (g *PlayerBioIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		playerID string
		env      playerBioEnvelope
	})
	playerID, err := requirePositiveID("player_id", payload.playerID)
	if err != nil {
		return nil, err
	}
	row := playerBioRow{
		PlayerID: playerID,
		Position: payload.env.Position,
		HeightIn: payload.env.HeightIn,
		WeightLb: payload.env.WeightLb,
		College:  payload.env.College,
	}
	return toAnySlice([]playerBioRow{row}), nil
}

func (g *PlayerBioIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[playerBioRow](rows)
	for _, r := range typed {
		if err := requirePlayer(ctx, g.deps, r.PlayerID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "player_bios",
		[]string{"player_id"}, []string{"position", "height_in", "weight_lb", "college"}, typed)
}

// --- player season stats --------------------------------------------------

type playerSeasonStatsRow struct {
	PlayerID    int     `db:"player_id"`
	SeasonID    int     `db:"season_id"`
	GamesPlayed int     `db:"games_played"`
	PPG         float64 `db:"ppg"`
	RPG         float64 `db:"rpg"`
	APG         float64 `db:"apg"`
}

type playerSeasonStatsEnvelope struct {
	Stats []struct {
		PlayerID    int     `json:"player_id"`
		GamesPlayed int     `json:"games_played"`
		PPG         float64 `json:"ppg"`
		RPG         float64 `json:"rpg"`
		APG         float64 `json:"apg"`
	} `json:"stats"`
}

// PlayerSeasonStatsIngestor loads one season's per-player aggregate
// stat line for a team or league scope.
type PlayerSeasonStatsIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewPlayerSeasonStatsIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *PlayerSeasonStatsIngestor {
	return &PlayerSeasonStatsIngestor{client: client, db: db, deps: deps}
}

func (g *PlayerSeasonStatsIngestor) EntityKind() string { return "player_season_stats" }
func (g *PlayerSeasonStatsIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *PlayerSeasonStatsIngestor) Fetch(ctx context.Context, entityID string, params ingestkit.Params) (any, error) {
	year, err := seasonStartYear(entityID)
	if err != nil {
		return nil, err
	}
	var env playerSeasonStatsEnvelope
	if err := g.client.Call(ctx, "/leaguedashplayerstats", map[string]string{
		"Season": fmt.Sprintf("%d", year), "TeamID": fmt.Sprintf("%d", params.TeamID),
	}, &env); err != nil {
		return nil, err
	}
	return struct {
		seasonID int
		env      playerSeasonStatsEnvelope
	}{seasonID: year, env: env}, nil
}

func (g *PlayerSeasonStatsIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		seasonID int
		env      playerSeasonStatsEnvelope
	})
	rows := make([]playerSeasonStatsRow, 0, len(payload.env.Stats))
	for _, s := range payload.env.Stats {
		if s.PlayerID <= 0 || s.GamesPlayed < 0 {
			continue
		}
		rows = append(rows, playerSeasonStatsRow{
			PlayerID: s.PlayerID, SeasonID: payload.seasonID,
			GamesPlayed: s.GamesPlayed, PPG: s.PPG, RPG: s.RPG, APG: s.APG,
		})
	}
	return toAnySlice(rows), nil
}

func (g *PlayerSeasonStatsIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[playerSeasonStatsRow](rows)
	for _, r := range typed {
		if err := requirePlayer(ctx, g.deps, r.PlayerID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "player_season_stats",
		[]string{"player_id", "season_id"}, []string{"games_played", "ppg", "rpg", "apg"}, typed)
}

// --- awards ---------------------------------------------------------------

type awardRow struct {
	PlayerID int    `db:"player_id"`
	SeasonID int    `db:"season_id"`
	AwardName string `db:"award_name"`
}

type awardEnvelope struct {
	Awards []struct {
		PlayerID int    `json:"player_id"`
		Season   int    `json:"season"`
		Name     string `json:"name"`
	} `json:"awards"`
}

// AwardIngestor loads one player's all-time award history.
type AwardIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewAwardIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *AwardIngestor {
	return &AwardIngestor{client: client, db: db, deps: deps}
}

func (g *AwardIngestor) EntityKind() string { return "award" }
func (g *AwardIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *AwardIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	var env awardEnvelope
	if err := g.client.Call(ctx, "/playerawards", map[string]string{"PlayerID": entityID}, &env); err != nil {
		return nil, err
	}
	if len(env.Awards) == 0 {
		return nil, ingestkit.ErrSourceEmpty
	}
	return env, nil
}

func (g *AwardIngestor) Validate(raw any) ([]any, error) {
	env := raw.(awardEnvelope)
	rows := make([]awardRow, 0, len(env.Awards))
	for _, a := range env.Awards {
		if a.PlayerID <= 0 || a.Name == "" {
			continue
		}
		rows = append(rows, awardRow{PlayerID: a.PlayerID, SeasonID: a.Season, AwardName: a.Name})
	}
	return toAnySlice(rows), nil
}

func (g *AwardIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[awardRow](rows)
	for _, r := range typed {
		if err := requirePlayer(ctx, g.deps, r.PlayerID); err != nil {
			return 0, err
		}
	}
	// awards have no mutable columns beyond the unique tuple itself, so
	// the upsert degrades to insert-or-ignore on a full-key conflict.
	return upsertMany(ctx, conn, g.db, "awards",
		[]string{"player_id", "season_id", "award_name"}, []string{"award_name"}, typed)
}

// --- player tracking --------------------------------------------------

type trackingRow struct {
	PlayerID     int     `db:"player_id"`
	SeasonID     int     `db:"season_id"`
	AvgSpeedMph  float64 `db:"avg_speed_mph"`
	DistanceMi   float64 `db:"distance_mi"`
}

type trackingEnvelope struct {
	Entries []struct {
		PlayerID    int     `json:"player_id"`
		AvgSpeedMph float64 `json:"avg_speed_mph"`
		DistanceMi  float64 `json:"distance_mi"`
	} `json:"entries"`
}

// TrackingIngestor loads one player's SportVU/second-spectrum tracking
// metrics for a season, era-gated to 2013+. Stage 4 is per-player
// (§4.10): entityID is the player id, and the season being queried
// comes from Params.Season, not the entity id.
type TrackingIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewTrackingIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *TrackingIngestor {
	return &TrackingIngestor{client: client, db: db, deps: deps}
}

func (g *TrackingIngestor) EntityKind() string { return "tracking" }
func (g *TrackingIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *TrackingIngestor) Fetch(ctx context.Context, entityID string, params ingestkit.Params) (any, error) {
	if err := checkEra(era.FamilyTracking, params.Season); err != nil {
		return nil, err
	}
	year, err := seasonStartYear(params.Season)
	if err != nil {
		return nil, err
	}
	var env trackingEnvelope
	if err := g.client.Call(ctx, "/playerdashptstats", map[string]string{
		"PlayerID": entityID, "Season": fmt.Sprintf("%d", year),
	}, &env); err != nil {
		return nil, err
	}
	if len(env.Entries) == 0 {
		return nil, ingestkit.ErrSourceEmpty
	}
	return struct {
		seasonID int
		env      trackingEnvelope
	}{seasonID: year, env: env}, nil
}

func (g *TrackingIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		seasonID int
		env      trackingEnvelope
	})
	rows := make([]trackingRow, 0, len(payload.env.Entries))
	for _, e := range payload.env.Entries {
		if e.PlayerID <= 0 {
			continue
		}
		rows = append(rows, trackingRow{PlayerID: e.PlayerID, SeasonID: payload.seasonID, AvgSpeedMph: e.AvgSpeedMph, DistanceMi: e.DistanceMi})
	}
	return toAnySlice(rows), nil
}

func (g *TrackingIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[trackingRow](rows)
	for _, r := range typed {
		if err := requirePlayer(ctx, g.deps, r.PlayerID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "player_tracking",
		[]string{"player_id", "season_id"}, []string{"avg_speed_mph", "distance_mi"}, typed)
}
