package ingestors

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/era"
	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/sourceadapters/statsapi"
)

func requireGame(ctx context.Context, deps Deps, gameID string) error {
	return deps.FK.Require(ctx, nil, "games", "game_id", gameID)
}

// --- officials -----------------------------------------------------------

type officialRow struct {
	GameID     string `db:"game_id"`
	OfficialID int    `db:"official_id"`
	FullName   string `db:"full_name"`
}

type officialEnvelope struct {
	Officials []struct {
		OfficialID int    `json:"official_id"`
		FullName   string `json:"full_name"`
	} `json:"officials"`
}

// OfficialIngestor loads the officiating crew for one game. Many
// historical games report no officials at all (S3), which is an
// EMPTY outcome, not a failure.
type OfficialIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewOfficialIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *OfficialIngestor {
	return &OfficialIngestor{client: client, db: db, deps: deps}
}

func (g *OfficialIngestor) EntityKind() string { return "official" }
func (g *OfficialIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *OfficialIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	var env officialEnvelope
	if err := g.client.Call(ctx, "/boxscoresummary", map[string]string{"GameID": entityID}, &env); err != nil {
		return nil, err
	}
	if len(env.Officials) == 0 {
		return nil, ingestkit.ErrSourceEmpty
	}
	return struct {
		gameID string
		env    officialEnvelope
	}{gameID: entityID, env: env}, nil
}

func (g *OfficialIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		gameID string
		env    officialEnvelope
	})
	rows := make([]officialRow, 0, len(payload.env.Officials))
	for _, o := range payload.env.Officials {
		rows = append(rows, officialRow{GameID: payload.gameID, OfficialID: o.OfficialID, FullName: o.FullName})
	}
	return toAnySlice(rows), nil
}

func (g *OfficialIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[officialRow](rows)
	if len(typed) > 0 {
		if err := requireGame(ctx, g.deps, typed[0].GameID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "officials", []string{"game_id", "official_id"}, []string{"full_name"}, typed)
}

// --- box score traditional ----------------------------------------------

type boxScoreRow struct {
	GameID   string `db:"game_id"`
	PlayerID int    `db:"player_id"`
	TeamID   int    `db:"team_id"`
	Points   int    `db:"points"`
	Rebounds int    `db:"rebounds"`
	Assists  int    `db:"assists"`
	Minutes  float64 `db:"minutes"`
}

type boxScoreEnvelope struct {
	Players []struct {
		PlayerID int     `json:"player_id"`
		TeamID   int     `json:"team_id"`
		Points   int     `json:"points"`
		Rebounds int     `json:"rebounds"`
		Assists  int     `json:"assists"`
		Minutes  float64 `json:"minutes"`
	} `json:"players"`
}

// BoxScoreTraditionalIngestor loads one game's traditional box score.
// Era-gated to the stats API core family (1996+).
type BoxScoreTraditionalIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewBoxScoreTraditionalIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *BoxScoreTraditionalIngestor {
	return &BoxScoreTraditionalIngestor{client: client, db: db, deps: deps}
}

func (g *BoxScoreTraditionalIngestor) EntityKind() string { return "box_score_traditional" }
func (g *BoxScoreTraditionalIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *BoxScoreTraditionalIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	if err := checkEraForGameID(statsAPICoreFamily, entityID); err != nil {
		return nil, err
	}
	var env boxScoreEnvelope
	if err := g.client.Call(ctx, "/boxscoretraditional", map[string]string{"GameID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		gameID string
		env    boxScoreEnvelope
	}{gameID: entityID, env: env}, nil
}

func (g *BoxScoreTraditionalIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		gameID string
		env    boxScoreEnvelope
	})

	rows := make([]boxScoreRow, 0, len(payload.env.Players))
	for _, p := range payload.env.Players {
		if p.PlayerID <= 0 || p.Points < 0 || p.Rebounds < 0 || p.Assists < 0 {
			if g.deps.Quarantine != nil {
				_, _ = g.deps.Quarantine.Write(g.EntityKind(), payload.gameID, p,
					[]error{fieldError{Field: "points/rebounds/assists", Msg: "negative counts rejected"}})
			}
			continue
		}
		rows = append(rows, boxScoreRow{
			GameID: payload.gameID, PlayerID: p.PlayerID, TeamID: p.TeamID,
			Points: p.Points, Rebounds: p.Rebounds, Assists: p.Assists, Minutes: p.Minutes,
		})
	}
	return toAnySlice(rows), nil
}

func (g *BoxScoreTraditionalIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[boxScoreRow](rows)
	if len(typed) > 0 {
		if err := requireGame(ctx, g.deps, typed[0].GameID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "box_scores_traditional",
		[]string{"game_id", "player_id"}, []string{"team_id", "points", "rebounds", "assists", "minutes"}, typed)
}

// --- box score advanced --------------------------------------------------

type boxScoreAdvancedRow struct {
	GameID     string  `db:"game_id"`
	PlayerID   int     `db:"player_id"`
	UsageRate  float64 `db:"usage_rate"`
	NetRating  float64 `db:"net_rating"`
}

type boxScoreAdvancedEnvelope struct {
	Players []struct {
		PlayerID  int     `json:"player_id"`
		UsageRate float64 `json:"usage_rate"`
		NetRating float64 `json:"net_rating"`
	} `json:"players"`
}

// BoxScoreAdvancedIngestor loads one game's advanced box score.
type BoxScoreAdvancedIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewBoxScoreAdvancedIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *BoxScoreAdvancedIngestor {
	return &BoxScoreAdvancedIngestor{client: client, db: db, deps: deps}
}

func (g *BoxScoreAdvancedIngestor) EntityKind() string { return "box_score_advanced" }
func (g *BoxScoreAdvancedIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *BoxScoreAdvancedIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	if err := checkEraForGameID(statsAPICoreFamily, entityID); err != nil {
		return nil, err
	}
	var env boxScoreAdvancedEnvelope
	if err := g.client.Call(ctx, "/boxscoreadvanced", map[string]string{"GameID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		gameID string
		env    boxScoreAdvancedEnvelope
	}{gameID: entityID, env: env}, nil
}

func (g *BoxScoreAdvancedIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		gameID string
		env    boxScoreAdvancedEnvelope
	})

	rows := make([]boxScoreAdvancedRow, 0, len(payload.env.Players))
	for _, p := range payload.env.Players {
		if p.PlayerID <= 0 {
			continue
		}
		if err := percentField("usage_rate", p.UsageRate); err != nil {
			if g.deps.Quarantine != nil {
				_, _ = g.deps.Quarantine.Write(g.EntityKind(), payload.gameID, p, []error{err})
			}
			continue
		}
		rows = append(rows, boxScoreAdvancedRow{GameID: payload.gameID, PlayerID: p.PlayerID, UsageRate: p.UsageRate, NetRating: p.NetRating})
	}
	return toAnySlice(rows), nil
}

func (g *BoxScoreAdvancedIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[boxScoreAdvancedRow](rows)
	if len(typed) > 0 {
		if err := requireGame(ctx, g.deps, typed[0].GameID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "box_scores_advanced",
		[]string{"game_id", "player_id"}, []string{"usage_rate", "net_rating"}, typed)
}

// --- box score hustle ------------------------------------------------

type boxScoreHustleRow struct {
	GameID          string `db:"game_id"`
	PlayerID        int    `db:"player_id"`
	Deflections     int    `db:"deflections"`
	LooseBallsRecov int    `db:"loose_balls_recovered"`
}

type boxScoreHustleEnvelope struct {
	Players []struct {
		PlayerID        int `json:"player_id"`
		Deflections     int `json:"deflections"`
		LooseBallsRecov int `json:"loose_balls_recovered"`
	} `json:"players"`
}

// BoxScoreHustleIngestor loads hustle stats, era-gated to 2015+ (the
// first season the source tracked them).
type BoxScoreHustleIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewBoxScoreHustleIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *BoxScoreHustleIngestor {
	return &BoxScoreHustleIngestor{client: client, db: db, deps: deps}
}

func (g *BoxScoreHustleIngestor) EntityKind() string { return "box_score_hustle" }
func (g *BoxScoreHustleIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *BoxScoreHustleIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	if err := checkEraForGameID(era.FamilyHustle, entityID); err != nil {
		return nil, err
	}
	var env boxScoreHustleEnvelope
	if err := g.client.Call(ctx, "/boxscorehustle", map[string]string{"GameID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		gameID string
		env    boxScoreHustleEnvelope
	}{gameID: entityID, env: env}, nil
}

func (g *BoxScoreHustleIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		gameID string
		env    boxScoreHustleEnvelope
	})

	rows := make([]boxScoreHustleRow, 0, len(payload.env.Players))
	for _, p := range payload.env.Players {
		if p.PlayerID <= 0 || p.Deflections < 0 || p.LooseBallsRecov < 0 {
			continue
		}
		rows = append(rows, boxScoreHustleRow{GameID: payload.gameID, PlayerID: p.PlayerID, Deflections: p.Deflections, LooseBallsRecov: p.LooseBallsRecov})
	}
	return toAnySlice(rows), nil
}

func (g *BoxScoreHustleIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[boxScoreHustleRow](rows)
	if len(typed) > 0 {
		if err := requireGame(ctx, g.deps, typed[0].GameID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "box_scores_hustle",
		[]string{"game_id", "player_id"}, []string{"deflections", "loose_balls_recovered"}, typed)
}

// --- team other stats (per game) ---------------------------------------

type teamOtherStatsRow struct {
	GameID      string `db:"game_id"`
	TeamID      int    `db:"team_id"`
	FastBreakPts int   `db:"fast_break_points"`
	PointsOffTO int    `db:"points_off_turnovers"`
}

type teamOtherStatsEnvelope struct {
	Teams []struct {
		TeamID       int `json:"team_id"`
		FastBreakPts int `json:"fast_break_points"`
		PointsOffTO  int `json:"points_off_turnovers"`
	} `json:"teams"`
}

// TeamOtherStatsIngestor loads per-game team "other stats" (fast
// break points, points off turnovers, etc).
type TeamOtherStatsIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewTeamOtherStatsIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *TeamOtherStatsIngestor {
	return &TeamOtherStatsIngestor{client: client, db: db, deps: deps}
}

func (g *TeamOtherStatsIngestor) EntityKind() string { return "team_other_stats" }
func (g *TeamOtherStatsIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *TeamOtherStatsIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	var env teamOtherStatsEnvelope
	if err := g.client.Call(ctx, "/boxscoreotherstats", map[string]string{"GameID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		gameID string
		env    teamOtherStatsEnvelope
	}{gameID: entityID, env: env}, nil
}

func (g *TeamOtherStatsIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		gameID string
		env    teamOtherStatsEnvelope
	})
	rows := make([]teamOtherStatsRow, 0, len(payload.env.Teams))
	for _, t := range payload.env.Teams {
		if t.FastBreakPts < 0 || t.PointsOffTO < 0 {
			continue
		}
		rows = append(rows, teamOtherStatsRow{GameID: payload.gameID, TeamID: t.TeamID, FastBreakPts: t.FastBreakPts, PointsOffTO: t.PointsOffTO})
	}
	return toAnySlice(rows), nil
}

func (g *TeamOtherStatsIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[teamOtherStatsRow](rows)
	if len(typed) > 0 {
		if err := requireGame(ctx, g.deps, typed[0].GameID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "team_other_stats",
		[]string{"game_id", "team_id"}, []string{"fast_break_points", "points_off_turnovers"}, typed)
}

// --- play-by-play --------------------------------------------------------

type pbpEventRow struct {
	GameID      string `db:"game_id"`
	EventNumber int    `db:"event_number"`
	Description string `db:"description"`
}

type pbpEnvelope struct {
	Events []struct {
		EventNumber int    `json:"event_number"`
		Description string `json:"description"`
	} `json:"events"`
}

// PlayByPlayIngestor loads a game's play-by-play log. Each event is
// upserted by (game_id, event_number), so corrected event text
// replaces the stored text; stored events absent from a newer payload
// are not removed.
type PlayByPlayIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewPlayByPlayIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *PlayByPlayIngestor {
	return &PlayByPlayIngestor{client: client, db: db, deps: deps}
}

func (g *PlayByPlayIngestor) EntityKind() string { return "play_by_play" }
func (g *PlayByPlayIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *PlayByPlayIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	if err := checkEraForGameID(statsAPICoreFamily, entityID); err != nil {
		return nil, err
	}
	var env pbpEnvelope
	if err := g.client.Call(ctx, "/playbyplay", map[string]string{"GameID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		gameID string
		env    pbpEnvelope
	}{gameID: entityID, env: env}, nil
}

func (g *PlayByPlayIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		gameID string
		env    pbpEnvelope
	})
	rows := make([]pbpEventRow, 0, len(payload.env.Events))
	for _, e := range payload.env.Events {
		if e.EventNumber <= 0 {
			continue
		}
		rows = append(rows, pbpEventRow{GameID: payload.gameID, EventNumber: e.EventNumber, Description: e.Description})
	}
	return toAnySlice(rows), nil
}

func (g *PlayByPlayIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[pbpEventRow](rows)
	if len(typed) > 0 {
		if err := requireGame(ctx, g.deps, typed[0].GameID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "play_by_play",
		[]string{"game_id", "event_number"}, []string{"description"}, typed)
}

// --- shot charts -----------------------------------------------------

type shotRow struct {
	GameID    string  `db:"game_id"`
	ShotIndex int     `db:"shot_index"`
	PlayerID  int     `db:"player_id"`
	ShotX     float64 `db:"shot_x"`
	ShotY     float64 `db:"shot_y"`
	Made      bool    `db:"made"`
}

type shotEnvelope struct {
	Shots []struct {
		PlayerID int     `json:"player_id"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Made     bool    `json:"made"`
	} `json:"shots"`
}

// ShotChartIngestor loads per-shot location data for a game,
// era-gated to 1996+ with the rest of the stats-API core family.
type ShotChartIngestor struct {
	client *statsapi.Client
	db     *sqlx.DB
	deps   Deps
}

func NewShotChartIngestor(client *statsapi.Client, db *sqlx.DB, deps Deps) *ShotChartIngestor {
	return &ShotChartIngestor{client: client, db: db, deps: deps}
}

func (g *ShotChartIngestor) EntityKind() string { return "shot_chart" }
func (g *ShotChartIngestor) Source(ingestkit.Params) string { return "stats_api" }

func (g *ShotChartIngestor) Fetch(ctx context.Context, entityID string, _ ingestkit.Params) (any, error) {
	if err := checkEraForGameID(statsAPICoreFamily, entityID); err != nil {
		return nil, err
	}
	var env shotEnvelope
	if err := g.client.Call(ctx, "/shotchartdetail", map[string]string{"GameID": entityID}, &env); err != nil {
		return nil, err
	}
	return struct {
		gameID string
		env    shotEnvelope
	}{gameID: entityID, env: env}, nil
}

func (g *ShotChartIngestor) Validate(raw any) ([]any, error) {
	payload := raw.(struct {
		gameID string
		env    shotEnvelope
	})
	rows := make([]shotRow, 0, len(payload.env.Shots))
	for i, s := range payload.env.Shots {
		if s.PlayerID <= 0 {
			continue
		}
		rows = append(rows, shotRow{GameID: payload.gameID, ShotIndex: i, PlayerID: s.PlayerID, ShotX: s.X, ShotY: s.Y, Made: s.Made})
	}
	return toAnySlice(rows), nil
}

func (g *ShotChartIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	typed := fromAnySlice[shotRow](rows)
	if len(typed) > 0 {
		if err := requireGame(ctx, g.deps, typed[0].GameID); err != nil {
			return 0, err
		}
	}
	for _, r := range typed {
		if err := requirePlayer(ctx, g.deps, r.PlayerID); err != nil {
			return 0, err
		}
	}
	return upsertMany(ctx, conn, g.db, "shots",
		[]string{"game_id", "shot_index"}, []string{"player_id", "shot_x", "shot_y", "made"}, typed)
}
