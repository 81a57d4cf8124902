package ingestors

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/era"
	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/sourceadapters/bulkarchive"
)

// BulkEntityID is the sentinel entity id bulk ingestors expect: each
// one fetches a single archive and extracts all rows in one call.
const BulkEntityID = "all"

// --- ELO ratings ---------------------------------------------------------

type eloRow struct {
	SeasonID    int     `db:"season_id"`
	FranchiseID string  `db:"franchise_id"`
	EloRating   float64 `db:"elo_rating"`
}

// EloIngestor loads the historical ELO rating archive, back to the
// league's founding (no era restriction of its own).
type EloIngestor struct {
	client    *bulkarchive.Client
	db        *sqlx.DB
	sourceURL string
}

func NewEloIngestor(client *bulkarchive.Client, db *sqlx.DB, sourceURL string) *EloIngestor {
	return &EloIngestor{client: client, db: db, sourceURL: sourceURL}
}

func (g *EloIngestor) EntityKind() string { return "bulk_elo" }
func (g *EloIngestor) Source(ingestkit.Params) string { return "bulk_archive" }

func (g *EloIngestor) Fetch(ctx context.Context, _ string, params ingestkit.Params) (any, error) {
	url := g.sourceURL
	if params.SourceURL != "" {
		url = params.SourceURL
	}
	return g.client.DownloadAndExtract(ctx, url, "")
}

func (g *EloIngestor) Validate(raw any) ([]any, error) {
	rows := raw.([]bulkarchive.Row)
	out := make([]eloRow, 0, len(rows))
	for _, r := range rows {
		season, err := strconv.Atoi(r["season_id"])
		if err != nil {
			continue
		}
		elo, err := strconv.ParseFloat(r["elo_rating"], 64)
		if err != nil {
			continue
		}
		out = append(out, eloRow{SeasonID: season, FranchiseID: r["franchise_id"], EloRating: elo})
	}
	return toAnySlice(out), nil
}

func (g *EloIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return upsertManyChunked(ctx, conn, g.db, "elo_ratings",
		[]string{"season_id", "franchise_id"}, []string{"elo_rating"},
		fromAnySlice[eloRow](rows), bulkBatchSize)
}

// --- RAPTOR ----------------------------------------------------------------

type raptorRow struct {
	SeasonID     int     `db:"season_id"`
	PlayerID     int     `db:"player_id"`
	RaptorOffense float64 `db:"raptor_offense"`
	RaptorDefense float64 `db:"raptor_defense"`
}

// RaptorIngestor loads the bulk RAPTOR archive. Fetch era-gates to
// 1976+ only when Params.Season is set; the archive's rows are not
// filtered by season.
type RaptorIngestor struct {
	client    *bulkarchive.Client
	db        *sqlx.DB
	sourceURL string
}

func NewRaptorIngestor(client *bulkarchive.Client, db *sqlx.DB, sourceURL string) *RaptorIngestor {
	return &RaptorIngestor{client: client, db: db, sourceURL: sourceURL}
}

func (g *RaptorIngestor) EntityKind() string { return "bulk_raptor" }
func (g *RaptorIngestor) Source(ingestkit.Params) string { return "bulk_archive" }

func (g *RaptorIngestor) Fetch(ctx context.Context, _ string, params ingestkit.Params) (any, error) {
	if params.Season != "" {
		if err := checkEra(era.FamilyBulkRAPTOR, params.Season); err != nil {
			return nil, err
		}
	}
	url := g.sourceURL
	if params.SourceURL != "" {
		url = params.SourceURL
	}
	return g.client.DownloadAndExtract(ctx, url, "")
}

func (g *RaptorIngestor) Validate(raw any) ([]any, error) {
	rows := raw.([]bulkarchive.Row)
	out := make([]raptorRow, 0, len(rows))
	for _, r := range rows {
		season, err1 := strconv.Atoi(r["season_id"])
		player, err2 := strconv.Atoi(r["player_id"])
		if err1 != nil || err2 != nil || player <= 0 {
			continue
		}
		off, _ := strconv.ParseFloat(r["raptor_offense"], 64)
		def, _ := strconv.ParseFloat(r["raptor_defense"], 64)
		out = append(out, raptorRow{SeasonID: season, PlayerID: player, RaptorOffense: off, RaptorDefense: def})
	}
	return toAnySlice(out), nil
}

func (g *RaptorIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return upsertManyChunked(ctx, conn, g.db, "raptor_ratings",
		[]string{"season_id", "player_id"}, []string{"raptor_offense", "raptor_defense"},
		fromAnySlice[raptorRow](rows), bulkBatchSize)
}

// --- pre-modern box scores --------------------------------------------

type preModernBoxScoreRow struct {
	GameID   string `db:"game_id"`
	PlayerID int    `db:"player_id"`
	Points   int    `db:"points"`
	Rebounds int    `db:"rebounds"`
	Assists  int    `db:"assists"`
}

// PreModernBoxScoreIngestor loads the pre-assembled box score archive
// covering games before the stats API's 1996 coverage boundary.
type PreModernBoxScoreIngestor struct {
	client    *bulkarchive.Client
	db        *sqlx.DB
	sourceURL string
}

func NewPreModernBoxScoreIngestor(client *bulkarchive.Client, db *sqlx.DB, sourceURL string) *PreModernBoxScoreIngestor {
	return &PreModernBoxScoreIngestor{client: client, db: db, sourceURL: sourceURL}
}

func (g *PreModernBoxScoreIngestor) EntityKind() string { return "bulk_pre_modern_box_score" }
func (g *PreModernBoxScoreIngestor) Source(ingestkit.Params) string { return "bulk_archive" }

func (g *PreModernBoxScoreIngestor) Fetch(ctx context.Context, _ string, params ingestkit.Params) (any, error) {
	url := g.sourceURL
	if params.SourceURL != "" {
		url = params.SourceURL
	}
	return g.client.DownloadAndExtract(ctx, url, "")
}

func (g *PreModernBoxScoreIngestor) Validate(raw any) ([]any, error) {
	rows := raw.([]bulkarchive.Row)
	out := make([]preModernBoxScoreRow, 0, len(rows))
	for _, r := range rows {
		player, err := strconv.Atoi(r["player_id"])
		if err != nil || player <= 0 || r["game_id"] == "" {
			continue
		}
		pts, _ := strconv.Atoi(r["points"])
		reb, _ := strconv.Atoi(r["rebounds"])
		ast, _ := strconv.Atoi(r["assists"])
		out = append(out, preModernBoxScoreRow{GameID: r["game_id"], PlayerID: player, Points: pts, Rebounds: reb, Assists: ast})
	}
	return toAnySlice(out), nil
}

func (g *PreModernBoxScoreIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return upsertManyChunked(ctx, conn, g.db, "box_scores_traditional",
		[]string{"game_id", "player_id"}, []string{"points", "rebounds", "assists"},
		fromAnySlice[preModernBoxScoreRow](rows), bulkBatchSize)
}

// --- pre-assembled play-by-play ---------------------------------------

type preAssembledPBPRow struct {
	GameID      string `db:"game_id"`
	EventNumber int    `db:"event_number"`
	Description string `db:"description"`
}

// PreAssembledPBPIngestor loads bulk-archived PBP for eras the
// stats API's native endpoint does not cover.
type PreAssembledPBPIngestor struct {
	client    *bulkarchive.Client
	db        *sqlx.DB
	sourceURL string
}

func NewPreAssembledPBPIngestor(client *bulkarchive.Client, db *sqlx.DB, sourceURL string) *PreAssembledPBPIngestor {
	return &PreAssembledPBPIngestor{client: client, db: db, sourceURL: sourceURL}
}

func (g *PreAssembledPBPIngestor) EntityKind() string { return "bulk_pre_assembled_pbp" }
func (g *PreAssembledPBPIngestor) Source(ingestkit.Params) string { return "bulk_archive" }

func (g *PreAssembledPBPIngestor) Fetch(ctx context.Context, _ string, params ingestkit.Params) (any, error) {
	url := g.sourceURL
	if params.SourceURL != "" {
		url = params.SourceURL
	}
	return g.client.DownloadAndExtract(ctx, url, "")
}

func (g *PreAssembledPBPIngestor) Validate(raw any) ([]any, error) {
	rows := raw.([]bulkarchive.Row)
	out := make([]preAssembledPBPRow, 0, len(rows))
	for _, r := range rows {
		evt, err := strconv.Atoi(r["event_number"])
		if err != nil || r["game_id"] == "" {
			continue
		}
		out = append(out, preAssembledPBPRow{GameID: r["game_id"], EventNumber: evt, Description: r["description"]})
	}
	return toAnySlice(out), nil
}

func (g *PreAssembledPBPIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return upsertManyChunked(ctx, conn, g.db, "play_by_play",
		[]string{"game_id", "event_number"}, []string{"description"},
		fromAnySlice[preAssembledPBPRow](rows), bulkBatchSize)
}
