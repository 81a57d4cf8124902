package ingestors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/quarantine"
	"github.com/nbavault/vault/internal/store"
)

func TestSeasonYearFromGameID(t *testing.T) {
	cases := map[string]int{
		"0021500001": 2015,
		"0019900001": 1999,
		"0029600001": 1996,
	}
	for gameID, want := range cases {
		got, err := seasonYearFromGameID(gameID)
		if err != nil {
			t.Fatalf("seasonYearFromGameID(%q): %v", gameID, err)
		}
		if got != want {
			t.Fatalf("seasonYearFromGameID(%q) = %d, want %d", gameID, got, want)
		}
	}

	if _, err := seasonYearFromGameID("x"); err == nil {
		t.Fatalf("seasonYearFromGameID of a too-short id should error")
	}
}

// TestBoxScoreHustleIngestor_EraDerivedFromGameID pins the fix for the
// bug where Fetch era-gated against Params.Season, which the
// orchestrator never sets for game-scoped entity kinds: every hustle
// game failed out to retry exhaustion instead of skipping cleanly.
func TestBoxScoreHustleIngestor_EraDerivedFromGameID(t *testing.T) {
	called := false
	client := newTestStatsClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(map[string]any{"players": []any{}})
	})

	path := filepath.Join(t.TempDir(), "hustle_era_test.db")
	db, err := store.Open(store.DefaultConfig(path))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	deps := Deps{FK: store.NewFKPrechecker(db), Quarantine: quarantine.New(t.TempDir())}
	ing := NewBoxScoreHustleIngestor(client, db, deps)

	// "0021000001" decodes to the 2010-11 season, before hustle's 2015
	// first-available year; Params.Season is empty, exactly as the
	// orchestrator supplies it for an iterGame kind.
	_, err = ing.Fetch(context.Background(), "0021000001", ingestkit.Params{})
	if err == nil {
		t.Fatalf("Fetch for a pre-2015 game id should be era-gated")
	}
	var violation *ingestkit.EraViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected *ingestkit.EraViolation, got %T: %v", err, err)
	}
	if called {
		t.Fatalf("era-gated Fetch must not reach the HTTP source")
	}
}

// TestBoxScoreTraditionalIngestor_EraDerivedFromGameID confirms the
// stats-API-core 1996 gate actually fires for a per-game kind, where
// Params.Season is never populated by the orchestrator.
func TestBoxScoreTraditionalIngestor_EraDerivedFromGameID(t *testing.T) {
	called := false
	client := newTestStatsClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(map[string]any{"players": []any{}})
	})

	path := filepath.Join(t.TempDir(), "traditional_era_test.db")
	db, err := store.Open(store.DefaultConfig(path))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	deps := Deps{FK: store.NewFKPrechecker(db), Quarantine: quarantine.New(t.TempDir())}
	ing := NewBoxScoreTraditionalIngestor(client, db, deps)

	_, err = ing.Fetch(context.Background(), "0019500001", ingestkit.Params{})
	if err == nil {
		t.Fatalf("Fetch for a pre-1996 game id should be era-gated")
	}
	if called {
		t.Fatalf("era-gated Fetch must not reach the HTTP source")
	}

	if _, err := ing.Fetch(context.Background(), "0029600001", ingestkit.Params{}); err != nil {
		t.Fatalf("Fetch for an allowed game id should not be era-gated: %v", err)
	}
	if !called {
		t.Fatalf("Fetch for an allowed game id should reach the HTTP source")
	}
}

func TestShotChartIngestor_RequiresGameAndPlayerFK(t *testing.T) {
	client := newTestStatsClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"shots": []map[string]any{
				{"player_id": 42, "x": 10.5, "y": 20.5, "made": true},
			},
		})
	})

	path := filepath.Join(t.TempDir(), "shot_chart_fk_test.db")
	db, err := store.Open(store.DefaultConfig(path))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE games (game_id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create games table: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE players (player_id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create players table: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE shots (game_id TEXT, shot_index INTEGER, player_id INTEGER, shot_x REAL, shot_y REAL, made INTEGER, PRIMARY KEY (game_id, shot_index))`); err != nil {
		t.Fatalf("create shots table: %v", err)
	}

	deps := Deps{FK: store.NewFKPrechecker(db), Quarantine: quarantine.New(t.TempDir())}
	ing := NewShotChartIngestor(client, db, deps)

	raw, err := ing.Fetch(context.Background(), "0029600001", ingestkit.Params{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	rows, err := ing.Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if _, err := ing.Upsert(context.Background(), db, rows); err == nil {
		t.Fatalf("Upsert should fail its game FK precheck when the game row is absent")
	}

	if _, err := db.Exec(`INSERT INTO games (game_id) VALUES (?)`, "0029600001"); err != nil {
		t.Fatalf("seed game: %v", err)
	}
	if _, err := ing.Upsert(context.Background(), db, rows); err == nil {
		t.Fatalf("Upsert should fail its player FK precheck when the player row is absent")
	}

	if _, err := db.Exec(`INSERT INTO players (player_id) VALUES (?)`, 42); err != nil {
		t.Fatalf("seed player: %v", err)
	}
	affected, err := ing.Upsert(context.Background(), db, rows)
	if err != nil {
		t.Fatalf("Upsert with both FKs satisfied: %v", err)
	}
	if affected != 1 {
		t.Fatalf("Upsert affected = %d, want 1", affected)
	}

	var gotGameID string
	if err := db.Get(&gotGameID, `SELECT game_id FROM shots WHERE shot_index = 0`); err != nil {
		t.Fatalf("select written shot: %v", err)
	}
	if gotGameID != "0029600001" {
		t.Fatalf("shots.game_id = %q, want the real game id, not a mangled surrogate", gotGameID)
	}
}
