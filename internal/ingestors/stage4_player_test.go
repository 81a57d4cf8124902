package ingestors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"golang.org/x/time/rate"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/platform/filecache"
	"github.com/nbavault/vault/internal/platform/ratelimit"
	"github.com/nbavault/vault/internal/quarantine"
	"github.com/nbavault/vault/internal/sourceadapters/statsapi"
	"github.com/nbavault/vault/internal/store"
)

func newTestStatsClient(t *testing.T, handler http.HandlerFunc) *statsapi.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	limiter := ratelimit.NewRegistry()
	limiter.Override(ratelimit.FamilyStatsAPI, rate.Inf, 1)
	cache := filecache.New(t.TempDir())

	return statsapi.NewClient(statsapi.Config{HTTPClient: srv.Client(), BaseURL: srv.URL}, limiter, cache)
}

func TestTrackingIngestor_EraSkipped(t *testing.T) {
	called := false
	client := newTestStatsClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": []any{}})
	})

	path := filepath.Join(t.TempDir(), "era_test.db")
	db, err := store.Open(store.DefaultConfig(path))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	deps := Deps{FK: store.NewFKPrechecker(db), Quarantine: quarantine.New(t.TempDir())}
	ing := NewTrackingIngestor(client, db, deps)

	_, err = ing.Fetch(context.Background(), "2544", ingestkit.Params{Season: "2010-11"})
	if err == nil {
		t.Fatalf("Fetch for a pre-2013 season should be era-gated")
	}
	var violation *ingestkit.EraViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected *ingestkit.EraViolation, got %T: %v", err, err)
	}
	if called {
		t.Fatalf("era-gated Fetch must not reach the HTTP source")
	}
}

func TestPlayerBioIngestor_FKMissing(t *testing.T) {
	client := newTestStatsClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"position": "C", "height_in": 83, "weight_lb": 220, "college": "USF",
		})
	})

	path := filepath.Join(t.TempDir(), "fk_test.db")
	db, err := store.Open(store.DefaultConfig(path))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE players (player_id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT)`); err != nil {
		t.Fatalf("create players table: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE player_bios (player_id INTEGER PRIMARY KEY, position TEXT, height_in INTEGER, weight_lb INTEGER, college TEXT)`); err != nil {
		t.Fatalf("create player_bios table: %v", err)
	}

	deps := Deps{FK: store.NewFKPrechecker(db), Quarantine: quarantine.New(t.TempDir())}
	ing := NewPlayerBioIngestor(client, db, deps)

	raw, err := ing.Fetch(context.Background(), "99", ingestkit.Params{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	rows, err := ing.Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	_, err = ing.Upsert(context.Background(), db, rows)
	if err == nil {
		t.Fatalf("Upsert for a player absent from players should fail its FK precheck")
	}
}

func TestPlayerSeasonStatsIngestor_ValidationDropsBadRows(t *testing.T) {
	client := newTestStatsClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stats": []map[string]any{
				{"player_id": 1, "games_played": 82, "ppg": 28.5, "rpg": 10.1, "apg": 5.2},
				{"player_id": 0, "games_played": 10, "ppg": 1.0, "rpg": 1.0, "apg": 1.0},
				{"player_id": 2, "games_played": -1, "ppg": 2.0, "rpg": 2.0, "apg": 2.0},
			},
		})
	})

	path := filepath.Join(t.TempDir(), "validate_test.db")
	db, err := store.Open(store.DefaultConfig(path))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	deps := Deps{FK: store.NewFKPrechecker(db), Quarantine: quarantine.New(t.TempDir())}
	ing := NewPlayerSeasonStatsIngestor(client, db, deps)

	raw, err := ing.Fetch(context.Background(), "2015-16", ingestkit.Params{TeamID: 0})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	rows, err := ing.Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Validate kept %d rows, want exactly 1 (player_id<=0 and games_played<0 should be dropped)", len(rows))
	}
}
