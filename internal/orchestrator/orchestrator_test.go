package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/platform/logging"
	"github.com/nbavault/vault/internal/store"
)

func TestSeasonLabel(t *testing.T) {
	cases := map[int]string{
		1996: "1996-97",
		1999: "1999-00",
		2015: "2015-16",
	}
	for year, want := range cases {
		if got := seasonLabel(year); got != want {
			t.Fatalf("seasonLabel(%d) = %q, want %q", year, got, want)
		}
	}
}

func TestSeasonLabels(t *testing.T) {
	got := seasonLabels(2013, 2015)
	want := []string{"2013-14", "2014-15", "2015-16"}
	if len(got) != len(want) {
		t.Fatalf("seasonLabels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("seasonLabels[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := seasonLabels(2020, 2019); got != nil {
		t.Fatalf("seasonLabels with to<from should be empty, got %v", got)
	}
}

func TestEntityIDsWithoutStore(t *testing.T) {
	o := New(ingestkit.NewRegistry(), nil, nil, logging.NewNop())
	plan := Plan{LeagueID: "00", SeasonStart: 2014, SeasonEnd: 2015}
	ctx := context.Background()

	ids, err := o.entityIDs(ctx, "bulk_elo", plan)
	if err != nil || len(ids) != 1 || ids[0] != "all" {
		t.Fatalf("entityIDs(bulk_elo) = %v, %v, want [\"all\"]", ids, err)
	}

	ids, err = o.entityIDs(ctx, "season", plan)
	if err != nil || len(ids) != 1 || ids[0] != "00" {
		t.Fatalf("entityIDs(season) = %v, %v, want [league id]", ids, err)
	}

	ids, err = o.entityIDs(ctx, "schedule", plan)
	if err != nil {
		t.Fatalf("entityIDs(schedule): %v", err)
	}
	want := []string{"2014-15", "2015-16"}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("entityIDs(schedule) = %v, want %v", ids, want)
	}

	if _, err := o.entityIDs(ctx, "not_a_real_kind", plan); err == nil {
		t.Fatalf("entityIDs for an unregistered kind should error")
	}
}

func TestEntityIDsReadsBackFromStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orch_test.db")
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
	for _, id := range []string{"0021500002", "0021500001"} {
		if _, err := db.Exec(`INSERT INTO games (game_id) VALUES (?)`, id); err != nil {
			t.Fatalf("seed game: %v", err)
		}
	}
	for _, id := range []int{42, 7} {
		if _, err := db.Exec(`INSERT INTO players (player_id) VALUES (?)`, id); err != nil {
			t.Fatalf("seed player: %v", err)
		}
	}

	o := New(ingestkit.NewRegistry(), nil, db, logging.NewNop())
	ctx := context.Background()

	gameIDs, err := o.entityIDs(ctx, "official", Plan{})
	if err != nil {
		t.Fatalf("entityIDs(official): %v", err)
	}
	wantGames := []string{"0021500001", "0021500002"}
	if len(gameIDs) != 2 || gameIDs[0] != wantGames[0] || gameIDs[1] != wantGames[1] {
		t.Fatalf("entityIDs(official) = %v, want %v (ascending order)", gameIDs, wantGames)
	}

	playerIDs, err := o.entityIDs(ctx, "player_bio", Plan{})
	if err != nil {
		t.Fatalf("entityIDs(player_bio): %v", err)
	}
	wantPlayers := []string{"7", "42"}
	if len(playerIDs) != 2 || playerIDs[0] != wantPlayers[0] || playerIDs[1] != wantPlayers[1] {
		t.Fatalf("entityIDs(player_bio) = %v, want %v (ascending order)", playerIDs, wantPlayers)
	}
}

func TestRunKindStopsSubmittingOnCancelledContext(t *testing.T) {
	reg := ingestkit.NewRegistry()
	calls := 0
	reg.Register("season", func() ingestkit.Ingestor {
		return fakeIngestor{kind: "season", onFetch: func() { calls++ }}
	})

	audit := &noopAudit{}
	runner := ingestkit.NewRunner(nil, audit, logging.NewNop())
	o := New(reg, runner, nil, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, cancelled, err := o.runKind(ctx, "season", []string{"00", "01", "02"}, Plan{WorkerCount: 2})
	if err != nil {
		t.Fatalf("runKind: %v", err)
	}
	if !cancelled {
		t.Fatalf("runKind should report cancelled for an already-cancelled context")
	}
	if len(results) != 0 || calls != 0 {
		t.Fatalf("runKind should not submit any task once ctx is already cancelled, got %d results / %d calls", len(results), calls)
	}
}

func TestRunKindRunsEveryID(t *testing.T) {
	reg := ingestkit.NewRegistry()
	reg.Register("season", func() ingestkit.Ingestor {
		return fakeIngestor{kind: "season"}
	})

	audit := &noopAudit{}
	runner := ingestkit.NewRunner(nil, audit, logging.NewNop())
	o := New(reg, runner, nil, logging.NewNop())

	ids := []string{"00", "01", "02", "03"}
	results, cancelled, err := o.runKind(context.Background(), "season", ids, Plan{WorkerCount: 2})
	if err != nil {
		t.Fatalf("runKind: %v", err)
	}
	if cancelled {
		t.Fatalf("runKind should not report cancelled")
	}
	if len(results) != len(ids) {
		t.Fatalf("runKind produced %d results, want %d", len(results), len(ids))
	}
	for _, r := range results {
		if r.Result.Status != ingestkit.StatusSuccess {
			t.Fatalf("unexpected result status %v", r.Result.Status)
		}
	}
}

type noopAudit struct{}

func (n *noopAudit) WriteAudit(ctx context.Context, rec ingestkit.AuditRecord) error { return nil }

type fakeIngestor struct {
	kind    string
	onFetch func()
}

func (f fakeIngestor) EntityKind() string   { return f.kind }
func (f fakeIngestor) Source(ingestkit.Params) string { return "fake" }
func (f fakeIngestor) Fetch(ctx context.Context, entityID string, params ingestkit.Params) (any, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	return "payload", nil
}
func (f fakeIngestor) Validate(raw any) ([]any, error) { return []any{raw}, nil }
func (f fakeIngestor) Upsert(ctx context.Context, conn ingestkit.Conn, rows []any) (int, error) {
	return len(rows), nil
}
