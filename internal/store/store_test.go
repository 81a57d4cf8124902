package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/ingestkit"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault_test.db")
	db, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
CREATE TABLE players (player_id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT);
CREATE TABLE audit_records (
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	source_name TEXT NOT NULL,
	ingested_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	error_message TEXT,
	PRIMARY KEY (entity_kind, entity_id, source_name)
);
`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func TestFKPrecheckRequire(t *testing.T) {
	db := openTestDB(t)
	prechecker := NewFKPrechecker(db)
	ctx := context.Background()

	if _, err := db.Exec("INSERT INTO players (player_id, first_name, last_name) VALUES (?, ?, ?)", 1, "Bill", "Russell"); err != nil {
		t.Fatalf("seed player: %v", err)
	}

	if err := prechecker.Require(ctx, nil, "players", "player_id", "1"); err != nil {
		t.Fatalf("Require for existing player: %v", err)
	}

	err := prechecker.Require(ctx, nil, "players", "player_id", "999")
	if err == nil {
		t.Fatalf("Require for absent player should fail")
	}
	var missing *ingestkit.MissingFK
	if !errors.As(err, &missing) {
		t.Fatalf("expected *ingestkit.MissingFK, got %T: %v", err, err)
	}
	if missing.Table != "players" || missing.Value != "999" {
		t.Fatalf("unexpected MissingFK detail: %+v", missing)
	}
	if !errors.Is(err, ingestkit.ErrMissingFK) {
		t.Fatalf("MissingFK should unwrap to ErrMissingFK")
	}
}

func TestAuditRepositoryWriteAndStatusFor(t *testing.T) {
	db := openTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	rec := ingestkit.AuditRecord{
		EntityKind: "player",
		EntityID:   "1",
		Source:     "stats_api",
		Status:     ingestkit.StatusSuccess,
		RowCount:   1,
	}
	if err := repo.WriteAudit(ctx, rec); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	status, found, err := repo.StatusFor(ctx, "player", "1", "stats_api")
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if !found || status != ingestkit.StatusSuccess {
		t.Fatalf("StatusFor = (%v, %v), want (SUCCESS, true)", status, found)
	}

	// Rerunning with a new terminal status overwrites the same composite key.
	rec.Status = ingestkit.StatusFailed
	rec.ErrorMessage = "boom"
	if err := repo.WriteAudit(ctx, rec); err != nil {
		t.Fatalf("WriteAudit (overwrite): %v", err)
	}
	status, found, err = repo.StatusFor(ctx, "player", "1", "stats_api")
	if err != nil {
		t.Fatalf("StatusFor after overwrite: %v", err)
	}
	if !found || status != ingestkit.StatusFailed {
		t.Fatalf("StatusFor after overwrite = (%v, %v), want (FAILED, true)", status, found)
	}

	_, found, err = repo.StatusFor(ctx, "player", "never-ingested", "stats_api")
	if err != nil {
		t.Fatalf("StatusFor for unknown key: %v", err)
	}
	if found {
		t.Fatalf("StatusFor for unknown key should report not found")
	}
}
