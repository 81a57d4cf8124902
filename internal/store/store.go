// Package store owns the relational store connection and the
// cross-cutting repositories (audit, FK precheck) that every ingestor
// upsert stage depends on. Schema creation itself is out of scope —
// the core only consumes an already-initialized store.
package store

import (
	"context"
	"fmt"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Config tunes the PRAGMAs applied to every connection, matching the
// documented contract: write-ahead journaling, FK enforcement on,
// synchronous normal, a generous page cache, 16 KB page size.
type Config struct {
	Path        string
	PageSizeKB  int
	CacheSizeKB int
}

func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		PageSizeKB:  16,
		CacheSizeKB: 20000,
	}
}

// Open establishes the connection and applies the per-connection
// PRAGMAs. Each orchestrator worker is expected to own a dedicated
// *sqlx.DB (or at minimum a dedicated connection via DB.Conn) so
// transactions stay strictly per-connection as the concurrency model
// requires.
func Open(cfg Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL", cfg.Path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, crerr.Wrap(err, "store: open")
	}

	if err := applyPragmas(db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func applyPragmas(db *sqlx.DB, cfg Config) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA page_size = %d;", cfg.PageSizeKB*1024),
		fmt.Sprintf("PRAGMA cache_size = -%d;", cfg.CacheSizeKB),
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return crerr.Wrapf(err, "store: apply pragma %q", p)
		}
	}
	return nil
}

// Ping verifies the connection is live; the CLI calls it while wiring
// up every subcommand.
func Ping(ctx context.Context, db *sqlx.DB) error {
	return db.PingContext(ctx)
}
