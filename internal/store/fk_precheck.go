package store

import (
	"context"
	"database/sql"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/ingestkit"
	qb "github.com/nbavault/vault/internal/platform/querybuilder"
)

// FKPrechecker verifies that a referenced parent row exists before a
// child upsert proceeds. A missing parent is classified fatal: an
// upstream orchestrator stage has not yet run.
type FKPrechecker struct {
	db *sqlx.DB
}

func NewFKPrechecker(db *sqlx.DB) *FKPrechecker {
	return &FKPrechecker{db: db}
}

// Require probes table for a row whose column equals value, inside tx
// if tx is non-nil so the check observes the upsert's own in-flight
// writes. It returns *ingestkit.MissingFK (wrapping ErrMissingFK) when
// the parent is absent.
func (p *FKPrechecker) Require(ctx context.Context, tx *sql.Tx, table, column, value string) error {
	query, args, err := qb.Select("1").
		From(table).
		Where(qb.Eq(column, value)).
		Limit(1).
		ToSQL()
	if err != nil {
		return crerr.Wrap(err, "store: build fk precheck query")
	}
	query = p.db.Rebind(query)

	var probe int
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&probe)
	} else {
		err = p.db.QueryRowxContext(ctx, query, args...).Scan(&probe)
	}

	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return &ingestkit.MissingFK{Table: table, Column: column, Value: value}
	}
	return crerr.Wrap(err, "store: fk precheck query")
}
