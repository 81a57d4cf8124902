package store

import (
	"context"
	"database/sql"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/ingestkit"
	qb "github.com/nbavault/vault/internal/platform/querybuilder"
)

// auditModel is the db-tagged row shape written by InsertModel.
type auditModel struct {
	EntityKind   string    `db:"entity_kind"`
	EntityID     string    `db:"entity_id"`
	SourceName   string    `db:"source_name"`
	IngestedAt   time.Time `db:"ingested_at"`
	Status       string    `db:"status"`
	RowCount     int       `db:"row_count"`
	ErrorMessage *string   `db:"error_message"`
}

// AuditRepository persists ingest() outcomes. It is written in its own
// transaction separate from the data upsert so an audit row always
// exists even when the data transaction rolled back.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var auditUpdateCols = []string{"ingested_at", "status", "row_count", "error_message"}

func (r *AuditRepository) WriteAudit(ctx context.Context, rec ingestkit.AuditRecord) error {
	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	model := auditModel{
		EntityKind:   rec.EntityKind,
		EntityID:     rec.EntityID,
		SourceName:   rec.Source,
		IngestedAt:   rec.IngestedAt,
		Status:       string(rec.Status),
		RowCount:     rec.RowCount,
		ErrorMessage: errMsg,
	}

	suffix := qb.OnConflictUpdate([]string{"entity_kind", "entity_id", "source_name"}, auditUpdateCols)
	query, args, err := qb.InsertModel("audit_records", model, suffix)
	if err != nil {
		return crerr.Wrap(err, "store: build audit insert")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return crerr.Wrap(err, "store: begin audit tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return crerr.Wrap(err, "store: write audit row")
	}

	return tx.Commit()
}

// StatusFor looks up the stored audit status for a composite key
// (WriteAudit keeps one row per key, overwriting earlier runs).
func (r *AuditRepository) StatusFor(ctx context.Context, entityKind, entityID, source string) (ingestkit.Status, bool, error) {
	query, args, err := qb.Select("status").
		From("audit_records").
		Where(qb.Eq("entity_kind", entityKind), qb.Eq("entity_id", entityID), qb.Eq("source_name", source)).
		ToSQL()
	if err != nil {
		return "", false, crerr.Wrap(err, "store: build audit select")
	}

	var status string
	err = r.db.GetContext(ctx, &status, r.db.Rebind(query), args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, crerr.Wrap(err, "store: query audit status")
	}
	return ingestkit.Status(status), true, nil
}
