package ingestkit

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nbavault/vault/internal/platform/logging"
	"github.com/nbavault/vault/internal/platform/retry"
)

// Runner composes fetch -> validate -> upsert for any registered
// ingestor, wraps fetch in the retry harness, and writes exactly one
// audit row on every exit path. It is the base contract described by
// the ingestor registry: one Runner is shared by every ingest() call
// in the process.
type Runner struct {
	DB         *sqlx.DB
	Audit      AuditWriter
	Logger     *logging.Logger
	RetryCfg   retry.Config
	Classifier retry.Classifier
}

func NewRunner(db *sqlx.DB, audit AuditWriter, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		DB:         db,
		Audit:      audit,
		Logger:     logger,
		RetryCfg:   retry.DefaultConfig(),
		Classifier: DefaultClassifier,
	}
}

// Ingest runs the three-stage contract for one entity id and writes
// the terminal audit row in its own transaction, separate from any
// data transaction the upsert stage opens, so an audit row always
// exists even when the data write rolled back.
func (r *Runner) Ingest(ctx context.Context, ing Ingestor, entityID string, params Params) Result {
	ctx, span := startIngestSpan(ctx, "ingestkit.ingest")
	defer span.End()

	kind := ing.EntityKind()
	source := ing.Source(params)
	logger := r.Logger.With("entity_kind", kind, "entity_id", entityID, "source", source)

	result, status, errMsg, rowCount := r.run(ctx, ing, entityID, params, logger)

	rec := AuditRecord{
		EntityKind:   kind,
		EntityID:     entityID,
		Source:       source,
		IngestedAt:   time.Now().UTC(),
		Status:       status,
		RowCount:     rowCount,
		ErrorMessage: errMsg,
	}
	if err := r.Audit.WriteAudit(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "ingestkit: failed to write audit row", "error", err)
	}

	result.Status = status
	result.EntityID = entityID
	result.RowsAffected = rowCount
	result.ErrorMessage = errMsg
	return result
}

func (r *Runner) run(ctx context.Context, ing Ingestor, entityID string, params Params, logger *logging.Logger) (Result, Status, string, int) {
	classifier := r.Classifier
	if classifier == nil {
		classifier = DefaultClassifier
	}

	var raw any
	fetchErr := retry.Do(ctx, r.RetryCfg, classifier, func(ctx context.Context) error {
		v, err := ing.Fetch(ctx, entityID, params)
		raw = v
		return err
	})

	switch {
	case errors.Is(fetchErr, ErrEraNotSupported):
		logger.InfoContext(ctx, "ingestkit: era gate skipped ingest", "error", fetchErr)
		return Result{}, StatusSkipped, fetchErr.Error(), 0
	case errors.Is(fetchErr, ErrSourceEmpty):
		logger.InfoContext(ctx, "ingestkit: source returned no data")
		return Result{}, StatusEmpty, "", 0
	case fetchErr != nil:
		logger.ErrorContext(ctx, "ingestkit: fetch failed", "error", fetchErr)
		return Result{}, StatusFailed, fetchErr.Error(), 0
	}

	rows, err := ing.Validate(raw)
	if err != nil {
		logger.ErrorContext(ctx, "ingestkit: validation failed", "error", err)
		return Result{}, StatusFailed, err.Error(), 0
	}
	if len(rows) == 0 {
		return Result{}, StatusEmpty, "", 0
	}

	rowCount, err := ing.Upsert(ctx, r.DB, rows)
	if err != nil {
		logger.ErrorContext(ctx, "ingestkit: upsert failed", "error", err)
		return Result{}, StatusFailed, err.Error(), rowCount
	}

	return Result{}, StatusSuccess, "", rowCount
}
