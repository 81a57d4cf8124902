package ingestkit

import (
	"errors"
	"strconv"
)

// Sentinel error kinds returned by fetch/validate/upsert stages. The
// ingest state machine classifies each against these to decide the
// terminal audit status.
var (
	ErrEraNotSupported      = errors.New("era_not_supported")
	ErrMissingFK            = errors.New("missing_fk")
	ErrValidationFailed     = errors.New("validation_failed")
	ErrNotImplemented       = errors.New("not_implemented")
	ErrRetryExhausted       = errors.New("retry_exhausted")
	ErrCancelled            = errors.New("cancelled")
	ErrDependencyUnavailable = errors.New("dependency_unavailable")
	ErrIntegrityViolation   = errors.New("integrity_violation")
)

// ErrSourceEmpty is returned by fetch to signal the source reached
// successfully but had nothing to return. It is not an error in the
// audit sense; ingest() distinguishes it by identity from any other
// non-nil error and records status EMPTY.
var ErrSourceEmpty = errors.New("source_empty")

// MissingFK carries the table/column/value detail onto ErrMissingFK so
// the audit row's error_message names the offending reference.
type MissingFK struct {
	Table  string
	Column string
	Value  string
}

func (e *MissingFK) Error() string {
	return "missing_fk(" + e.Table + "," + e.Column + "," + e.Value + "): " + ErrMissingFK.Error()
}

func (e *MissingFK) Unwrap() error {
	return ErrMissingFK
}

// EraViolation carries the family/year detail onto ErrEraNotSupported.
type EraViolation struct {
	Family      string
	SeasonYear  int
	FirstAllowed int
}

func (e *EraViolation) Error() string {
	return "era_not_supported: " + e.Family + "<" + strconv.Itoa(e.FirstAllowed)
}

func (e *EraViolation) Unwrap() error {
	return ErrEraNotSupported
}
