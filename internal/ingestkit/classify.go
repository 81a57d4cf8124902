package ingestkit

import (
	"errors"

	"github.com/nbavault/vault/internal/platform/retry"
)

// RetryableError marks a fetch-stage failure (rate_limited,
// transient_network) as transient, distinguishing it from a fatal
// error for the default classifier.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// DefaultClassifier implements the retry harness's classify function
// for the ingest state machine: era violations and source-empty are
// terminal-but-not-failures, missing FKs / not-implemented / integrity
// violations are fatal, RetryableError is retried, anything else is
// treated as retry too (open question (b): undocumented status codes
// default to retry).
func DefaultClassifier(err error) retry.Outcome {
	switch {
	case errors.Is(err, ErrEraNotSupported):
		return retry.OutcomeFatal
	case errors.Is(err, ErrSourceEmpty):
		return retry.OutcomeEmpty
	case errors.Is(err, ErrMissingFK), errors.Is(err, ErrNotImplemented), errors.Is(err, ErrIntegrityViolation):
		return retry.OutcomeFatal
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return retry.OutcomeRetry
	}

	return retry.OutcomeRetry
}
