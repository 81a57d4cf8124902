// Package retry implements the retry harness: exponential backoff with
// jitter around a fallible operation, honoring a maximum attempt count
// and a classifier that distinguishes retryable, fatal, and
// "empty-but-successful" outcomes.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Outcome is what Classify returns for a given error.
type Outcome int

const (
	// OutcomeRetry means the error is transient; keep retrying.
	OutcomeRetry Outcome = iota
	// OutcomeFatal means the error should propagate immediately.
	OutcomeFatal
	// OutcomeEmpty means the call reached the source successfully but
	// there was nothing to return. It is reported as a distinct
	// sentinel so callers can record an EMPTY audit status rather than
	// FAILED.
	OutcomeEmpty
)

// Classifier maps an error from the wrapped operation to an Outcome.
type Classifier func(err error) Outcome

// ErrExhausted wraps the final error once max attempts are spent.
var ErrExhausted = errors.New("retry_exhausted")

// Config tunes the backoff schedule: delay on attempt n is
// base*2^(n-1) scaled by a uniform jitter factor, capped at maxAttempts
// tries total.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// Do runs op, retrying on OutcomeRetry classifications per cfg until it
// succeeds, returns an OutcomeEmpty error (surfaced unwrapped so the
// caller can detect it), hits an OutcomeFatal classification (returned
// immediately), or exhausts its attempts (wrapped in ErrExhausted).
func Do(ctx context.Context, cfg Config, classify Classifier, op func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.BaseDelay
	eb.MaxInterval = cfg.MaxDelay
	eb.RandomizationFactor = cfg.Jitter
	eb.Multiplier = 2
	eb.Reset()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		outcome := classify(err)
		switch outcome {
		case OutcomeFatal:
			return err
		case OutcomeEmpty:
			return err
		case OutcomeRetry:
			lastErr = err
			if attempt == cfg.MaxAttempts {
				return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
			}

			delay := eb.NextBackOff()
			if delay == backoff.Stop {
				return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
