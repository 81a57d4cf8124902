package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func alwaysFatal(error) Outcome { return OutcomeFatal }
func alwaysRetry(error) Outcome { return OutcomeRetry }
func alwaysEmpty(error) Outcome { return OutcomeEmpty }

func TestDoSucceedsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), alwaysRetry, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoReturnsFatalImmediately(t *testing.T) {
	wantErr := errors.New("boom")
	calls := 0
	err := Do(context.Background(), DefaultConfig(), alwaysFatal, func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1 for a fatal classification", calls)
	}
}

func TestDoReturnsEmptyImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), alwaysEmpty, func(ctx context.Context) error {
		calls++
		return ErrExhausted // any non-nil sentinel; classifier controls the outcome, not the error identity
	})
	if err == nil {
		t.Fatalf("Do should surface the empty error unwrapped")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Jitter: 0}
	calls := 0
	err := Do(context.Background(), cfg, alwaysRetry, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Do err = %v, want wrapping ErrExhausted", err)
	}
	if calls != cfg.MaxAttempts {
		t.Fatalf("calls = %d, want %d", calls, cfg.MaxAttempts)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	cfg := Config{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Jitter: 0}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, cfg, alwaysRetry, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (cancellation should stop further attempts)", calls)
	}
}
