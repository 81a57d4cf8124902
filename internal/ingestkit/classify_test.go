package ingestkit

import (
	"errors"
	"testing"

	"github.com/nbavault/vault/internal/platform/retry"
)

func TestDefaultClassifier(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want retry.Outcome
	}{
		{"era not supported is fatal", ErrEraNotSupported, retry.OutcomeFatal},
		{"source empty is empty", ErrSourceEmpty, retry.OutcomeEmpty},
		{"missing fk is fatal", ErrMissingFK, retry.OutcomeFatal},
		{"not implemented is fatal", ErrNotImplemented, retry.OutcomeFatal},
		{"integrity violation is fatal", ErrIntegrityViolation, retry.OutcomeFatal},
		{"wrapped retryable error retries", Retryable(errors.New("rate limited")), retry.OutcomeRetry},
		{"unrecognized error defaults to retry", errors.New("weird"), retry.OutcomeRetry},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultClassifier(tc.err); got != tc.want {
				t.Fatalf("DefaultClassifier(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestMissingFKWraps(t *testing.T) {
	err := &MissingFK{Table: "players", Column: "player_id", Value: "42"}
	if !errors.Is(err, ErrMissingFK) {
		t.Fatalf("MissingFK should unwrap to ErrMissingFK")
	}
}

func TestEraViolationWraps(t *testing.T) {
	err := &EraViolation{Family: "hustle", SeasonYear: 2010, FirstAllowed: 2015}
	if !errors.Is(err, ErrEraNotSupported) {
		t.Fatalf("EraViolation should unwrap to ErrEraNotSupported")
	}
}
