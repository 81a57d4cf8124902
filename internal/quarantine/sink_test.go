package quarantine

import (
	"errors"
	"testing"
)

func TestSinkWriteAndIterate(t *testing.T) {
	root := t.TempDir()
	sink := New(root)

	payload := map[string]any{"player_id": "not-a-number"}
	path, err := sink.Write("player", "fp-123", payload, []error{errors.New("player_id: must be a positive integer")})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path == "" {
		t.Fatalf("Write returned empty path")
	}

	var seen []Record
	err = Iterate(root, "player", func(rec Record) error {
		seen = append(seen, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("Iterate found %d records, want 1", len(seen))
	}
	if seen[0].EntityKind != "player" || seen[0].Fingerprint != "fp-123" {
		t.Fatalf("unexpected record: %+v", seen[0])
	}
	if len(seen[0].Errors) != 1 {
		t.Fatalf("unexpected error trace: %+v", seen[0].Errors)
	}
}

func TestIterateOnMissingDirReturnsNoError(t *testing.T) {
	root := t.TempDir()
	var seen []Record
	err := Iterate(root, "never_written", func(rec Record) error {
		seen = append(seen, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate on missing dir: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("expected no records, got %d", len(seen))
	}
}
