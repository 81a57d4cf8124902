// Package quarantine implements the write-only sink for rows rejected
// by validation: the raw payload plus its validation error trace,
// written verbatim for later inspection. The core never reads
// quarantine back in normal operation.
package quarantine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is the shape written to a quarantine file.
type Record struct {
	EntityKind string          `json:"entity_kind"`
	Fingerprint string         `json:"fingerprint"`
	RejectedAt time.Time       `json:"rejected_at"`
	Payload    json.RawMessage `json:"payload"`
	Errors     []string        `json:"errors"`
}

// Sink writes Records under root/data/quarantine/<entity_kind>/.
type Sink struct {
	root string
}

func New(root string) *Sink {
	return &Sink{root: root}
}

// Write persists one quarantine record and returns the path written.
func (s *Sink) Write(entityKind, fingerprint string, payload any, validationErrs []error) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("quarantine: marshal payload: %w", err)
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, e.Error())
	}

	rec := Record{
		EntityKind:  entityKind,
		Fingerprint: fingerprint,
		RejectedAt:  time.Now().UTC(),
		Payload:     raw,
		Errors:      msgs,
	}

	dir := filepath.Join(s.root, "data", "quarantine", entityKind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("quarantine: create dir: %w", err)
	}

	name := fmt.Sprintf("%d_%s.json", rec.RejectedAt.UnixNano(), fingerprint)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("quarantine: marshal record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("quarantine: write file: %w", err)
	}
	return path, nil
}

// Iterate walks every quarantine record written for entityKind,
// calling fn with each decoded Record. It is a read-only helper used
// only by operators and tests to inspect what was rejected; no
// ingestion code path invokes it.
func Iterate(root, entityKind string, fn func(Record) error) error {
	dir := filepath.Join(root, "data", "quarantine", entityKind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("quarantine: read dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("quarantine: read %s: %w", entry.Name(), err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("quarantine: decode %s: %w", entry.Name(), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
