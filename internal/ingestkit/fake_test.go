package ingestkit

import "context"

// fakeIngestor is a scriptable Ingestor used across this package's
// tests: each stage's behavior is supplied by closures so a single
// type can stand in for any entity kind under test.
type fakeIngestor struct {
	kind       string
	source     string
	fetchFn    func(ctx context.Context, entityID string, params Params) (any, error)
	validateFn func(raw any) ([]any, error)
	upsertFn   func(ctx context.Context, conn Conn, rows []any) (int, error)
}

func (f fakeIngestor) EntityKind() string {
	return f.kind
}

func (f fakeIngestor) Source(Params) string {
	if f.source == "" {
		return "stub_source"
	}
	return f.source
}

func (f fakeIngestor) Fetch(ctx context.Context, entityID string, params Params) (any, error) {
	if f.fetchFn == nil {
		return nil, nil
	}
	return f.fetchFn(ctx, entityID, params)
}

func (f fakeIngestor) Validate(raw any) ([]any, error) {
	if f.validateFn == nil {
		return []any{raw}, nil
	}
	return f.validateFn(raw)
}

func (f fakeIngestor) Upsert(ctx context.Context, conn Conn, rows []any) (int, error) {
	if f.upsertFn == nil {
		return len(rows), nil
	}
	return f.upsertFn(ctx, conn, rows)
}
