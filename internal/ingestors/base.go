// Package ingestors holds the concrete entity-kind ingestors: one
// family's worth of fetch/validate/upsert logic per file, grouped by
// the orchestrator stage that drives them. Row types are colocated
// with the ingestor that owns them rather than split into separate
// domain packages: only the owning ingestor ever mutates its rows.
package ingestors

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nbavault/vault/internal/era"
	"github.com/nbavault/vault/internal/ingestkit"
	qb "github.com/nbavault/vault/internal/platform/querybuilder"
	"github.com/nbavault/vault/internal/quarantine"
	"github.com/nbavault/vault/internal/store"
)

// Deps bundles the collaborators every concrete ingestor needs. A
// single Deps is constructed once in the central manifest and shared
// by every ingestor factory.
type Deps struct {
	FK          *store.FKPrechecker
	Quarantine  *quarantine.Sink
}

// fieldError names one rejected field within a row, used to build the
// per-row validation trace quarantine expects.
type fieldError struct {
	Field string
	Msg   string
}

func (e fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// requirePositiveID coerces s to a positive int, the declared
// "foreign-key fields reference ids outside the declared
// positive-integer range" check.
func requirePositiveID(field, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return 0, fieldError{Field: field, Msg: "must be a positive integer"}
	}
	return v, nil
}

func requireNonEmpty(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fieldError{Field: field, Msg: "is required"}
	}
	return s, nil
}

// percentField constrains a percentage-like value to [0, 100].
func percentField(field string, v float64) error {
	if v < 0 || v > 100 {
		return fieldError{Field: field, Msg: "must be within [0, 100]"}
	}
	return nil
}

// seasonStartYear parses the "YYYY-YY" season label into its start
// year, as used throughout era-gate checks and row keys.
func seasonStartYear(season string) (int, error) {
	parts := strings.SplitN(season, "-", 2)
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid season label %q", season)
	}
	return year, nil
}

// statsAPICoreFamily groups box score / PBP / shot chart / lineups /
// team advanced under the single 1996+ era gate for the stats-API
// core family.
const statsAPICoreFamily = era.FamilyStatsAPICore

// checkEra is the shared era-gate call site every applicable Fetch
// invokes before any I/O.
func checkEra(family era.Family, season string) error {
	year, err := seasonStartYear(season)
	if err != nil {
		return err
	}
	return checkEraYear(family, year)
}

// checkEraYear is checkEra once the season start year is already in
// hand, shared by season-labeled and game-id-derived call sites alike.
func checkEraYear(family era.Family, year int) error {
	decision := era.Check(family, year)
	if decision.Allowed {
		return nil
	}
	min, _ := era.FirstAllowed(family)
	return &ingestkit.EraViolation{Family: string(family), SeasonYear: year, FirstAllowed: min}
}

// seasonYearFromGameID derives the season start year encoded in a
// 10-char game id's 4th-5th digits (positions [3:5]), e.g.
// "0021500001" -> 2015 (the 2015-16 season), "0019900001" -> 1999.
// Per-game ingestors key off the game id, not a season label: the
// orchestrator only threads Params.Season to season-scoped entity
// kinds (see orchestrator.paramsFor), so a game-scoped Fetch has no
// other source for the season its era gate needs.
func seasonYearFromGameID(gameID string) (int, error) {
	if len(gameID) < 5 {
		return 0, fmt.Errorf("invalid game id %q: too short to derive a season", gameID)
	}
	yy, err := strconv.Atoi(gameID[3:5])
	if err != nil {
		return 0, fmt.Errorf("invalid game id %q: non-numeric season digits", gameID)
	}
	// The league was founded in 1946; two-digit years at or above that
	// belong to the 1900s, lower ones to the 2000s.
	if yy >= 46 {
		return 1900 + yy, nil
	}
	return 2000 + yy, nil
}

// checkEraForGameID era-gates a per-game Fetch call against the season
// derived from the game id itself, instead of Params.Season.
func checkEraForGameID(family era.Family, gameID string) error {
	year, err := seasonYearFromGameID(gameID)
	if err != nil {
		return err
	}
	return checkEraYear(family, year)
}

// quarantineRows writes one record per rejected row and returns only
// the rows that validated, matching the "sibling rows in the same
// response are processed normally" contract.
func quarantineRows[T any](q *quarantine.Sink, entityKind, fingerprint string, candidates []T, validate func(T) error) []any {
	valid := make([]any, 0, len(candidates))
	for _, c := range candidates {
		if err := validate(c); err != nil {
			if q != nil {
				_, _ = q.Write(entityKind, fingerprint, c, []error{err})
			}
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// beginBatchTx opens one transaction on conn; committing or rolling
// it back is left to the caller.
func beginBatchTx(ctx context.Context, conn ingestkit.Conn) (*sql.Tx, error) {
	return conn.BeginTx(ctx, nil)
}

const bulkBatchSize = 1000

func nowUTC() time.Time { return time.Now().UTC() }

func toAnySlice[T any](rows []T) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// fromAnySlice recovers the concrete row type Upsert expects from the
// []any Validate produced, skipping any element of an unexpected type
// rather than panicking (defensive against a caller passing rows from
// a different ingestor's Validate output).
func fromAnySlice[T any](rows []any) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// insertOrReplace builds the parameterized upsert statement for model,
// keyed by uniqueCols, following the insert-or-replace idiom every
// concrete ingestor's upsert uses.
func insertOrReplace(table string, model any, uniqueCols []string, updateCols []string) (string, []any, error) {
	suffix := qb.OnConflictUpdate(uniqueCols, updateCols)
	return qb.InsertModel(table, model, suffix)
}

// rebinder is satisfied by *sqlx.DB; it rewrites "?" placeholders for
// the driver's bind style (a no-op for SQLite, which already uses "?").
type rebinder interface {
	Rebind(string) string
}

// upsertMany opens one transaction, issues one insert-or-replace per
// row, and commits — the ordinary (non-bulk) ingestor upsert shape
// shared across every entity kind below.
func upsertMany[T any](ctx context.Context, conn ingestkit.Conn, db rebinder, table string, uniqueCols, updateCols []string, rows []T) (int, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", table, err)
	}

	count := 0
	for _, row := range rows {
		query, args, err := insertOrReplace(table, row, uniqueCols, updateCols)
		if err != nil {
			tx.Rollback()
			return count, fmt.Errorf("%s: build upsert: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, db.Rebind(query), args...); err != nil {
			tx.Rollback()
			return count, fmt.Errorf("%s: exec upsert: %w", table, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, fmt.Errorf("%s: commit tx: %w", table, err)
	}
	return count, nil
}

// upsertManyChunked is upsertMany's bulk-ingestor counterpart: it
// commits every chunkSize rows in its own transaction instead of one
// transaction for the whole call, keeping the write-ahead journal
// bounded on multi-million-row archives.
func upsertManyChunked[T any](ctx context.Context, conn ingestkit.Conn, db rebinder, table string, uniqueCols, updateCols []string, rows []T, chunkSize int) (int, error) {
	total := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		n, err := upsertMany(ctx, conn, db, table, uniqueCols, updateCols, rows[start:end])
		total += n
		if err != nil {
			return total, err
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
	}
	return total, nil
}
