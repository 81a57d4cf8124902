// Package orchestrator drives the multi-stage historical backfill: it
// fans out per-season / per-game / per-player work to the registered
// ingestors in the stage order internal/ingestors.Stages declares, and
// enforces a barrier between stages so foreign-key dependencies are
// always satisfied before the next stage starts.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/panjf2000/ants/v2"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/ingestors"
	"github.com/nbavault/vault/internal/platform/logging"
	qb "github.com/nbavault/vault/internal/platform/querybuilder"
)

// Plan is the operator-supplied scope for one backfill run.
type Plan struct {
	LeagueID    string // e.g. "00" for the league catalog endpoints
	SeasonStart int    // first season start year to backfill, inclusive
	SeasonEnd   int    // last season start year to backfill, inclusive
	SeasonType  string // "Regular Season" | "Playoffs" | "Pre Season"
	WorkerCount int     // parallel workers per entity kind; default 1, typical 4
}

func (p Plan) workerCount() int {
	if p.WorkerCount > 0 {
		return p.WorkerCount
	}
	return 1
}

// iterationMode describes how a stage enumerates entity ids for one
// registered entity kind, derived from that ingestor's Fetch signature.
type iterationMode int

const (
	iterLeague iterationMode = iota // single call keyed by the league id
	iterSeason                      // one call per season label in the plan's range
	iterGame                        // one call per game id already present in the store
	iterPlayer                      // one call per player id already present in the store
	iterOnce                        // exactly one call with the "all" sentinel
)

// kindPlans is the static iteration metadata for every entity kind the
// manifest registers. A kind missing here is a programmer error: every
// concrete ingestor in internal/ingestors must have an iteration mode
// so the orchestrator can enumerate it without inspecting its Fetch
// signature at runtime.
var kindPlans = map[string]iterationMode{
	"bulk_elo":                 iterOnce,
	"bulk_raptor":               iterOnce,
	"bulk_pre_modern_box_score": iterOnce,
	"bulk_pre_assembled_pbp":    iterOnce,

	"season":    iterLeague,
	"franchise": iterLeague,
	"player":    iterLeague,

	"schedule":             iterSeason,
	"lineup":               iterSeason,
	"team_advanced":        iterSeason,
	"coach":                iterSeason,
	"draft":                iterSeason,
	"player_season_stats":  iterSeason,

	"official":              iterGame,
	"box_score_traditional": iterGame,
	"box_score_advanced":    iterGame,
	"box_score_hustle":      iterGame,
	"team_other_stats":      iterGame,
	"play_by_play":          iterGame,
	"shot_chart":            iterGame,

	"player_bio": iterPlayer,
	"award":      iterPlayer,
	"tracking":   iterPlayer,

	"injury":   iterOnce,
	"contract": iterOnce,
}

// TaskResult pairs one ingest() outcome with the entity kind it came
// from, so a stage report can be broken down per kind.
type TaskResult struct {
	Kind   string
	Result ingestkit.Result
}

// StageReport summarizes one stage's run: every task it drove plus the
// rolled-up terminal-status counts the run summary reports.
type StageReport struct {
	Stage     int
	Tasks     []TaskResult
	Success   int
	Empty     int
	Failed    int
	Skipped   int
	Cancelled bool
}

// Report is the full backfill's outcome, one StageReport per stage
// actually attempted. A cancelled run's Report is simply short: it
// holds only the stages that started before cancellation was observed.
type Report struct {
	Stages    []StageReport
	Cancelled bool
}

// Summary rolls every stage's counts into the {success, empty, failed,
// skipped} shape the external interface documents. FAILED is the only
// outcome that should produce a non-zero caller exit code.
type Summary struct {
	Success int
	Empty   int
	Failed  int
	Skipped int
}

func (r Report) Summary() Summary {
	var s Summary
	for _, stage := range r.Stages {
		s.Success += stage.Success
		s.Empty += stage.Empty
		s.Failed += stage.Failed
		s.Skipped += stage.Skipped
	}
	return s
}

// Orchestrator holds the shared collaborators every stage's worker
// pool needs: the registry to create fresh ingestor instances, the
// runner to compose fetch/validate/upsert/audit, and the store
// connection used only to enumerate entity ids between stage barriers.
type Orchestrator struct {
	reg    *ingestkit.Registry
	runner *ingestkit.Runner
	db     *sqlx.DB
	logger *logging.Logger
}

func New(reg *ingestkit.Registry, runner *ingestkit.Runner, db *sqlx.DB, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{reg: reg, runner: runner, db: db, logger: logger}
}

// RunBackfill drives every stage in internal/ingestors.Stages order,
// draining one stage's worker pools completely before the next stage's
// entity ids are even enumerated — the barrier that keeps foreign-key
// dependencies satisfied. Cancellation is cooperative: ctx is checked
// between stages and between kinds within a stage; any task already
// submitted to a worker pool runs to its terminal audit state before
// the run stops accepting new work.
func (o *Orchestrator) RunBackfill(ctx context.Context, plan Plan) (Report, error) {
	var report Report

	for stageIdx, kinds := range ingestors.Stages {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		o.logger.InfoContext(ctx, "orchestrator: stage starting", "stage", stageIdx, "kinds", kinds)
		stageReport, err := o.runStage(ctx, stageIdx, kinds, plan)
		if err != nil {
			return report, fmt.Errorf("orchestrator: stage %d: %w", stageIdx, err)
		}
		report.Stages = append(report.Stages, stageReport)
		o.logger.InfoContext(ctx, "orchestrator: stage finished",
			"stage", stageIdx, "success", stageReport.Success, "empty", stageReport.Empty,
			"failed", stageReport.Failed, "skipped", stageReport.Skipped, "cancelled", stageReport.Cancelled)

		if stageReport.Cancelled {
			report.Cancelled = true
			break
		}
	}

	return report, nil
}

// runStage runs every kind in the stage to completion, one kind at a
// time. Kinds within a stage are not fanned out concurrently against
// each other: some (e.g. draft against player) share a foreign-key
// dependency on another kind in the very same stage, and the manifest
// only orders kinds within a stage, it does not mark which pairs are
// independent. Running kinds sequentially while fanning entity ids out
// in parallel within each kind satisfies every documented invariant
// without guessing at cross-kind independence.
func (o *Orchestrator) runStage(ctx context.Context, stageIdx int, kinds []string, plan Plan) (StageReport, error) {
	rep := StageReport{Stage: stageIdx}

	for _, kind := range kinds {
		if ctx.Err() != nil {
			rep.Cancelled = true
			return rep, nil
		}

		ids, err := o.entityIDs(ctx, kind, plan)
		if err != nil {
			return rep, fmt.Errorf("enumerate entity ids for %q: %w", kind, err)
		}
		if len(ids) == 0 {
			continue
		}

		results, cancelled, err := o.runKind(ctx, kind, ids, plan)
		if err != nil {
			return rep, fmt.Errorf("run kind %q: %w", kind, err)
		}

		for _, tr := range results {
			rep.Tasks = append(rep.Tasks, tr)
			switch tr.Result.Status {
			case ingestkit.StatusSuccess:
				rep.Success++
			case ingestkit.StatusEmpty:
				rep.Empty++
			case ingestkit.StatusFailed:
				rep.Failed++
			case ingestkit.StatusSkipped:
				rep.Skipped++
			}
		}

		if cancelled {
			rep.Cancelled = true
			return rep, nil
		}
	}

	return rep, nil
}

// runKind fans entity ids for one kind out across a worker pool sized
// by plan.WorkerCount. The pool is the only per-kind concurrency; the
// per-source rate limiters inside the shared client instances are the
// serialization point across workers, exactly as the concurrency model
// requires. Cancellation stops new submissions but never interrupts a
// task already handed to the pool, so a cancelled run still commits
// whatever it has in flight and still writes every pending audit row.
func (o *Orchestrator) runKind(ctx context.Context, kind string, ids []string, plan Plan) ([]TaskResult, bool, error) {
	pool, err := ants.NewPool(plan.workerCount())
	if err != nil {
		return nil, false, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan TaskResult, len(ids))
	var workers sync.WaitGroup
	cancelled := false

submitLoop:
	for _, entityID := range ids {
		select {
		case <-ctx.Done():
			cancelled = true
			break submitLoop
		default:
		}

		entityID := entityID
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			results <- o.runOne(ctx, kind, entityID, plan)
		}); err != nil {
			workers.Done()
			return nil, cancelled, fmt.Errorf("submit task: %w", err)
		}
	}

	workers.Wait()
	close(results)

	out := make([]TaskResult, 0, len(ids))
	for tr := range results {
		out = append(out, tr)
	}
	return out, cancelled, nil
}

func (o *Orchestrator) runOne(ctx context.Context, kind, entityID string, plan Plan) TaskResult {
	ing, err := o.reg.Create(kind)
	if err != nil {
		return TaskResult{Kind: kind, Result: ingestkit.Result{
			Status:       ingestkit.StatusFailed,
			EntityID:     entityID,
			ErrorMessage: err.Error(),
		}}
	}
	res := o.runner.Ingest(ctx, ing, entityID, paramsFor(kind, plan, entityID))
	return TaskResult{Kind: kind, Result: res}
}

// paramsFor builds the ingestkit.Params an entity kind's Fetch expects
// given its iteration mode: season-iterated kinds read the season
// label back out of the entity id the orchestrator just generated for
// them, since some (draft) key their source query off Params.Season
// rather than the entity id argument. tracking
// is per-player (entityID is the player id) but still needs a season
// to era-gate and query against, so a backfill run scopes it to the
// plan's most recent season; a direct single-entity `vault ingest`
// call supplies whatever season the operator asks for instead.
func paramsFor(kind string, plan Plan, entityID string) ingestkit.Params {
	p := ingestkit.Params{SeasonType: plan.SeasonType}
	if kindPlans[kind] == iterSeason {
		p.Season = entityID
	}
	if kind == "tracking" {
		p.Season = seasonLabel(plan.SeasonEnd)
	}
	if kind == "injury" {
		p.Source = "espn"
	}
	return p
}

// entityIDs enumerates the entity ids one kind's stage should iterate,
// per its iteration mode. Game and player ids are read back from the
// store rather than computed, since they only exist once an earlier
// stage (schedule, player) has ingested them — the reason the
// orchestrator enforces a hard barrier between stages at all.
func (o *Orchestrator) entityIDs(ctx context.Context, kind string, plan Plan) ([]string, error) {
	mode, ok := kindPlans[kind]
	if !ok {
		return nil, fmt.Errorf("no iteration plan registered for entity kind %q", kind)
	}

	switch mode {
	case iterOnce:
		return []string{"all"}, nil
	case iterLeague:
		return []string{plan.LeagueID}, nil
	case iterSeason:
		return seasonLabels(plan.SeasonStart, plan.SeasonEnd), nil
	case iterGame:
		return o.queryIDs(ctx, "game_id", "games")
	case iterPlayer:
		return o.queryIDs(ctx, "player_id", "players")
	default:
		return nil, fmt.Errorf("unhandled iteration mode for entity kind %q", kind)
	}
}

// seasonLabels builds the "YYYY-YY" labels for every season start year
// in [from, to], the label convention every season-scoped ingestor's
// Fetch expects as its entity id.
func seasonLabels(from, to int) []string {
	if to < from {
		return nil
	}
	labels := make([]string, 0, to-from+1)
	for year := from; year <= to; year++ {
		labels = append(labels, seasonLabel(year))
	}
	return labels
}

func seasonLabel(year int) string {
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

// queryIDs reads back every value of column from table, used to turn
// an earlier stage's freshly-ingested rows into this stage's iteration
// list. Order is stable (ascending by column) so repeated runs over an
// unchanged store visit entities in the same order.
func (o *Orchestrator) queryIDs(ctx context.Context, column, table string) ([]string, error) {
	query, args, err := qb.Select(column).From(table).OrderBy(column).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build id query: %w", err)
	}

	rows, err := o.db.QueryxContext(ctx, o.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
		}
		out = append(out, fmt.Sprint(v))
	}
	return out, rows.Err()
}
