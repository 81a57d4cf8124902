// Command vault is the thin CLI adapter over the ingestion API: every
// subcommand builds the shared collaborators once and calls straight
// into internal/orchestrator or internal/ingestkit. It holds no
// ingestion logic of its own.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nbavault/vault/internal/config"
	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/ingestors"
	"github.com/nbavault/vault/internal/orchestrator"
	"github.com/nbavault/vault/internal/platform/logging"
	"github.com/nbavault/vault/internal/platform/ratelimit"
	"github.com/nbavault/vault/internal/platform/filecache"
	"github.com/nbavault/vault/internal/quarantine"
	"github.com/nbavault/vault/internal/sourceadapters/bulkarchive"
	"github.com/nbavault/vault/internal/sourceadapters/htmlarchive"
	"github.com/nbavault/vault/internal/sourceadapters/scraper"
	"github.com/nbavault/vault/internal/sourceadapters/statsapi"
	"github.com/nbavault/vault/internal/store"
)

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "vault",
		Short: "NBA Vault ingestion CLI",
	}

	root.AddCommand(backfillCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(listIngestorsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles every collaborator a subcommand needs, built once from
// config and torn down by the caller.
type app struct {
	cfg    config.Config
	db     *sqlx.DB
	reg    *ingestkit.Registry
	runner *ingestkit.Runner
	logger *logging.Logger
}

func buildApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)

	db, err := store.Open(store.DefaultConfig(cfg.DBPath))
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Ping(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping store: %w", err)
	}

	limiter := ratelimit.NewRegistry()
	cache := filecache.New(cfg.DataRoot)
	sink := quarantine.New(cfg.DataRoot)

	httpClient := &http.Client{Timeout: 20 * time.Second}

	statsClient := statsapi.NewClient(statsapi.Config{HTTPClient: httpClient, Logger: logger}, limiter, cache)
	htmlClient := htmlarchive.NewClient(cfg.HTMLArchiveBaseURL, httpClient, limiter, cache)
	bulkClient := bulkarchive.NewClient(httpClient)
	scraperClient := scraper.NewClient(httpClient, limiter)

	deps := ingestors.Deps{
		FK:         store.NewFKPrechecker(db),
		Quarantine: sink,
	}

	reg := ingestors.Build(ingestors.Resources{
		DB:          db,
		Deps:        deps,
		StatsAPI:    statsClient,
		HTMLArchive: htmlClient,
		BulkArchive: bulkClient,
		Scraper:     scraperClient,
		BulkURLs: ingestors.BulkSourceURLs{
			Elo:               cfg.EloArchiveURL,
			Raptor:            cfg.RaptorArchiveURL,
			PreModernBoxScore: cfg.PreModernBoxScoreArchiveURL,
			PreAssembledPBP:   cfg.PreAssembledPBPArchiveURL,
		},
	})

	audit := store.NewAuditRepository(db)
	runner := ingestkit.NewRunner(db, audit, logger)

	a := &app{cfg: cfg, db: db, reg: reg, runner: runner, logger: logger}
	cleanup := func() {
		_ = logger.Sync()
		db.Close()
	}
	return a, cleanup, nil
}

func backfillCmd() *cobra.Command {
	var leagueID string
	var seasonStart, seasonEnd, workers int
	var seasonType string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Run the full six-stage historical backfill",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			a, cleanup, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if leagueID == "" {
				leagueID = a.cfg.LeagueID
			}
			if seasonStart == 0 {
				seasonStart = a.cfg.SeasonStart
			}
			if seasonEnd == 0 {
				seasonEnd = a.cfg.SeasonEnd
			}
			if seasonType == "" {
				seasonType = a.cfg.SeasonType
			}
			if workers == 0 {
				workers = a.cfg.WorkerCount
			}

			orch := orchestrator.New(a.reg, a.runner, a.db, a.logger)
			report, err := orch.RunBackfill(ctx, orchestrator.Plan{
				LeagueID:    leagueID,
				SeasonStart: seasonStart,
				SeasonEnd:   seasonEnd,
				SeasonType:  seasonType,
				WorkerCount: workers,
			})
			if err != nil {
				return fmt.Errorf("run backfill: %w", err)
			}

			summary := report.Summary()
			a.logger.Info("backfill finished",
				"success", summary.Success, "empty", summary.Empty,
				"failed", summary.Failed, "skipped", summary.Skipped,
				"cancelled", report.Cancelled)

			if summary.Failed > 0 {
				return fmt.Errorf("backfill completed with %d failed task(s)", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&leagueID, "league", "", "league id override")
	cmd.Flags().IntVar(&seasonStart, "season-start", 0, "first season start year")
	cmd.Flags().IntVar(&seasonEnd, "season-end", 0, "last season start year")
	cmd.Flags().StringVar(&seasonType, "season-type", "", "Regular Season | Playoffs | Pre Season")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers per stage")
	return cmd
}

func ingestCmd() *cobra.Command {
	var season, seasonType, scope, sourceURL, source string
	var teamID int

	cmd := &cobra.Command{
		Use:   "ingest <entity-kind> <entity-id>",
		Short: "Run a single ingestor's ingest() call against one entity id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			a, cleanup, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			kind, entityID := args[0], args[1]
			ing, err := a.reg.Create(kind)
			if err != nil {
				return err
			}

			params := ingestkit.Params{
				Season:     season,
				SeasonType: seasonType,
				TeamID:     teamID,
				Scope:      scope,
				SourceURL:  sourceURL,
				Source:     source,
			}
			result := a.runner.Ingest(ctx, ing, entityID, params)
			a.logger.Info("ingest finished",
				"entity_kind", kind, "entity_id", entityID,
				"status", string(result.Status), "rows_affected", result.RowsAffected,
				"error", result.ErrorMessage)

			if result.Status == ingestkit.StatusFailed {
				return fmt.Errorf("ingest failed: %s", result.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&season, "season", "", `season label, e.g. "2015-16"`)
	cmd.Flags().StringVar(&seasonType, "season-type", "Regular Season", "Regular Season | Playoffs | Pre Season")
	cmd.Flags().IntVar(&teamID, "team-id", 0, "team id filter")
	cmd.Flags().StringVar(&scope, "scope", "", `"league" | "team:<id>" | "game:<id>"`)
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "bulk archive URL override")
	cmd.Flags().StringVar(&source, "source", "", `scraper backend: "espn" | "rotowire"`)
	return cmd
}

func listIngestorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-ingestors",
		Short: "List every registered entity kind, grouped by backfill stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			for stage, kinds := range ingestors.Stages {
				fmt.Printf("stage %d:\n", stage)
				for _, kind := range kinds {
					fmt.Printf("  %s\n", kind)
				}
			}
			return nil
		},
	}
}
