// Package config loads runtime configuration for the ingestion core
// from the process environment, following the same explicit
// getEnv/parse/validate shape the rest of this codebase uses for its
// ambient configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	crerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/nbavault/vault/internal/platform/logging"
)

var validate = validator.New()

// Config stores everything the CLI needs to wire a store connection,
// the shared rate limiters, the response cache, the quarantine sink,
// and the orchestrator's default backfill plan.
type Config struct {
	AppEnv string `validate:"required"`

	// DBPath is the relational store's SQLite file path.
	DBPath string `validate:"required"`

	// DataRoot is the filesystem root the response cache and
	// quarantine sink are rooted under (cache/<source>/<fingerprint>,
	// data/quarantine/<entity_kind>/...).
	DataRoot string `validate:"required"`

	LeagueID    string `validate:"required"`
	SeasonStart int    `validate:"required,gte=1946"`
	SeasonEnd   int    `validate:"required,gtefield=SeasonStart"`
	SeasonType  string `validate:"required,oneof='Regular Season' Playoffs 'Pre Season'"`
	WorkerCount int    `validate:"required,gt=0"`

	EloArchiveURL               string
	RaptorArchiveURL            string
	PreModernBoxScoreArchiveURL string
	PreAssembledPBPArchiveURL   string

	HTMLArchiveBaseURL string

	LogLevel logging.Level
}

func Load() (Config, error) {
	seasonStart, err := strconv.Atoi(getEnv("VAULT_SEASON_START", "1946"))
	if err != nil {
		return Config{}, crerr.Wrap(err, "parse VAULT_SEASON_START")
	}
	seasonEnd, err := strconv.Atoi(getEnv("VAULT_SEASON_END", "2023"))
	if err != nil {
		return Config{}, crerr.Wrap(err, "parse VAULT_SEASON_END")
	}

	workerCount, err := strconv.Atoi(getEnv("VAULT_WORKER_COUNT", "4"))
	if err != nil {
		return Config{}, crerr.Wrap(err, "parse VAULT_WORKER_COUNT")
	}

	logLevel, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:      getEnv("APP_ENV", "dev"),
		DBPath:      getEnv("VAULT_DB_PATH", "./vault.db"),
		DataRoot:    getEnv("VAULT_DATA_ROOT", "./var"),
		LeagueID:    getEnv("VAULT_LEAGUE_ID", "00"),
		SeasonStart: seasonStart,
		SeasonEnd:   seasonEnd,
		SeasonType:  getEnv("VAULT_SEASON_TYPE", "Regular Season"),
		WorkerCount: workerCount,

		EloArchiveURL:               getEnv("VAULT_ELO_ARCHIVE_URL", ""),
		RaptorArchiveURL:            getEnv("VAULT_RAPTOR_ARCHIVE_URL", ""),
		PreModernBoxScoreArchiveURL: getEnv("VAULT_PRE_MODERN_BOX_SCORE_ARCHIVE_URL", ""),
		PreAssembledPBPArchiveURL:   getEnv("VAULT_PRE_ASSEMBLED_PBP_ARCHIVE_URL", ""),
		HTMLArchiveBaseURL:          getEnv("VAULT_HTML_ARCHIVE_BASE_URL", ""),

		LogLevel: logLevel,
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, crerr.Wrap(err, "config: validation failed")
	}

	return cfg, nil
}

func parseLogLevel(s string) (logging.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logging.LevelDebug, nil
	case "info", "":
		return logging.LevelInfo, nil
	case "warn", "warning":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	default:
		return 0, fmt.Errorf("unrecognized LOG_LEVEL %q", s)
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
