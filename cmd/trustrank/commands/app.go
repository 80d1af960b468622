package commands

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/wonny/trustrank/internal/audit"
	"github.com/wonny/trustrank/internal/brain"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/internal/forecast"
	"github.com/wonny/trustrank/internal/ranking"
	"github.com/wonny/trustrank/internal/s0_signals"
	"github.com/wonny/trustrank/internal/scorestate"
	"github.com/wonny/trustrank/pkg/config"
	"github.com/wonny/trustrank/pkg/database"
	"github.com/wonny/trustrank/pkg/logger"
	"github.com/wonny/trustrank/pkg/redis"
)

// app wires config, stores and the orchestrator for every command
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	facts     *s0_signals.Repository
	states    *scorestate.Repository
	forecasts *forecast.Repository
	changeLog *audit.Repository
	rankings  *ranking.Repository

	jobState *redis.JobState
	flags    flags.Provider
	redisFlg *flags.RedisProvider

	orchestrator *brain.Orchestrator
}

// loadConfig reads config and builds the logger
func loadConfig() (*config.Config, *logger.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

// newApp connects to Postgres and Redis and builds the orchestrator
func newApp() (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if !rdb.Enabled() {
		log.Warn("Redis disabled: lock is process-local and cursor is not persisted")
	}

	base, err := flags.LoadOrDefault(cfg.Scoring.FlagsFile)
	if err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("load flags: %w", err)
	}
	redisFlags := flags.NewRedisProvider(rdb, base, log.Zerolog())

	a := &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     rdb,
		facts:     s0_signals.NewRepository(db.Pool),
		states:    scorestate.NewRepository(db.Pool),
		forecasts: forecast.NewRepository(db.Pool),
		changeLog: audit.NewRepository(db.Pool),
		rankings:  ranking.NewRepository(db.Pool),
		jobState:  redis.NewJobState(rdb),
		flags:     redisFlags,
		redisFlg:  redisFlags,
	}

	a.orchestrator, err = brain.NewOrchestrator(brain.Dependencies{
		Facts:     a.facts,
		States:    a.states,
		History:   a.states,
		Writes:    scorestate.NewUnitOfWork(db.Pool),
		Forecasts: a.forecasts,
		Locker:    redis.NewLocker(rdb),
		JobState:  a.jobState,
		Flags:     a.flags,
	}, brain.OptionsFromConfig(cfg.Scoring), log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	return a, nil
}

// ping verifies the database before long-running commands
func (a *app) ping(ctx context.Context) error {
	if err := a.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// Close releases connections
func (a *app) Close() {
	a.db.Close()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}
