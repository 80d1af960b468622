package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/trustrank/internal/audit"
	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/internal/forecast"
	"github.com/wonny/trustrank/internal/s0_signals"
	"github.com/wonny/trustrank/internal/s1_scoring"
	"github.com/wonny/trustrank/internal/s2_stability"
	"github.com/wonny/trustrank/pkg/config"
	"github.com/wonny/trustrank/pkg/logger"
)

// ErrRecomputeDisabled kill switch is off
var ErrRecomputeDisabled = errors.New("recompute disabled by flag")

// maxSaveAttempts optimistic write retries per company
const maxSaveAttempts = 3

// maxErrorSummary error messages kept in a run result
const maxErrorSummary = 20

// Dependencies stores and coordination primitives used by the orchestrator
// States/History 는 읽기 전용, 점수 쓰기는 Writes 트랜잭션으로만
type Dependencies struct {
	Facts     contracts.FactsRepository
	States    contracts.ScoreStateRepository
	History   contracts.HistoryRepository
	Writes    contracts.UnitOfWork
	Forecasts contracts.ForecastRepository
	Locker    contracts.Locker
	JobState  contracts.JobStateStore
	Flags     flags.Provider
}

// Options batch and smoothing parameters
type Options struct {
	JobName    string
	LockName   string
	LockTTL    time.Duration
	PageSize   int
	Workers    int
	TimeBudget time.Duration // 0 = 무제한

	RatePerSecond float64 // 0 = 무제한

	TrustCapPercent   float64
	FundamentalsAlpha float64
	HistoryWindow     int
}

// OptionsFromConfig maps scoring config to orchestrator options
func OptionsFromConfig(cfg config.ScoringConfig) Options {
	return Options{
		JobName:           cfg.JobName,
		LockName:          cfg.LockName,
		LockTTL:           cfg.LockTTL,
		PageSize:          cfg.PageSize,
		Workers:           cfg.Workers,
		TimeBudget:        cfg.TimeBudget,
		RatePerSecond:     cfg.RatePerSecond,
		TrustCapPercent:   cfg.TrustCapPercent,
		FundamentalsAlpha: cfg.FundamentalsAlpha,
		HistoryWindow:     cfg.HistoryWindow,
	}
}

// Orchestrator drives recomputation of one company or the whole registry
// ⭐ SSOT: 재계산 파이프라인 조율은 여기서만
// S0(signals) → S1(engines) → S2(smoothing) → persist → audit → forecast
type Orchestrator struct {
	deps Dependencies
	opts Options

	aggregator   *s0_signals.Aggregator
	fundamentals *s1_scoring.FundamentalsEngine
	trust        *s1_scoring.TrustEngine
	policy       *s2_stability.Policy
	projector    *forecast.Projector
	recorder     *audit.Recorder
	limiter      *rate.Limiter

	logger *logger.Logger
	now    func() time.Time
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps Dependencies, opts Options, log *logger.Logger) (*Orchestrator, error) {
	if opts.JobName == "" || opts.LockName == "" {
		return nil, fmt.Errorf("%w: job and lock names are required", contracts.ErrInvalidInput)
	}
	if opts.PageSize <= 0 || opts.Workers <= 0 || opts.LockTTL <= 0 {
		return nil, fmt.Errorf("%w: page size, workers and lock ttl must be positive", contracts.ErrInvalidInput)
	}
	if deps.Writes == nil {
		return nil, fmt.Errorf("%w: score writer is required", contracts.ErrInvalidInput)
	}

	policy, err := s2_stability.DefaultPolicy(opts.TrustCapPercent, opts.FundamentalsAlpha)
	if err != nil {
		return nil, fmt.Errorf("smoothing policy: %w", err)
	}

	if deps.Flags == nil {
		deps.Flags = flags.NewStatic(flags.Defaults())
	}

	o := &Orchestrator{
		deps:         deps,
		opts:         opts,
		aggregator:   s0_signals.NewAggregator(deps.Facts, deps.States, deps.History, opts.HistoryWindow, log),
		fundamentals: s1_scoring.NewFundamentalsEngine(),
		trust:        s1_scoring.NewTrustEngine(),
		policy:       policy,
		projector:    forecast.NewProjector(log.Zerolog()),
		recorder:     audit.NewRecorder(log),
		logger:       log.WithComponent("brain.orchestrator"),
		now:          time.Now,
	}

	if opts.RatePerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), max(1, int(opts.RatePerSecond)))
	}
	return o, nil
}

// RecomputeOne synchronously recomputes one company. Idempotent per day.
func (o *Orchestrator) RecomputeOne(ctx context.Context, companyID string) (*contracts.RecomputeResult, error) {
	snap := o.deps.Flags.Snapshot(ctx)
	if !snap.Enabled(flags.RecomputeEnabled) {
		return nil, contracts.NewError(contracts.KindCoordination, "brain.recompute_one", companyID, ErrRecomputeDisabled)
	}

	result, err := o.recomputeCompany(ctx, snap, "", companyID)
	if err != nil {
		o.logger.WithError(err).WithField("company_id", companyID).Warn("Recompute failed")
		return nil, err
	}

	o.logger.WithFields(map[string]interface{}{
		"company_id":   companyID,
		"trust":        result.TrustScore,
		"raw_trust":    result.RawTrustScore,
		"fundamentals": result.FundamentalsScore,
	}).Info("Company recomputed")

	return result, nil
}
