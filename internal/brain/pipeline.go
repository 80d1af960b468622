package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/internal/forecast"
	"github.com/wonny/trustrank/internal/s1_scoring"
	"github.com/wonny/trustrank/internal/s2_stability"
)

// recomputeCompany runs the per-company pipeline, retrying the whole read-compute-write
// cycle when another writer bumped the state version in between.
func (o *Orchestrator) recomputeCompany(ctx context.Context, snap flags.Snapshot, runID, companyID string) (*contracts.RecomputeResult, error) {
	if companyID == "" {
		return nil, contracts.ErrMissingCompanyID
	}

	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		result, err := o.recomputeAttempt(ctx, snap, runID, companyID)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, contracts.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		o.logger.WithFields(map[string]interface{}{
			"company_id": companyID,
			"attempt":    attempt,
		}).Debug("Score state version conflict, retrying")
	}
	return nil, lastErr
}

func (o *Orchestrator) recomputeAttempt(ctx context.Context, snap flags.Snapshot, runID, companyID string) (*contracts.RecomputeResult, error) {
	now := o.now().UTC()

	// S0: signals + current state
	signals, prev, err := o.aggregator.CollectWithState(ctx, companyID, now)
	if err != nil {
		return nil, err
	}

	// S1: engines
	fund, err := o.fundamentals.Score(signals)
	if err != nil {
		return nil, contracts.NewError(contracts.KindComputation, "brain.fundamentals", companyID, err)
	}
	trust, err := o.trust.Score(signals)
	if err != nil {
		return nil, contracts.NewError(contracts.KindComputation, "brain.trust", companyID, err)
	}
	for _, r := range []*contracts.EngineResult{fund, trust} {
		if err := contracts.Validate(r); err != nil {
			return nil, contracts.NewError(contracts.KindComputation, "brain.validate", companyID, err)
		}
	}

	// S2: smoothing + volatility
	next := o.buildState(signals, prev, fund, trust, now)
	if err := next.Validate(); err != nil {
		return nil, contracts.NewError(contracts.KindComputation, "brain.state", companyID, err)
	}

	// state → snapshot(엔진 버전별 1행) → history → change log 는 한 트랜잭션
	point := contracts.ScoreHistoryPoint{CompanyID: companyID, RecordedAt: now, Score: *next.TrustScore}
	var changes []contracts.ChangeLogEntry
	err = o.deps.Writes.WithinTx(ctx, func(ctx context.Context, w contracts.ScoreWriter) error {
		if err := w.SaveState(ctx, next); err != nil {
			if errors.Is(err, contracts.ErrVersionConflict) {
				return err
			}
			return contracts.NewError(contracts.KindPersistence, "brain.save_state", companyID, err)
		}
		if err := w.UpsertSnapshots(ctx,
			snapshotOf(fund, *next.FundamentalsScore, now),
			snapshotOf(trust, *next.TrustScore, now),
		); err != nil {
			return contracts.NewError(contracts.KindPersistence, "brain.snapshots", companyID, err)
		}
		if err := w.AppendHistory(ctx, point); err != nil {
			return contracts.NewError(contracts.KindPersistence, "brain.history", companyID, err)
		}
		entries, err := o.recorder.Record(ctx, w, snap, runID, prev, next)
		if err != nil {
			return contracts.NewError(contracts.KindPersistence, "brain.change_log", companyID, err)
		}
		changes = entries
		return nil
	})
	if err != nil {
		var se *contracts.ScoreError
		if errors.Is(err, contracts.ErrVersionConflict) || errors.As(err, &se) {
			return nil, err
		}
		return nil, contracts.NewError(contracts.KindPersistence, "brain.commit", companyID, err)
	}

	result := &contracts.RecomputeResult{
		CompanyID:              companyID,
		TrustScore:             *next.TrustScore,
		RawTrustScore:          trust.Score,
		TrustConfidence:        trust.Confidence,
		FundamentalsScore:      *next.FundamentalsScore,
		FundamentalsConfidence: fund.Confidence,
		DataConfidence:         next.DataConfidence,
		StabilityProfile:       next.StabilityProfile,
		ChangeLog:              changes,
	}

	// S3: forecast (flag-gated)
	if snap.Enabled(flags.ForecastEnabled) {
		forecasts, err := o.projector.Project(forecast.ProjectionInput{
			CompanyID:     companyID,
			CurrentScore:  *next.TrustScore,
			Confidence:    trust.Confidence,
			History:       append([]contracts.ScoreHistoryPoint{point}, signals.History...),
			AsOf:          now,
			Revenue:       signals.Revenue,
			Profit:        signals.Profit,
			EmployeeCount: signals.EmployeeCount,
			Industry:      signals.Industry,
			Country:       signals.Country,
		})
		if err != nil {
			return nil, contracts.NewError(contracts.KindComputation, "brain.forecast", companyID, err)
		}
		for _, f := range forecasts {
			if err := contracts.Validate(f); err != nil {
				return nil, contracts.NewError(contracts.KindComputation, "brain.forecast", companyID, err)
			}
		}
		if err := o.deps.Forecasts.UpsertForecasts(ctx, forecasts); err != nil {
			return nil, contracts.NewError(contracts.KindPersistence, "brain.forecasts", companyID, err)
		}
		result.Forecasts = forecasts
	}

	return result, nil
}

// buildState derives the next published state. Pure except for its inputs.
// Smoothing 기준점은 signals.Previous* (오늘 이전 마지막 게시 점수) 이므로
// 같은 날 몇 번을 돌려도 cap 은 하루 한 번만 적용된다.
func (o *Orchestrator) buildState(
	signals *contracts.CompanySignals,
	prev *contracts.CompanyScoreState,
	fund, trust *contracts.EngineResult,
	now time.Time,
) *contracts.CompanyScoreState {
	trustScore := o.policy.Smooth(contracts.ScoreTypeTrust, trust.Score, signals.PreviousTrustScore)
	fundScore := o.policy.Smooth(contracts.ScoreTypeFundamentals, fund.Score, signals.PreviousFundamentalsScore)

	deltas := s2_stability.RecentDeltas(signals.HistoryScores(), trustScore, s2_stability.VolatilityWindow)
	profile := s2_stability.Classify(deltas)

	next := &contracts.CompanyScoreState{
		CompanyID:              signals.CompanyID,
		FundamentalsScore:         &fundScore,
		PreviousFundamentalsScore: copyInt(signals.PreviousFundamentalsScore),
		FundamentalsConfidence:    contracts.IntPtr(fund.Confidence),
		FundamentalsComponents:    fund.Components.Fundamentals,
		TrustScore:                &trustScore,
		PreviousTrustScore:        copyInt(signals.PreviousTrustScore),
		TrustScoreDelta:           s2_stability.Delta(trustScore, signals.PreviousTrustScore),
		TrustComponents:           trust.Components.Trust,
		StabilityProfile:          profile,
		DataConfidence:            s1_scoring.DataConfidence(signals),
		RiskFlags:                 s2_stability.ApplyVolatilityFlag(signals.RiskFlags, profile),
		LastScoredAt:              &now,
		ScoreUpdatedAt:            &now,
	}

	if fund.Valuation != nil {
		low, high, currency := fund.Valuation.Low, fund.Valuation.High, fund.Valuation.Currency
		next.ValuationLow = &low
		next.ValuationHigh = &high
		next.ValuationCurrency = &currency
	}
	if prev != nil {
		next.Version = prev.Version
	}
	return next
}

// snapshotOf records the published score with the engine's breakdown
func snapshotOf(r *contracts.EngineResult, published int, now time.Time) contracts.ScoreSnapshot {
	return contracts.ScoreSnapshot{
		CompanyID:  r.CompanyID,
		AsOfDate:   contracts.AsOfDate(now),
		Version:    r.Version,
		Score:      published,
		Confidence: r.Confidence,
		Components: r.Components,
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// describe short error text for run summaries
func describe(companyID string, err error) string {
	return fmt.Sprintf("%s: [%s] %v", companyID, contracts.KindOf(err), err)
}
