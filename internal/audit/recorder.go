package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/internal/s1_scoring"
	"github.com/wonny/trustrank/pkg/logger"
)

// Threshold significance rule for one score type
type Threshold struct {
	ScoreType  contracts.ScoreType
	ChangeType contracts.ChangeType
	Version    string
	// entry written when |delta| > Min
	Min int
}

// Thresholds ⭐ SSOT: 변동 기록 기준은 여기서만
// trust 는 smoothing cap(7%)으로 1회 최대 7점 이동
var Thresholds = []Threshold{
	{ScoreType: contracts.ScoreTypeTrust, ChangeType: contracts.ChangeTrustScore, Version: s1_scoring.TrustVersion, Min: 5},
	{ScoreType: contracts.ScoreTypeFundamentals, ChangeType: contracts.ChangeFundamentalsScore, Version: s1_scoring.FundamentalsVersion, Min: 10},
}

// Appender change-log write side (repository or an open transaction)
type Appender interface {
	AppendChangeLog(ctx context.Context, entries ...contracts.ChangeLogEntry) error
}

// Recorder decides which score movements are significant and appends them to the change log
type Recorder struct {
	logger *logger.Logger
	now    func() time.Time
}

// NewRecorder creates a change-log recorder
func NewRecorder(log *logger.Logger) *Recorder {
	return &Recorder{
		logger: log.WithComponent("audit.recorder"),
		now:    time.Now,
	}
}

// Record compares the published scores of prev and next and writes all significant
// movements to w in a single call. prev == nil (first scoring) produces nothing.
func (r *Recorder) Record(ctx context.Context, w Appender, snap flags.Snapshot, runID string, prev, next *contracts.CompanyScoreState) ([]contracts.ChangeLogEntry, error) {
	if !snap.Enabled(flags.ChangeLogEnabled) {
		return nil, nil
	}

	entries := Significant(prev, next, runID, r.createdAt(next))
	if len(entries) == 0 {
		return nil, nil
	}

	if err := w.AppendChangeLog(ctx, entries...); err != nil {
		return nil, fmt.Errorf("append change log: %w", err)
	}

	for _, e := range entries {
		r.logger.WithFields(map[string]interface{}{
			"company_id": e.CompanyID,
			"type":       e.ChangeType,
			"previous":   e.Metadata.Previous,
			"current":    e.Metadata.Current,
		}).Info("Significant score change recorded")
	}
	return entries, nil
}

func (r *Recorder) createdAt(next *contracts.CompanyScoreState) time.Time {
	if next != nil && next.ScoreUpdatedAt != nil {
		return next.ScoreUpdatedAt.UTC()
	}
	return r.now().UTC()
}

// Significant returns one entry per score type whose |delta| exceeds its threshold
func Significant(prev, next *contracts.CompanyScoreState, runID string, at time.Time) []contracts.ChangeLogEntry {
	if prev == nil || next == nil {
		return nil
	}

	var entries []contracts.ChangeLogEntry
	for _, th := range Thresholds {
		before, after := scoreOf(prev, th.ScoreType), scoreOf(next, th.ScoreType)
		if before == nil || after == nil {
			continue
		}
		delta := *after - *before
		if abs(delta) <= th.Min {
			continue
		}
		entries = append(entries, contracts.ChangeLogEntry{
			CompanyID:  next.CompanyID,
			ChangeType: th.ChangeType,
			Metadata: contracts.ChangeMetadata{
				ScoreType: th.ScoreType,
				Previous:  *before,
				Current:   *after,
				Delta:     delta,
				Threshold: th.Min,
				Version:   th.Version,
				RunID:     runID,
			},
			CreatedAt: at,
		})
	}
	return entries
}

func scoreOf(s *contracts.CompanyScoreState, t contracts.ScoreType) *int {
	if t == contracts.ScoreTypeTrust {
		return s.TrustScore
	}
	return s.FundamentalsScore
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
