package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/s2_stability"
	"github.com/wonny/trustrank/pkg/logger"
)

// HousekeepingJob prunes snapshots and history past retention
type HousekeepingJob struct {
	snapshots     contracts.SnapshotRepository
	history       contracts.HistoryRepository
	retentionDays int
	keep          int
	schedule      string
	logger        *logger.Logger
	now           func() time.Time
}

// NewHousekeepingJob creates a new housekeeping job.
// keep 는 변동성 윈도우보다 작아질 수 없음
func NewHousekeepingJob(
	snapshots contracts.SnapshotRepository,
	history contracts.HistoryRepository,
	retentionDays, keep int,
	schedule string,
	log *logger.Logger,
) *HousekeepingJob {
	return &HousekeepingJob{
		snapshots:     snapshots,
		history:       history,
		retentionDays: retentionDays,
		keep:          max(keep, s2_stability.VolatilityWindow),
		schedule:      schedule,
		logger:        log.WithComponent("job.score_housekeeping"),
		now:           time.Now,
	}
}

// Name returns the job name
func (j *HousekeepingJob) Name() string {
	return "score_housekeeping"
}

// Schedule returns the cron schedule
func (j *HousekeepingJob) Schedule() string {
	return j.schedule
}

// Run executes the pruning
func (j *HousekeepingJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		j.logger.Debug("Retention disabled, nothing to prune")
		return nil
	}

	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)

	snapshots, err := j.snapshots.PruneSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	history, err := j.history.PruneHistory(ctx, cutoff, j.keep)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"cutoff":            cutoff.Format("2006-01-02"),
		"snapshots_pruned":  snapshots,
		"history_pruned":    history,
		"history_kept_each": j.keep,
	}).Info("Housekeeping completed")

	return nil
}
