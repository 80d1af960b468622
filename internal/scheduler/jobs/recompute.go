package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/trustrank/internal/brain"
	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/pkg/logger"
)

// BatchRunner runs one recompute-all invocation
type BatchRunner interface {
	RecomputeAll(ctx context.Context, req brain.RecomputeAllRequest) (*contracts.RunResult, error)
}

// RecomputeJob periodic batch recompute of the whole registry
// 커서가 남아 있으면 다음 실행이 이어서 처리함
type RecomputeJob struct {
	runner   BatchRunner
	schedule string
	logger   *logger.Logger
}

// NewRecomputeJob creates a new recompute job
func NewRecomputeJob(runner BatchRunner, schedule string, log *logger.Logger) *RecomputeJob {
	return &RecomputeJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.WithComponent("job.score_recompute"),
	}
}

// Name returns the job name
func (j *RecomputeJob) Name() string {
	return "score_recompute"
}

// Schedule returns the cron schedule
func (j *RecomputeJob) Schedule() string {
	return j.schedule
}

// Run executes one batch. SKIPPED and PARTIAL are not job failures.
func (j *RecomputeJob) Run(ctx context.Context) error {
	result, err := j.runner.RecomputeAll(ctx, brain.RecomputeAllRequest{})
	if err != nil {
		return fmt.Errorf("recompute all: %w", err)
	}

	log := j.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"status":    result.Status,
		"processed": result.Processed,
		"errors":    result.Errors,
	})

	switch result.Status {
	case contracts.RunSkipped:
		log.WithField("reason", result.Reason).Info("Recompute skipped")
	case contracts.RunPartial:
		log.Warn("Recompute finished with majority errors")
	case contracts.RunFailed:
		return fmt.Errorf("recompute run %s failed: %s", result.RunID, result.Error)
	default:
		if result.NextCursor != "" {
			log.WithField("next_cursor", result.NextCursor).Info("Recompute paused at time budget")
		}
	}
	return nil
}
