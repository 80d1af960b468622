package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trustrank/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int
	calls    int
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(_ context.Context) error {
	j.calls++
	if j.calls <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 */15 * * * *"}))

	err := s.AddJob(&countingJob{name: "a", schedule: "0 */15 * * * *"})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob(&countingJob{name: "b", schedule: "not a schedule"})
	assert.ErrorContains(t, err, "failed to schedule")

	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.GetJobStats())
	assert.Error(t, s.RemoveJob("a"))
}

func TestRunJobSync_RetriesThenSucceeds(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Millisecond))
	job := &countingJob{name: "flaky", schedule: "@hourly", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, job.calls)

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	assert.Len(t, history.Results, 1)
	assert.Equal(t, 1.0, history.GetSuccessRate())
}

func TestRunJobSync_FailsAfterRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	job := &countingJob{name: "broken", schedule: "@hourly", failures: 100}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "transient", result.Error)
	assert.Equal(t, 2, job.calls)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJobSync_CancelledStopsRetrying(t *testing.T) {
	s := New(logger.Nop(), WithRetry(5, time.Hour))
	job := &countingJob{name: "broken", schedule: "@hourly", failures: 100}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunJobSync(ctx, "broken")
	require.Error(t, err)
	assert.Equal(t, 1, job.calls)
}

func TestRunJobSync_UnknownJob(t *testing.T) {
	s := New(logger.Nop())
	_, err := s.RunJobSync(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
	assert.Error(t, s.RunJob("missing"))
}

func TestJobHistory_KeepsLast100(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Len(t, h.GetFailedResults(), 50)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}
