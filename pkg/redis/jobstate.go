package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/trustrank/internal/contracts"
)

// JobState implements contracts.JobStateStore.
// 키: {prefix}:job:{job}:cursor | last_run_at | last_run_stats
type JobState struct {
	client *Client
}

// NewJobState creates a new job state store
func NewJobState(client *Client) *JobState {
	return &JobState{client: client}
}

// JobKey returns the key of one field in a job's namespace
func (s *JobState) JobKey(job, field string) string {
	return s.client.Key("job", job, field)
}

// GetCursor returns the persisted cursor or ""
func (s *JobState) GetCursor(ctx context.Context, job string) (string, error) {
	if !s.client.Enabled() {
		return "", nil
	}

	cursor, err := s.client.Redis().Get(ctx, s.JobKey(job, "cursor")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get cursor %s: %w", job, err)
	}
	return cursor, nil
}

// SetCursor persists the cursor without expiry
func (s *JobState) SetCursor(ctx context.Context, job, cursor string) error {
	if !s.client.Enabled() {
		return nil
	}
	if err := s.client.Redis().Set(ctx, s.JobKey(job, "cursor"), cursor, 0).Err(); err != nil {
		return fmt.Errorf("set cursor %s: %w", job, err)
	}
	return nil
}

// ClearCursor removes the cursor so the next run starts from the beginning
func (s *JobState) ClearCursor(ctx context.Context, job string) error {
	if !s.client.Enabled() {
		return nil
	}
	if err := s.client.Redis().Del(ctx, s.JobKey(job, "cursor")).Err(); err != nil {
		return fmt.Errorf("clear cursor %s: %w", job, err)
	}
	return nil
}

// SaveLastRun stores the run timestamp and stats atomically
func (s *JobState) SaveLastRun(ctx context.Context, job string, result *contracts.RunResult) error {
	if !s.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run stats: %w", err)
	}

	pipe := s.client.Redis().TxPipeline()
	pipe.Set(ctx, s.JobKey(job, "last_run_at"), result.FinishedAt.UTC().Format(time.RFC3339Nano), 0)
	pipe.Set(ctx, s.JobKey(job, "last_run_stats"), data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save last run %s: %w", job, err)
	}
	return nil
}

// LastRun returns the stats of the most recent finished run
func (s *JobState) LastRun(ctx context.Context, job string) (*contracts.RunResult, error) {
	if !s.client.Enabled() {
		return nil, nil
	}

	data, err := s.client.Redis().Get(ctx, s.JobKey(job, "last_run_stats")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last run %s: %w", job, err)
	}

	var result contracts.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal run stats: %w", err)
	}
	return &result, nil
}
