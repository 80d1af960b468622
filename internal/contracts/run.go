package contracts

import "time"

// RunStatus batch run state machine: STARTED → (COMPLETED | PARTIAL | FAILED)
type RunStatus string

const (
	RunStarted   RunStatus = "STARTED"
	RunCompleted RunStatus = "COMPLETED"
	RunPartial   RunStatus = "PARTIAL"
	RunFailed    RunStatus = "FAILED"
	// RunSkipped lock busy or kill switch off; not a failure
	RunSkipped RunStatus = "SKIPPED"
)

// Skip reasons
const (
	SkipReasonBusy     = "busy"
	SkipReasonDisabled = "disabled"
)

// RunResult summary of one recompute-all invocation.
// 모든 발견된 회사는 processed 로 집계되고 updated 또는 errors 중 하나에 속함
type RunResult struct {
	RunID        string    `json:"run_id"`
	JobName      string    `json:"job_name"`
	Status       RunStatus `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Processed    int       `json:"processed"`
	Updated      int       `json:"updated"`
	Errors       int       `json:"errors"`
	ErrorSummary []string  `json:"error_summary,omitempty"`
	StartCursor  string    `json:"start_cursor,omitempty"`
	NextCursor   string    `json:"next_cursor,omitempty"`
	Pages        int       `json:"pages"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Error        string    `json:"error,omitempty"`
}

// Duration returns the wall time of the run
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecomputeResult response of a single-company recompute
type RecomputeResult struct {
	CompanyID              string           `json:"company_id"`
	TrustScore             int              `json:"trust_score"`
	RawTrustScore          int              `json:"raw_trust_score"`
	TrustConfidence        int              `json:"trust_confidence"`
	FundamentalsScore      int              `json:"fundamentals_score"`
	FundamentalsConfidence int              `json:"fundamentals_confidence"`
	DataConfidence         int              `json:"data_confidence"`
	StabilityProfile       StabilityProfile `json:"stability_profile"`
	Forecasts              []Forecast       `json:"forecasts"`
	ChangeLog              []ChangeLogEntry `json:"change_log,omitempty"`
}

// ChangeType kinds of audit entries
type ChangeType string

const (
	ChangeTrustScore        ChangeType = "TRUST_SCORE_CHANGE"
	ChangeFundamentalsScore ChangeType = "FUNDAMENTALS_SCORE_CHANGE"
)

// ChangeLogEntry append-only audit record of a significant movement
type ChangeLogEntry struct {
	ID         int64          `json:"id,omitempty"`
	CompanyID  string         `json:"company_id"`
	ChangeType ChangeType     `json:"change_type"`
	Metadata   ChangeMetadata `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ChangeMetadata details of a logged movement
type ChangeMetadata struct {
	ScoreType ScoreType `json:"score_type"`
	Previous  int       `json:"previous"`
	Current   int       `json:"current"`
	Delta     int       `json:"delta"`
	Threshold int       `json:"threshold"`
	Version   string    `json:"version"`
	RunID     string    `json:"run_id,omitempty"`
}
