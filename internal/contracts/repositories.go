package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// FactsRepository reads company facts and verification signals
type FactsRepository interface {
	// GetFacts returns ErrCompanyNotFound for unknown ids
	GetFacts(ctx context.Context, companyID string) (*CompanyFacts, error)
	GetVerification(ctx context.Context, companyID string) (*VerificationCounts, error)
	// ListCompanyIDs pages ids in ascending order strictly after afterID
	ListCompanyIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

// ScoreStateRepository current per-company score state
type ScoreStateRepository interface {
	// GetState returns nil, nil when the company has never been scored
	GetState(ctx context.Context, companyID string) (*CompanyScoreState, error)
	// SaveState writes state when the stored version equals state.Version,
	// then increments state.Version. Returns ErrVersionConflict otherwise.
	SaveState(ctx context.Context, state *CompanyScoreState) error
}

// SnapshotRepository daily score snapshots
type SnapshotRepository interface {
	UpsertSnapshots(ctx context.Context, snapshots ...ScoreSnapshot) error
	ListSnapshots(ctx context.Context, companyID string, asOf time.Time) ([]ScoreSnapshot, error)
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}

// HistoryRepository published trust score series
type HistoryRepository interface {
	AppendHistory(ctx context.Context, point ScoreHistoryPoint) error
	// RecentHistory returns up to limit points, most recent first
	RecentHistory(ctx context.Context, companyID string, limit int) ([]ScoreHistoryPoint, error)
	// DailyHistory returns the last point of each UTC day before before's day,
	// up to days points, most recent first
	DailyHistory(ctx context.Context, companyID string, before time.Time, days int) ([]ScoreHistoryPoint, error)
	// PruneHistory deletes points older than before, keeping the newest keep points per company
	PruneHistory(ctx context.Context, before time.Time, keep int) (int64, error)
}

// ForecastRepository forecast rows
type ForecastRepository interface {
	UpsertForecasts(ctx context.Context, forecasts []Forecast) error
	ListForecasts(ctx context.Context, companyID string) ([]Forecast, error)
}

// ChangeLogRepository append-only audit trail
type ChangeLogRepository interface {
	AppendChangeLog(ctx context.Context, entries ...ChangeLogEntry) error
	ListChangeLog(ctx context.Context, companyID string, limit int) ([]ChangeLogEntry, error)
}

// ScoreWriter per-company writes of one recompute
type ScoreWriter interface {
	SaveState(ctx context.Context, state *CompanyScoreState) error
	UpsertSnapshots(ctx context.Context, snapshots ...ScoreSnapshot) error
	AppendHistory(ctx context.Context, point ScoreHistoryPoint) error
	AppendChangeLog(ctx context.Context, entries ...ChangeLogEntry) error
}

// UnitOfWork commits every write fn makes through w, or none of them when fn returns an error
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, w ScoreWriter) error) error
}

// RankingRepository candidate listing for ranking read paths
type RankingRepository interface {
	ListCandidates(ctx context.Context, q RankingQuery) ([]RankingRecord, error)
}

// Locker named distributed mutual exclusion with TTL backstop
type Locker interface {
	// Acquire returns a holder token, or ErrLockHeld without blocking
	Acquire(ctx context.Context, name string, ttl time.Duration) (string, error)
	// Extend refreshes the TTL; ErrLockLost when token no longer owns the lock
	Extend(ctx context.Context, name, token string, ttl time.Duration) error
	// Release deletes the lock only when token still owns it
	Release(ctx context.Context, name, token string) error
}

// JobStateStore per-job KV namespace: cursor, last run timestamp and stats
type JobStateStore interface {
	// GetCursor returns "" when no cursor is persisted
	GetCursor(ctx context.Context, job string) (string, error)
	SetCursor(ctx context.Context, job, cursor string) error
	ClearCursor(ctx context.Context, job string) error
	SaveLastRun(ctx context.Context, job string, result *RunResult) error
	// LastRun returns nil, nil before the first run
	LastRun(ctx context.Context, job string) (*RunResult, error)
}
