package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trustrank/internal/contracts"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository handles change-log persistence
// ⭐ SSOT: score_change_log 저장/조회는 여기서만 (append-only)
type Repository struct {
	db querier
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// WithTx returns a repository whose writes join tx
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// AppendChangeLog inserts all entries in one batch
func (r *Repository) AppendChangeLog(ctx context.Context, entries ...contracts.ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO score_change_log (company_id, change_type, metadata, created_at)
		VALUES ($1, $2, $3::jsonb, $4)
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		batch.Queue(query, e.CompanyID, string(e.ChangeType), string(metadata), e.CreatedAt)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to append change log: %w", err)
		}
	}
	return nil
}

// ListChangeLog returns the newest entries of a company
func (r *Repository) ListChangeLog(ctx context.Context, companyID string, limit int) ([]contracts.ChangeLogEntry, error) {
	query := `
		SELECT id, company_id, change_type, metadata, created_at
		FROM score_change_log
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log: %w", err)
	}
	defer rows.Close()

	var entries []contracts.ChangeLogEntry
	for rows.Next() {
		var e contracts.ChangeLogEntry
		var changeType string
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.CompanyID, &changeType, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change log: %w", err)
		}
		e.ChangeType = contracts.ChangeType(changeType)
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
