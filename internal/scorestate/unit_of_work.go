package scorestate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trustrank/internal/audit"
	"github.com/wonny/trustrank/internal/contracts"
)

// UnitOfWork commits state, snapshots, history and change log of one recompute together
type UnitOfWork struct {
	pool      *pgxpool.Pool
	changeLog *audit.Repository
}

// NewUnitOfWork creates a transactional writer over pool
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool, changeLog: audit.NewRepository(pool)}
}

// WithinTx implements contracts.UnitOfWork
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, w contracts.ScoreWriter) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	w := &txWriter{
		Repository: &Repository{db: tx},
		changeLog:  u.changeLog.WithTx(tx),
	}
	if err := fn(ctx, w); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txWriter struct {
	*Repository
	changeLog *audit.Repository
}

func (w *txWriter) AppendChangeLog(ctx context.Context, entries ...contracts.ChangeLogEntry) error {
	return w.changeLog.AppendChangeLog(ctx, entries...)
}
