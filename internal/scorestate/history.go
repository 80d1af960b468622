package scorestate

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trustrank/internal/contracts"
)

// AppendHistory appends one published trust score
func (r *Repository) AppendHistory(ctx context.Context, p contracts.ScoreHistoryPoint) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO score_history (company_id, recorded_at, score) VALUES ($1, $2, $3)`,
		p.CompanyID, p.RecordedAt, p.Score)
	if err != nil {
		return fmt.Errorf("append history %s: %w", p.CompanyID, err)
	}
	return nil
}

// RecentHistory returns up to limit points, most recent first
func (r *Repository) RecentHistory(ctx context.Context, companyID string, limit int) ([]contracts.ScoreHistoryPoint, error) {
	query := `
		SELECT company_id, recorded_at, score
		FROM score_history
		WHERE company_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.ScoreHistoryPoint, 0, limit)
	for rows.Next() {
		var p contracts.ScoreHistoryPoint
		if err := rows.Scan(&p.CompanyID, &p.RecordedAt, &p.Score); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const dailyHistorySQL = `
	SELECT company_id, recorded_at, score FROM (
		SELECT DISTINCT ON ((recorded_at AT TIME ZONE 'UTC')::date)
			company_id, recorded_at, score
		FROM score_history
		WHERE company_id = $1 AND recorded_at < $2
		ORDER BY (recorded_at AT TIME ZONE 'UTC')::date DESC, recorded_at DESC, id DESC
	) daily
	ORDER BY recorded_at DESC
	LIMIT $3
`

// DailyHistory returns the last point of each UTC day before before's day, most recent first
func (r *Repository) DailyHistory(ctx context.Context, companyID string, before time.Time, days int) ([]contracts.ScoreHistoryPoint, error) {
	rows, err := r.db.Query(ctx, dailyHistorySQL, companyID, contracts.AsOfDate(before), days)
	if err != nil {
		return nil, fmt.Errorf("query daily history: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.ScoreHistoryPoint, 0, days)
	for rows.Next() {
		var p contracts.ScoreHistoryPoint
		if err := rows.Scan(&p.CompanyID, &p.RecordedAt, &p.Score); err != nil {
			return nil, fmt.Errorf("scan daily history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PruneHistory deletes points older than before, keeping the newest keep points per company
func (r *Repository) PruneHistory(ctx context.Context, before time.Time, keep int) (int64, error) {
	query := `
		DELETE FROM score_history h
		USING (
			SELECT id, ROW_NUMBER() OVER (PARTITION BY company_id ORDER BY recorded_at DESC, id DESC) AS rn
			FROM score_history
		) ranked
		WHERE h.id = ranked.id
		  AND ranked.rn > $2
		  AND h.recorded_at < $1
	`

	tag, err := r.db.Exec(ctx, query, before, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}
