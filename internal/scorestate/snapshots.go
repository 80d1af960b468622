package scorestate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/trustrank/internal/contracts"
)

const upsertSnapshotSQL = `
	INSERT INTO score_snapshots (company_id, as_of_date, version, score, confidence, components)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	ON CONFLICT (company_id, as_of_date, version) DO UPDATE SET
		score = EXCLUDED.score,
		confidence = EXCLUDED.confidence,
		components = EXCLUDED.components,
		updated_at = NOW()
`

// UpsertSnapshots idempotent per (company, day, version)
func (r *Repository) UpsertSnapshots(ctx context.Context, snapshots ...contracts.ScoreSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		components, err := s.ComponentsJSON()
		if err != nil {
			return fmt.Errorf("marshal snapshot components: %w", err)
		}
		batch.Queue(upsertSnapshotSQL,
			s.CompanyID, contracts.AsOfDate(s.AsOfDate), s.Version, s.Score, s.Confidence, string(components))
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}
	}
	return nil
}

// ListSnapshots returns the snapshots of one company for one day, by version
func (r *Repository) ListSnapshots(ctx context.Context, companyID string, asOf time.Time) ([]contracts.ScoreSnapshot, error) {
	query := `
		SELECT company_id, as_of_date, version, score, confidence, components
		FROM score_snapshots
		WHERE company_id = $1 AND as_of_date = $2
		ORDER BY version
	`

	rows, err := r.db.Query(ctx, query, companyID, contracts.AsOfDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []contracts.ScoreSnapshot
	for rows.Next() {
		var s contracts.ScoreSnapshot
		var components []byte
		if err := rows.Scan(&s.CompanyID, &s.AsOfDate, &s.Version, &s.Score, &s.Confidence, &components); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(components, &s.Components); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot components: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes snapshots dated before the cutoff day
func (r *Repository) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM score_snapshots WHERE as_of_date < $1`, contracts.AsOfDate(before))
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
