package forecast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trustrank/internal/contracts"
)

// Repository forecast 데이터 저장소 (contracts.ForecastRepository)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const upsertForecastSQL = `
	INSERT INTO score_forecasts
		(company_id, horizon_days, model_version, forecast_score, forecast_confidence,
		 band_low, band_high, reasoning, computed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
	ON CONFLICT (company_id, horizon_days, model_version) DO UPDATE SET
		forecast_score = EXCLUDED.forecast_score,
		forecast_confidence = EXCLUDED.forecast_confidence,
		band_low = EXCLUDED.band_low,
		band_high = EXCLUDED.band_high,
		reasoning = EXCLUDED.reasoning,
		computed_at = EXCLUDED.computed_at`

// UpsertForecasts 예측 일괄 upsert (company × horizon × model 당 1행)
func (r *Repository) UpsertForecasts(ctx context.Context, forecasts []contracts.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range forecasts {
		reasoning, err := json.Marshal(f.Reasoning)
		if err != nil {
			return fmt.Errorf("marshal reasoning: %w", err)
		}
		batch.Queue(upsertForecastSQL,
			f.CompanyID, f.HorizonDays, f.ModelVersion, f.ForecastScore, f.ForecastConfidence,
			f.BandLow, f.BandHigh, string(reasoning), f.ComputedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range forecasts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert forecast: %w", err)
		}
	}
	return nil
}

// ListForecasts 회사의 예측 조회 (horizon 오름차순)
func (r *Repository) ListForecasts(ctx context.Context, companyID string) ([]contracts.Forecast, error) {
	query := `
		SELECT company_id, horizon_days, model_version, forecast_score, forecast_confidence,
		       band_low, band_high, reasoning, computed_at
		FROM score_forecasts
		WHERE company_id = $1
		ORDER BY horizon_days, model_version`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []contracts.Forecast
	for rows.Next() {
		var f contracts.Forecast
		var reasoning []byte
		if err := rows.Scan(
			&f.CompanyID, &f.HorizonDays, &f.ModelVersion, &f.ForecastScore, &f.ForecastConfidence,
			&f.BandLow, &f.BandHigh, &reasoning, &f.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		if err := json.Unmarshal(reasoning, &f.Reasoning); err != nil {
			return nil, fmt.Errorf("unmarshal reasoning: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
