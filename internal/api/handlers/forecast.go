package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/pkg/logger"
)

// AccessTierHeader caller tier set by the gateway
const AccessTierHeader = "X-Access-Tier"

// forecastView forecast row as exposed over HTTP
type forecastView struct {
	HorizonDays        int                          `json:"horizon_days"`
	ModelVersion       string                       `json:"model_version"`
	ForecastScore      int                          `json:"forecast_score"`
	ForecastConfidence int                          `json:"forecast_confidence"`
	BandLow            int                          `json:"band_low"`
	BandHigh           int                          `json:"band_high"`
	Reasoning          *contracts.ForecastReasoning `json:"reasoning,omitempty"`
	ComputedAt         time.Time                    `json:"computed_at"`
}

// ForecastHandler handles forecast read endpoints
// ⭐ SSOT: reasoning 노출 여부는 여기서만 결정
type ForecastHandler struct {
	repo   contracts.ForecastRepository
	logger *logger.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(repo contracts.ForecastRepository, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{repo: repo, logger: log}
}

// GetForecasts returns stored forecasts for a company
// GET /api/companies/{id}/forecasts
func (h *ForecastHandler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	if companyID == "" {
		respondError(w, http.StatusBadRequest, "company id is required")
		return
	}

	forecasts, err := h.repo.ListForecasts(r.Context(), companyID)
	if err != nil {
		h.logger.WithError(err).WithField("company_id", companyID).Error("Failed to list forecasts")
		respondError(w, http.StatusInternalServerError, "failed to get forecasts")
		return
	}

	views := forecastViews(forecasts, canSeeReasoning(r.Header.Get(AccessTierHeader)))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"company_id": companyID,
		"forecasts":  views,
	})
}

// forecastViews maps rows to their HTTP shape; reasoning only when full
func forecastViews(forecasts []contracts.Forecast, full bool) []forecastView {
	views := make([]forecastView, 0, len(forecasts))
	for i := range forecasts {
		f := forecasts[i]
		v := forecastView{
			HorizonDays:        f.HorizonDays,
			ModelVersion:       f.ModelVersion,
			ForecastScore:      f.ForecastScore,
			ForecastConfidence: f.ForecastConfidence,
			BandLow:            f.BandLow,
			BandHigh:           f.BandHigh,
			ComputedAt:         f.ComputedAt,
		}
		if full {
			v.Reasoning = &f.Reasoning
		}
		views = append(views, v)
	}
	return views
}

func canSeeReasoning(tier string) bool {
	return tier == "premium" || tier == "admin"
}
