package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/trustrank/internal/brain"
	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/pkg/logger"
	"github.com/wonny/trustrank/pkg/redis"
)

// Recomputer scoring entry points used by the API
type Recomputer interface {
	RecomputeOne(ctx context.Context, companyID string) (*contracts.RecomputeResult, error)
	RecomputeAll(ctx context.Context, req brain.RecomputeAllRequest) (*contracts.RunResult, error)
}

// RateLimiter per-subject request limiter
type RateLimiter interface {
	Allow(ctx context.Context, cfg redis.RateLimitConfig, subject string) (bool, int, error)
}

// recomputeAllBody POST /api/recompute body
type recomputeAllBody struct {
	Cursor   string `json:"cursor" validate:"omitempty,max=64"`
	PageSize int    `json:"page_size" validate:"min=0,max=5000"`
}

// ScoreHandler handles recompute and run status endpoints
// ⭐ SSOT: 재계산 API 핸들러는 이 구조체에서만
type ScoreHandler struct {
	recomputer Recomputer
	limiter    RateLimiter
	jobState   contracts.JobStateStore
	jobName    string
	logger     *logger.Logger
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(
	recomputer Recomputer,
	limiter RateLimiter,
	jobState contracts.JobStateStore,
	jobName string,
	log *logger.Logger,
) *ScoreHandler {
	return &ScoreHandler{
		recomputer: recomputer,
		limiter:    limiter,
		jobState:   jobState,
		jobName:    jobName,
		logger:     log,
	}
}

// RecomputeCompany recomputes one company synchronously
// POST /api/companies/{id}/recompute
func (h *ScoreHandler) RecomputeCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := mux.Vars(r)["id"]

	if companyID == "" {
		respondError(w, http.StatusBadRequest, "company id is required")
		return
	}

	if h.limiter != nil {
		allowed, remaining, err := h.limiter.Allow(ctx, redis.RecomputeOneRateLimit, companyID)
		if err != nil {
			// 리미터 장애는 요청을 막지 않음
			h.logger.WithError(err).Warn("Rate limiter unavailable")
		} else {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				respondError(w, http.StatusTooManyRequests, "too many recompute requests for this company")
				return
			}
		}
	}

	result, err := h.recomputer.RecomputeOne(ctx, companyID)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("company_id", companyID).Error("Failed to recompute company")
			respondError(w, status, "failed to recompute company")
			return
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, recomputeResponse{
		RecomputeResult: result,
		Forecasts:       forecastViews(result.Forecasts, canSeeReasoning(r.Header.Get(AccessTierHeader))),
	})
}

// recomputeResponse forecasts pass the same reasoning gate as GET /forecasts
type recomputeResponse struct {
	*contracts.RecomputeResult
	Forecasts []forecastView `json:"forecasts"`
}

// RecomputeAll runs one batch over the registry
// POST /api/recompute
func (h *ScoreHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	var body recomputeAllBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := contracts.Validate(body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.recomputer.RecomputeAll(r.Context(), brain.RecomputeAllRequest{
		Cursor:   body.Cursor,
		PageSize: body.PageSize,
	})
	if err != nil && result == nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", result.RunID).Error("Recompute run failed")
		respondJSON(w, http.StatusInternalServerError, result)
		return
	}

	// SKIPPED 는 실패가 아님
	respondJSON(w, http.StatusOK, result)
}

// GetLastRun returns the last persisted run stats
// GET /api/runs/last
func (h *ScoreHandler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.jobState.LastRun(r.Context(), h.jobName)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get last run")
		respondError(w, http.StatusInternalServerError, "failed to get last run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "no run recorded yet")
		return
	}

	cursor, err := h.jobState.GetCursor(r.Context(), h.jobName)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to get cursor")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run":    run,
		"cursor": cursor,
	})
}
