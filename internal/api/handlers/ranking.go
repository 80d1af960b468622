package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/pkg/logger"
)

// RankingLister eligible ranking listing
type RankingLister interface {
	List(ctx context.Context, launchMode bool, limit, offset int) ([]contracts.RankingRecord, error)
}

// RankingHandler handles ranking read endpoints
type RankingHandler struct {
	rankings RankingLister
	flags    flags.Provider
	logger   *logger.Logger
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(rankings RankingLister, provider flags.Provider, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		rankings: rankings,
		flags:    provider,
		logger:   log,
	}
}

// ListRankings returns one page of ranking-eligible companies
// GET /api/rankings?limit=50&offset=0
func (h *RankingHandler) ListRankings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	launchMode := h.flags.Snapshot(r.Context()).Enabled(flags.LaunchMode)

	records, err := h.rankings.List(r.Context(), launchMode, limit, offset)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("Failed to list rankings")
			respondError(w, status, "failed to list rankings")
			return
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"launch_mode": launchMode,
		"limit":       limit,
		"offset":      offset,
		"count":       len(records),
		"rankings":    records,
	})
}
