package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/pkg/logger"
)

// AuditHandler handles change-log and flag inspection endpoints
type AuditHandler struct {
	changeLog contracts.ChangeLogRepository
	flags     flags.Provider
	logger    *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(changeLog contracts.ChangeLogRepository, provider flags.Provider, log *logger.Logger) *AuditHandler {
	return &AuditHandler{changeLog: changeLog, flags: provider, logger: log}
}

// GetChangeLog returns the newest change-log entries for a company
// GET /api/companies/{id}/changelog?limit=20
func (h *AuditHandler) GetChangeLog(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]

	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit <= 0 || limit > 200 {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}

	entries, err := h.changeLog.ListChangeLog(r.Context(), companyID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("company_id", companyID).Error("Failed to list change log")
		respondError(w, http.StatusInternalServerError, "failed to get change log")
		return
	}
	if entries == nil {
		entries = []contracts.ChangeLogEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"company_id": companyID,
		"entries":    entries,
	})
}

// GetFlags returns the effective flag snapshot
// GET /api/flags
func (h *AuditHandler) GetFlags(w http.ResponseWriter, r *http.Request) {
	snap := h.flags.Snapshot(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flags": snap.Map(),
		"hash":  snap.Hash(),
	})
}
