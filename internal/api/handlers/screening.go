package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/youngcan/wyckoff-funnel/internal/funnel"
	"github.com/youngcan/wyckoff-funnel/internal/store"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// ScreeningHandler handles screening-related API endpoints
type ScreeningHandler struct {
	repo   *store.Repository
	engine *funnel.Engine
	logger *logger.Logger
}

// NewScreeningHandler creates a new screening handler. repo may be nil when
// the server runs without a database; read endpoints then return 503.
func NewScreeningHandler(repo *store.Repository, engine *funnel.Engine, log *logger.Logger) *ScreeningHandler {
	return &ScreeningHandler{
		repo:   repo,
		engine: engine,
		logger: log,
	}
}

// GetLatest returns the most recent stored screening result
// GET /api/v1/screening/latest
func (h *ScreeningHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	result, err := h.repo.LatestResult(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No screening results stored yet")
			return
		}
		h.logger.WithError(err).Error("Failed to get latest screening result")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve screening result")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByDate returns the stored screening result for a run date
// GET /api/v1/screening/{date}
func (h *ScreeningHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	runDate, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}

	result, err := h.repo.GetResult(ctx, runDate)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No screening result for this date")
			return
		}
		h.logger.WithError(err).Error("Failed to get screening result")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve screening result")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListDates returns recent run dates with stored results
// GET /api/v1/screening/dates?limit=30
func (h *ScreeningHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 365 {
			respondError(w, http.StatusBadRequest, "Invalid limit (expected 1-365)")
			return
		}
		limit = n
	}

	dates, err := h.repo.ListRunDates(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list run dates")
		respondError(w, http.StatusInternalServerError, "Failed to list run dates")
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dates": out,
	})
}

// RunRequest represents a manual screening run request
type RunRequest struct {
	Date string `json:"date"` // Optional: reference date (YYYY-MM-DD), defaults to now
}

// Run triggers a screening run and stores the result when persistence is on
// POST /api/v1/screening/run
func (h *ScreeningHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	referenceDate := time.Now()
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
			return
		}
		referenceDate = d
	}

	h.logger.WithField("reference_date", referenceDate.Format("2006-01-02")).
		Info("Manual screening run requested")

	result, err := h.engine.Run(ctx, referenceDate)
	if err != nil {
		h.logger.WithError(err).Error("Screening run failed")
		respondError(w, http.StatusInternalServerError, "Screening run failed")
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveResult(ctx, result); err != nil {
			h.logger.WithError(err).Warn("Failed to persist screening result")
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
