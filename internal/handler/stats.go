package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/service"
)

// StatsHandler serves statistics, the leaderboard and the dashboard.
type StatsHandler struct {
	stats  *service.StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// HandleStatistics returns the caller's all-time statistics.
//
// HTTP: GET /api/statistics  (requires auth)
func (h *StatsHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	stats, err := h.stats.Overall(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleMonthlyStatistics returns the caller's current-month statistics.
//
// HTTP: GET /api/statistics/monthly  (requires auth)
func (h *StatsHandler) HandleMonthlyStatistics(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	stats, err := h.stats.Monthly(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleWeeklyStatistics returns the caller's current-week statistics
// (weeks start Monday).
//
// HTTP: GET /api/statistics/weekly  (requires auth)
func (h *StatsHandler) HandleWeeklyStatistics(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	stats, err := h.stats.Weekly(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleLeaderboard returns the monthly distance ranking. Without query
// parameters it serves the current month.
//
// HTTP: GET /api/leaderboard?year=2026&month=9  (requires auth)
func (h *StatsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year := queryInt(r, "year", now.Year())
	month := queryInt(r, "month", int(now.Month()))

	if month < 1 || month > 12 {
		writeError(w, apperror.ValidationFailed("month", "month must be between 1 and 12"))
		return
	}
	if year < 2000 || year > now.Year()+1 {
		writeError(w, apperror.ValidationFailed("year", "year is out of range"))
		return
	}

	board, err := h.stats.Leaderboard(r.Context(), year, time.Month(month))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HandleDashboard returns the home-screen payload.
//
// HTTP: GET /api/dashboard  (requires auth)
func (h *StatsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	dash, err := h.stats.BuildDashboard(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
