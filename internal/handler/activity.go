package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/service"
)

// ActivityHandler serves a member's synced activities.
type ActivityHandler struct {
	activities *service.ActivityService
	logger     *slog.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(activities *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, logger: logger}
}

// HandleList returns a page of the caller's activities, newest first.
//
// HTTP: GET /api/activities?limit=20&offset=0  (requires auth)
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	page, err := h.activities.List(r.Context(), userID,
		queryInt(r, "limit", 0),
		queryInt(r, "offset", 0),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleRecent returns the caller's latest activities.
//
// HTTP: GET /api/activities/recent?limit=5  (requires auth)
func (h *ActivityHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	recent, err := h.activities.Recent(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recent)
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or not a number. Bad paging input isn't worth a 400 —
// the service clamps to sane values anyway.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
