package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/service"
)

// StravaHandler serves the Strava connection lifecycle: connect URL,
// code exchange, manual sync, disconnect.
type StravaHandler struct {
	strava *service.StravaService
	logger *slog.Logger
}

// NewStravaHandler creates a StravaHandler.
func NewStravaHandler(stravaService *service.StravaService, logger *slog.Logger) *StravaHandler {
	return &StravaHandler{strava: stravaService, logger: logger}
}

// SyncResponse reports how many activities a sync stored.
type SyncResponse struct {
	Synced int `json:"synced"`
}

// HandleConnect returns the Strava consent-screen URL the client should
// open. The state parameter carries the member id; the client verifies it
// round-trips on the callback before posting the code to /link.
//
// HTTP: GET /api/strava/connect  (requires auth)
// RESPONSE: {"url": "https://www.strava.com/oauth/authorize?..."}
func (h *StravaHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"url": h.strava.ConnectURL(userID),
	})
}

// HandleLink exchanges the OAuth callback code and links the account,
// then backfills the last 90 days.
//
// HTTP: POST /api/strava/link  (requires auth)
// REQUEST BODY: {"code": "..."}
func (h *StravaHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	synced, err := h.strava.Link(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Synced: synced})
}

// HandleSync runs a manual 90-day sync for the caller.
//
// HTTP: POST /api/strava/sync  (requires auth)
func (h *StravaHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	synced, err := h.strava.Sync(r.Context(), userID)
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Synced: synced})
}

// writeSyncError translates sync failures into client-facing responses.
// "Not connected" is the caller's mistake (400); a refresh or fetch failure
// means Strava itself misbehaved, which is a 502, not our 500.
func (h *StravaHandler) writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotConnected):
		writeError(w, apperror.ValidationFailed("strava", "no strava account is connected"))
	case errors.Is(err, service.ErrTokenRefresh), errors.Is(err, service.ErrFetch):
		h.logger.Error("strava sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "strava_unavailable",
			Message: "Could not reach Strava — try again later",
		})
	default:
		writeError(w, err)
	}
}

// HandleDisconnect unlinks the caller's Strava account. Synced activities
// are kept.
//
// HTTP: DELETE /api/strava/disconnect  (requires auth)
func (h *StravaHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.strava.Disconnect(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
