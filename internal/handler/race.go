package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/service"
)

// RaceHandler serves the race calendar. Reads are public; writes are wired
// behind RequireAdmin in the router.
type RaceHandler struct {
	races  *service.RaceService
	logger *slog.Logger
}

// NewRaceHandler creates a RaceHandler.
func NewRaceHandler(races *service.RaceService, logger *slog.Logger) *RaceHandler {
	return &RaceHandler{races: races, logger: logger}
}

type raceRequest struct {
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	Location             string    `json:"location"`
	Date                 time.Time `json:"date"`
	Distance             float64   `json:"distance"`
	ElevationGain        float64   `json:"elevationGain"`
	RaceType             string    `json:"raceType"`
	RegistrationURL      string    `json:"registrationUrl"`
	RegistrationDeadline time.Time `json:"registrationDeadline"`
	MaxParticipants      int       `json:"maxParticipants"`
	IsActive             bool      `json:"isActive"`
	CoverImage           string    `json:"coverImage"`
}

func (req raceRequest) toInput() service.RaceInput {
	return service.RaceInput{
		Name:                 req.Name,
		Description:          req.Description,
		Location:             req.Location,
		Date:                 req.Date,
		Distance:             req.Distance,
		ElevationGain:        req.ElevationGain,
		RaceType:             req.RaceType,
		RegistrationURL:      req.RegistrationURL,
		RegistrationDeadline: req.RegistrationDeadline,
		MaxParticipants:      req.MaxParticipants,
		IsActive:             req.IsActive,
		CoverImage:           req.CoverImage,
	}
}

// HandleList returns active races, date ascending.
//
// HTTP: GET /api/races?upcoming=true&limit=10
func (h *RaceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	upcomingOnly := r.URL.Query().Get("upcoming") == "true"

	races, err := h.races.List(r.Context(), upcomingOnly, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, races)
}

// HandleGet returns one race.
//
// HTTP: GET /api/races/{id}
func (h *RaceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "race id is required"))
		return
	}

	race, err := h.races.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, race)
}

// HandleCreate adds a race to the calendar.
//
// HTTP: POST /api/races  (admin)
func (h *RaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req raceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	race, err := h.races.Create(r.Context(), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, race)
}

// HandleUpdate rewrites a race.
//
// HTTP: PUT /api/races/{id}  (admin)
func (h *RaceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "race id is required"))
		return
	}

	var req raceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	race, err := h.races.Update(r.Context(), id, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, race)
}

// HandleDelete removes a race.
//
// HTTP: DELETE /api/races/{id}  (admin)
func (h *RaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "race id is required"))
		return
	}

	if err := h.races.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
