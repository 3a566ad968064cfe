// Package handler contains the HTTP handlers for the club API.
//
// Handlers do three things only: parse the request, call a service, write
// the response. Validation and business rules live in internal/service;
// handlers never touch the database.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/service"
)

// AuthHandler serves login and the current-member endpoint.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// HandleLogin authenticates a member and issues a JWT.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// HandleMe returns the authenticated member's own record.
//
// HTTP: GET /api/auth/me  (requires auth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
