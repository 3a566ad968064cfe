package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/service"
)

// AdminHandler serves member administration. Everything here sits behind
// RequireAdmin in the router.
type AdminHandler struct {
	users  *service.AuthService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(users *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, logger: logger}
}

// RequireAdmin is a middleware that loads the authenticated member and
// rejects non-admins with 403. It must run AFTER RequireAuth — it relies on
// the user id already being in the context.
//
// The admin flag is checked per request rather than baked into the JWT: a
// member demoted mid-session loses access on their next request, not when
// their token expires next week.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, apperror.Unauthorized("authentication required"))
			return
		}

		user, err := h.users.GetUser(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !user.IsAdmin {
			writeError(w, apperror.Forbidden("admin access required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleListUsers returns every member.
//
// HTTP: GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleCreateUser creates a member account.
//
// HTTP: POST /api/admin/users
// REQUEST BODY: {"email": "...", "username": "...", "fullName": "...",
//
//	"password": "...", "isAdmin": false}
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"fullName"`
		Password string `json:"password"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.users.CreateUser(r.Context(), service.CreateUserInput{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleDeleteUser removes a member. Deleting yourself is forbidden.
//
// HTTP: DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())
	targetID := r.PathValue("id")
	if targetID == "" {
		writeError(w, apperror.ValidationFailed("id", "user id is required"))
		return
	}

	if err := h.users.DeleteUser(r.Context(), actorID, targetID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
