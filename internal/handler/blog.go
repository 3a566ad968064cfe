package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/service"
)

// BlogHandler serves club news posts. Reads are public; writes are wired
// behind RequireAdmin in the router.
type BlogHandler struct {
	blog   *service.BlogService
	logger *slog.Logger
}

// NewBlogHandler creates a BlogHandler.
func NewBlogHandler(blog *service.BlogService, logger *slog.Logger) *BlogHandler {
	return &BlogHandler{blog: blog, logger: logger}
}

// blogRequest is the create/update body, shared since the fields match.
type blogRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	CoverImage  string   `json:"coverImage"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	IsPublished bool     `json:"isPublished"`
}

func (req blogRequest) toInput() service.BlogInput {
	return service.BlogInput{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		CoverImage:  req.CoverImage,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
	}
}

// HandleList returns posts, newest first. Published only by default;
// ?published_only=false shows drafts too (admin view).
//
// HTTP: GET /api/blog
func (h *BlogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("published_only") != "false"

	posts, err := h.blog.List(r.Context(), publishedOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGetBySlug returns one published post.
//
// HTTP: GET /api/blog/{slug}
func (h *BlogHandler) HandleGetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, apperror.ValidationFailed("slug", "slug is required"))
		return
	}

	post, err := h.blog.GetBySlug(r.Context(), slug, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate creates a post authored by the caller.
//
// HTTP: POST /api/blog  (admin)
func (h *BlogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req blogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	authorID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.blog.Create(r.Context(), authorID, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate rewrites a post.
//
// HTTP: PUT /api/blog/{id}  (admin)
func (h *BlogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "post id is required"))
		return
	}

	var req blogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	post, err := h.blog.Update(r.Context(), id, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post.
//
// HTTP: DELETE /api/blog/{id}  (admin)
func (h *BlogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "post id is required"))
		return
	}

	if err := h.blog.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
