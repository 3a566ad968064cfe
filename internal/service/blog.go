package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

const MaxBlogTitleLength = 200

// BlogService handles club news posts.
type BlogService struct {
	repo   repository.BlogRepository
	logger *slog.Logger
}

// NewBlogService creates a BlogService.
func NewBlogService(repo repository.BlogRepository, logger *slog.Logger) *BlogService {
	return &BlogService{repo: repo, logger: logger}
}

// BlogInput is the create/update form for a post.
type BlogInput struct {
	Title       string
	Content     string
	Excerpt     string
	CoverImage  string
	Category    string
	Tags        []string
	IsPublished bool
}

// Create validates and stores a new post by authorID.
//
// The slug comes from the title; if another post already took it, a unix
// timestamp suffix disambiguates ("race-recap" → "race-recap-1717430400").
func (s *BlogService) Create(ctx context.Context, authorID string, in BlogInput) (*model.BlogPost, error) {
	if err := validateBlogInput(in); err != nil {
		return nil, err
	}

	slug := slugify(in.Title)
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		slug = fmt.Sprintf("%s-%d", slug, time.Now().Unix())
	}

	post := &model.BlogPost{
		AuthorID:    authorID,
		Title:       strings.TrimSpace(in.Title),
		Slug:        slug,
		Content:     in.Content,
		Excerpt:     in.Excerpt,
		CoverImage:  in.CoverImage,
		Category:    in.Category,
		Tags:        in.Tags,
		IsPublished: in.IsPublished,
	}
	if in.IsPublished {
		post.PublishedAt = time.Now().UTC()
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Info("blog post created", slog.String("post_id", post.ID), slog.String("slug", post.Slug))
	return post, nil
}

// GetBySlug returns one post. Unpublished posts are only visible when
// includeDrafts is set (admin view).
func (s *BlogService) GetBySlug(ctx context.Context, slug string, includeDrafts bool) (*model.BlogPost, error) {
	post, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished && !includeDrafts {
		return nil, apperror.NotFound("blog post", slug)
	}
	return post, nil
}

// List returns posts newest first.
func (s *BlogService) List(ctx context.Context, publishedOnly bool) ([]model.BlogPost, error) {
	return s.repo.List(ctx, publishedOnly)
}

// Update rewrites a post. A changed title re-slugs; publishing for the
// first time stamps PublishedAt, and later edits keep the original stamp.
func (s *BlogService) Update(ctx context.Context, id string, in BlogInput) (*model.BlogPost, error) {
	if err := validateBlogInput(in); err != nil {
		return nil, err
	}

	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newTitle := strings.TrimSpace(in.Title)
	if newTitle != post.Title {
		slug := slugify(newTitle)
		if existing, err := s.repo.GetBySlug(ctx, slug); err == nil && existing.ID != id {
			slug = fmt.Sprintf("%s-%d", slug, time.Now().Unix())
		}
		post.Slug = slug
	}

	if in.IsPublished && !post.IsPublished {
		post.PublishedAt = time.Now().UTC()
	}

	post.Title = newTitle
	post.Content = in.Content
	post.Excerpt = in.Excerpt
	post.CoverImage = in.CoverImage
	post.Category = in.Category
	post.Tags = in.Tags
	post.IsPublished = in.IsPublished

	if err := s.repo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes a post.
func (s *BlogService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("blog post deleted", slog.String("post_id", id))
	return nil
}

func validateBlogInput(in BlogInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxBlogTitleLength {
		return apperror.ValidationFailed("title", "title is too long")
	}
	if strings.TrimSpace(in.Content) == "" {
		return apperror.ValidationFailed("content", "content is required")
	}
	if slugify(title) == "" {
		return apperror.ValidationFailed("title", "title must contain letters or digits")
	}
	return nil
}

// slugify lowercases the title and collapses every non-alphanumeric run
// into a single hyphen: "Pongal 10K Recap!" → "pongal-10k-recap".
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
