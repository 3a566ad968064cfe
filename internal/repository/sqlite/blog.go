package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// compile-time check that *BlogDB implements repository.BlogRepository
var _ repository.BlogRepository = (*BlogDB)(nil)

const blogColumns = `id, author_id, title, slug, content, excerpt, cover_image,
	category, tags, is_published, published_at, created_at, updated_at`

// Create inserts a new blog post. The slug is UNIQUE; the service layer
// handles collisions before calling here, so one surfacing means a race
// between two admins — returned as a conflict.
func (db *BlogDB) Create(ctx context.Context, post *model.BlogPost) error {
	now := time.Now().UTC()
	post.ID = xid.New().String()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO blog_posts (id, author_id, title, slug, content, excerpt,
			cover_image, category, tags, is_published, published_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.AuthorID,
		post.Title,
		post.Slug,
		post.Content,
		post.Excerpt,
		post.CoverImage,
		post.Category,
		marshalTags(post.Tags),
		post.IsPublished,
		fmtTime(post.PublishedAt),
		fmtTime(post.CreatedAt),
		fmtTime(post.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("blog post", post.Slug)
		}
		return fmt.Errorf("sqlite: inserting blog post (slug=%s): %w", post.Slug, err)
	}
	return nil
}

// GetByID retrieves a post by internal id.
func (db *BlogDB) GetByID(ctx context.Context, id string) (*model.BlogPost, error) {
	return db.getPost(ctx, `WHERE id = ?`, id)
}

// GetBySlug retrieves a post by its URL slug.
func (db *BlogDB) GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	return db.getPost(ctx, `WHERE slug = ?`, slug)
}

func (db *BlogDB) getPost(ctx context.Context, where string, arg any) (*model.BlogPost, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+blogColumns+` FROM blog_posts `+where, arg)

	p, err := scanBlogPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("blog post", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting blog post (%v): %w", arg, err)
	}
	return p, nil
}

// List returns posts newest first, optionally only published ones.
func (db *BlogDB) List(ctx context.Context, publishedOnly bool) ([]model.BlogPost, error) {
	query := `SELECT ` + blogColumns + ` FROM blog_posts`
	if publishedOnly {
		query += ` WHERE is_published = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing blog posts: %w", err)
	}
	defer rows.Close()

	var posts []model.BlogPost
	for rows.Next() {
		p, err := scanBlogPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning blog post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// Update rewrites a post's mutable fields and bumps updated_at.
func (db *BlogDB) Update(ctx context.Context, post *model.BlogPost) error {
	post.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE blog_posts SET title = ?, slug = ?, content = ?, excerpt = ?,
			cover_image = ?, category = ?, tags = ?, is_published = ?,
			published_at = ?, updated_at = ?
		 WHERE id = ?`,
		post.Title,
		post.Slug,
		post.Content,
		post.Excerpt,
		post.CoverImage,
		post.Category,
		marshalTags(post.Tags),
		post.IsPublished,
		fmtTime(post.PublishedAt),
		fmtTime(post.UpdatedAt),
		post.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("blog post", post.Slug)
		}
		return fmt.Errorf("sqlite: updating blog post %s: %w", post.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("blog post", post.ID)
	}
	return nil
}

// Delete removes a post.
func (db *BlogDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting blog post %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("blog post", id)
	}
	return nil
}

func scanBlogPost(s scanner) (*model.BlogPost, error) {
	var (
		p                                 model.BlogPost
		tags                              string
		publishedAt, createdAt, updatedAt string
	)
	err := s.Scan(
		&p.ID,
		&p.AuthorID,
		&p.Title,
		&p.Slug,
		&p.Content,
		&p.Excerpt,
		&p.CoverImage,
		&p.Category,
		&tags,
		&p.IsPublished,
		&publishedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Tags = unmarshalTags(tags)
	p.PublishedAt = parseTime(publishedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// Tags are a small string list; JSON text keeps the schema flat.
func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalTags(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}
