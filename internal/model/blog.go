package model

import "time"

// BlogPost is a club news/article entry written by an admin.
//
// Slug is the URL-friendly identifier derived from the title ("Pongal 10K
// Recap" → "pongal-10k-recap") and is unique; on a collision the service
// appends a timestamp. PublishedAt is set the first time the post is
// published and kept on later edits.
type BlogPost struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`

	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Content    string   `json:"content"`
	Excerpt    string   `json:"excerpt"`
	CoverImage string   `json:"coverImage"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`

	IsPublished bool      `json:"isPublished"`
	PublishedAt time.Time `json:"publishedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
