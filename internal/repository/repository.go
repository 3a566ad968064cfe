// Package repository defines the storage interfaces for the application.
//
// Services depend on these interfaces, never on the concrete SQLite types —
// tests inject in-memory mocks, and the storage engine could be swapped by
// changing one line in the composition root.
package repository

import (
	"context"
	"time"

	"github.com/eroderunners/clubhouse/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository manages member accounts and their Strava credentials.
//
// The Strava credential methods are deliberately coarse: LinkStrava writes
// the full credential tuple, UpdateStravaTokens rewrites the full token
// tuple, DisconnectStrava clears everything. There is no way to persist a
// partial credential through this interface.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Delete(ctx context.Context, id string) error

	// LinkStrava stores the credential obtained from the authorization-code
	// exchange and stamps the connected-at time.
	LinkStrava(ctx context.Context, userID string, cred model.StravaCredential) error

	// UpdateStravaTokens persists a refreshed token pair. All three fields
	// are written together; credentials are never partially updated.
	UpdateStravaTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error

	// DisconnectStrava clears the athlete id, both tokens, the expiry and
	// the connected-at timestamp in one statement.
	DisconnectStrava(ctx context.Context, userID string) error

	// ListStravaConnected returns active members with a linked Strava
	// account — the population the nightly sync walks.
	ListStravaConnected(ctx context.Context) ([]model.User, error)
}

// ActivityRepository manages synced activities.
type ActivityRepository interface {
	// Upsert creates the activity if its Strava id is unseen, otherwise
	// overwrites every Strava-sourced field of the existing row and bumps
	// synced_at. The owning user of an existing row is never changed.
	Upsert(ctx context.Context, activity *model.Activity) error

	GetByStravaID(ctx context.Context, stravaActivityID string) (*model.Activity, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Activity, error)
	CountByUser(ctx context.Context, userID string) (int, error)

	// UserTotals aggregates a member's distance/time/elevation and longest
	// run, bounded to activities whose local start time is at or after
	// since. A zero since means all time.
	UserTotals(ctx context.Context, userID string, since time.Time) (*UserTotals, error)

	// MonthlyLeaderboard ranks members by summed distance over activities
	// whose local start time falls in the given month.
	MonthlyLeaderboard(ctx context.Context, year int, month time.Month) ([]LeaderboardRow, error)
}

// UserTotals is the aggregate returned by ActivityRepository.UserTotals.
type UserTotals struct {
	TotalDistance  float64 // meters
	TotalTime      int     // seconds of moving time
	TotalElevation float64 // meters
	LongestRun     float64 // meters
	ActivityCount  int
}

// LeaderboardRow is one member's standing for a month, ordered by distance.
type LeaderboardRow struct {
	UserID          string
	Username        string
	FullName        string
	ProfilePicture  string
	TotalDistance   float64 // meters
	TotalActivities int
}

// BlogRepository manages blog posts.
type BlogRepository interface {
	Create(ctx context.Context, post *model.BlogPost) error
	GetByID(ctx context.Context, id string) (*model.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
	List(ctx context.Context, publishedOnly bool) ([]model.BlogPost, error)
	Update(ctx context.Context, post *model.BlogPost) error
	Delete(ctx context.Context, id string) error
}

// RaceRepository manages the race calendar.
type RaceRepository interface {
	Create(ctx context.Context, race *model.Race) error
	GetByID(ctx context.Context, id string) (*model.Race, error)

	// List returns active races ordered by date ascending. With upcomingOnly
	// set, races dated before now are excluded. Limit 0 means no limit.
	List(ctx context.Context, upcomingOnly bool, limit int) ([]model.Race, error)

	Update(ctx context.Context, race *model.Race) error
	Delete(ctx context.Context, id string) error
}
