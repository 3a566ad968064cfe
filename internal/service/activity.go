package service

import (
	"context"
	"log/slog"

	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

const (
	// DefaultActivityPageSize is used when the caller doesn't ask for a size.
	DefaultActivityPageSize = 20

	// MaxActivityPageSize caps a single page. Anything bigger should paginate.
	MaxActivityPageSize = 100

	// MaxRecentActivities caps the "recent" shortcut endpoint.
	MaxRecentActivities = 20
)

// ActivityService serves a member's synced activities.
type ActivityService struct {
	activities repository.ActivityRepository
	logger     *slog.Logger
}

// NewActivityService creates an ActivityService.
func NewActivityService(activities repository.ActivityRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{activities: activities, logger: logger}
}

// ActivityPage is one page of a member's activities plus the total count,
// so clients can render page controls.
type ActivityPage struct {
	Activities []model.Activity `json:"activities"`
	Total      int              `json:"total"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// List returns a page of the member's activities, newest first. Limit and
// offset are clamped to sane values rather than rejected.
func (s *ActivityService) List(ctx context.Context, userID string, limit, offset int) (*ActivityPage, error) {
	if limit <= 0 {
		limit = DefaultActivityPageSize
	}
	if limit > MaxActivityPageSize {
		limit = MaxActivityPageSize
	}
	if offset < 0 {
		offset = 0
	}

	activities, err := s.activities.ListByUser(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	total, err := s.activities.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ActivityPage{Activities: activities, Total: total, Limit: limit, Offset: offset}, nil
}

// Recent returns the member's latest activities. Zero or negative means the
// default of 5; anything above MaxRecentActivities is clamped.
func (s *ActivityService) Recent(ctx context.Context, userID string, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > MaxRecentActivities {
		limit = MaxRecentActivities
	}
	return s.activities.ListByUser(ctx, userID, repository.ListOptions{Limit: limit})
}
