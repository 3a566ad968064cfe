// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services depend on interfaces (repository.UserRepository, the fetcher and
// refresher below), never on concrete types — tests inject hand-written
// mocks, and main.go decides the real wiring.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
	"github.com/eroderunners/clubhouse/internal/strava"
)

// Sync windows in days.
//
// A manual sync (or the one right after linking) reaches back 90 days so a
// member's recent history shows up immediately. The nightly batch only needs
// to cover the gap since yesterday's run; 7 days gives slack for a few
// missed nights and for activities uploaded late from a watch.
const (
	ManualSyncDays = 90
	BatchSyncDays  = 7
)

// Sync failure modes. SyncUser wraps whichever one applies in a *SyncError
// so the batch can log per-member failures with their cause and move on.
var (
	ErrNotConnected = errors.New("strava account not connected")
	ErrTokenRefresh = errors.New("strava token refresh failed")
	ErrFetch        = errors.New("strava activity fetch failed")
	ErrMapping      = errors.New("strava activity record invalid")
)

// SyncError ties a sync failure to the member it happened for.
type SyncError struct {
	UserID string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("syncing user %s: %v", e.UserID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// TokenRefresher exchanges a refresh token for a fresh token pair.
// *strava.OAuth implements it.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// ActivityFetcher fetches one page of an athlete's activities.
// *strava.Client implements it.
type ActivityFetcher interface {
	ListActivities(ctx context.Context, accessToken string, after time.Time, page, perPage int) ([]strava.Activity, error)
}

// SyncService pulls a member's recent Strava runs into the local store.
type SyncService struct {
	users      repository.UserRepository
	activities repository.ActivityRepository
	refresher  TokenRefresher
	fetcher    ActivityFetcher
	logger     *slog.Logger
}

// NewSyncService creates a SyncService.
func NewSyncService(
	users repository.UserRepository,
	activities repository.ActivityRepository,
	refresher TokenRefresher,
	fetcher ActivityFetcher,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		users:      users,
		activities: activities,
		refresher:  refresher,
		fetcher:    fetcher,
		logger:     logger,
	}
}

// SyncUser fetches the member's runs from the last daysBack days and upserts
// them. Returns how many activities were stored.
//
// Pages are walked from 1 until Strava returns an empty or short page. Only
// run-type activities are kept (SportType containing "Run" — covers Run,
// TrailRun, VirtualRun). The first error aborts the sync, but everything
// upserted before it stays: the next sync re-covers the same window and the
// upsert makes replays harmless.
func (s *SyncService) SyncUser(ctx context.Context, user *model.User, daysBack int) (int, error) {
	token, err := s.validAccessToken(ctx, user)
	if err != nil {
		return 0, &SyncError{UserID: user.ID, Err: err}
	}

	after := time.Now().AddDate(0, 0, -daysBack)
	synced := 0

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return synced, &SyncError{UserID: user.ID, Err: err}
		}

		raw, err := s.fetcher.ListActivities(ctx, token, after, page, strava.PerPage)
		if err != nil {
			return synced, &SyncError{UserID: user.ID, Err: fmt.Errorf("%w: page %d: %v", ErrFetch, page, err)}
		}
		if len(raw) == 0 {
			break
		}

		for _, r := range raw {
			if !strings.Contains(r.SportType, "Run") {
				continue
			}

			activity, err := mapActivity(user.ID, r)
			if err != nil {
				return synced, &SyncError{UserID: user.ID, Err: err}
			}
			if err := s.activities.Upsert(ctx, activity); err != nil {
				return synced, &SyncError{UserID: user.ID, Err: fmt.Errorf("storing activity %d: %w", r.ID, err)}
			}
			synced++
		}

		if len(raw) < strava.PerPage {
			break
		}
	}

	s.logger.Info("strava sync complete",
		slog.String("user_id", user.ID),
		slog.Int("days_back", daysBack),
		slog.Int("synced", synced),
	)
	return synced, nil
}

// validAccessToken returns an access token that is good to use right now.
//
// A stored token with an unset or future expiry is returned as-is — no
// network traffic, no writes. An expired one triggers exactly one refresh
// exchange; Strava rotates the refresh token on every exchange, so both new
// tokens and the new expiry are persisted in a single update before the
// access token is handed back. If the exchange fails nothing is written and
// the stored credential stays usable for a later retry.
func (s *SyncService) validAccessToken(ctx context.Context, user *model.User) (string, error) {
	if !user.StravaConnected() {
		return "", ErrNotConnected
	}
	if user.StravaExpiresAt.IsZero() || user.StravaExpiresAt.After(time.Now()) {
		return user.StravaAccessToken, nil
	}

	token, err := s.refresher.Refresh(ctx, user.StravaRefresh)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	err = s.users.UpdateStravaTokens(ctx, user.ID, token.AccessToken, token.RefreshToken, token.Expiry)
	if err != nil {
		return "", fmt.Errorf("%w: persisting rotated tokens: %v", ErrTokenRefresh, err)
	}

	// Keep the in-memory copy consistent with what was just stored.
	user.StravaAccessToken = token.AccessToken
	user.StravaRefresh = token.RefreshToken
	user.StravaExpiresAt = token.Expiry

	s.logger.Info("strava token refreshed", slog.String("user_id", user.ID))
	return token.AccessToken, nil
}

// mapActivity converts a raw Strava record into our model.
//
// id, name and start_date are required — a record missing any of them is
// malformed and fails the sync rather than storing a half-empty row.
// athlete_count defaults to 1: Strava omits it for solo runs.
func mapActivity(userID string, r strava.Activity) (*model.Activity, error) {
	if r.ID == 0 {
		return nil, fmt.Errorf("%w: missing activity id", ErrMapping)
	}
	if r.Name == "" {
		return nil, fmt.Errorf("%w: activity %d has no name", ErrMapping, r.ID)
	}
	if r.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: activity %d has no start date", ErrMapping, r.ID)
	}

	athleteCount := r.AthleteCount
	if athleteCount == 0 {
		athleteCount = 1
	}

	return &model.Activity{
		UserID:           userID,
		StravaActivityID: strconv.FormatInt(r.ID, 10),
		Name:             r.Name,
		SportType:        r.SportType,

		Distance:           r.Distance,
		MovingTime:         r.MovingTime,
		ElapsedTime:        r.ElapsedTime,
		TotalElevationGain: r.TotalElevationGain,

		AverageSpeed:     r.AverageSpeed,
		MaxSpeed:         r.MaxSpeed,
		AverageHeartrate: r.AverageHeartrate,
		MaxHeartrate:     r.MaxHeartrate,
		AverageCadence:   r.AverageCadence,

		StartDate:      r.StartDate,
		StartDateLocal: r.StartDateLocal,
		Timezone:       r.Timezone,
		StartLatLng:    r.StartLatLng,
		EndLatLng:      r.EndLatLng,

		AchievementCount: r.AchievementCount,
		KudosCount:       r.KudosCount,
		CommentCount:     r.CommentCount,
		AthleteCount:     athleteCount,

		MapSummaryPolyline: r.Map.SummaryPolyline,
	}, nil
}
