package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
	"github.com/eroderunners/clubhouse/internal/strava"
)

// CodeExchanger runs the Strava authorization-code flow.
// *strava.OAuth implements it.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// StravaService manages a member's Strava connection lifecycle:
// link (code exchange + credential store + initial backfill), manual sync,
// disconnect.
type StravaService struct {
	users  repository.UserRepository
	oauth  CodeExchanger
	sync   *SyncService
	logger *slog.Logger
}

// NewStravaService creates a StravaService.
func NewStravaService(users repository.UserRepository, oauth CodeExchanger, sync *SyncService, logger *slog.Logger) *StravaService {
	return &StravaService{users: users, oauth: oauth, sync: sync, logger: logger}
}

// ConnectURL returns the Strava consent URL for the member to visit.
// state should bind the callback to the member's session (we use the JWT
// user id, verified again on link).
func (s *StravaService) ConnectURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// Link exchanges the OAuth callback code, stores the credential and kicks
// off a 90-day backfill. Returns the number of activities synced.
//
// The link itself is the important part: if the backfill fails (Strava
// hiccup, rate limit), the connection still stands and the nightly batch
// will pick the member up. The error is logged, not returned.
func (s *StravaService) Link(ctx context.Context, userID, code string) (int, error) {
	if code == "" {
		return 0, apperror.ValidationFailed("code", "authorization code is required")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("linking strava: %w", err)
	}

	athlete := strava.ExtractAthlete(token)
	if athlete.ID == "" {
		return 0, apperror.ValidationFailed("code", "token response carried no athlete")
	}

	cred := model.StravaCredential{
		AthleteID:      athlete.ID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpiresAt:      token.Expiry,
		ProfilePicture: athlete.Picture,
	}
	if err := s.users.LinkStrava(ctx, userID, cred); err != nil {
		return 0, fmt.Errorf("storing strava credential: %w", err)
	}

	s.logger.Info("strava linked",
		slog.String("user_id", userID),
		slog.String("athlete_id", athlete.ID),
	)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reloading user after link: %w", err)
	}

	synced, err := s.sync.SyncUser(ctx, user, ManualSyncDays)
	if err != nil {
		s.logger.Error("initial strava sync failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return synced, nil
}

// Sync runs a manual 90-day sync for the member.
func (s *StravaService) Sync(ctx context.Context, userID string) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.sync.SyncUser(ctx, user, ManualSyncDays)
}

// Disconnect removes the member's Strava connection. Already-synced
// activities stay — they're the club's history now.
func (s *StravaService) Disconnect(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.StravaConnected() {
		return apperror.ValidationFailed("strava", "no strava account is connected")
	}

	if err := s.users.DisconnectStrava(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("strava disconnected", slog.String("user_id", userID))
	return nil
}
