package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// RaceService manages the club's race calendar.
type RaceService struct {
	repo   repository.RaceRepository
	logger *slog.Logger
}

// NewRaceService creates a RaceService.
func NewRaceService(repo repository.RaceRepository, logger *slog.Logger) *RaceService {
	return &RaceService{repo: repo, logger: logger}
}

// RaceInput is the admin's create/update form for a race.
type RaceInput struct {
	Name                 string
	Description          string
	Location             string
	Date                 time.Time
	Distance             float64
	ElevationGain        float64
	RaceType             string
	RegistrationURL      string
	RegistrationDeadline time.Time
	MaxParticipants      int
	IsActive             bool
	CoverImage           string
}

// Create validates and stores a race.
func (s *RaceService) Create(ctx context.Context, in RaceInput) (*model.Race, error) {
	if err := validateRaceInput(in); err != nil {
		return nil, err
	}

	race := raceFromInput(in)
	if err := s.repo.Create(ctx, race); err != nil {
		return nil, err
	}

	s.logger.Info("race created", slog.String("race_id", race.ID), slog.String("name", race.Name))
	return race, nil
}

// Get returns one race by id.
func (s *RaceService) Get(ctx context.Context, id string) (*model.Race, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns active races, date ascending. upcomingOnly drops past races;
// limit 0 means all.
func (s *RaceService) List(ctx context.Context, upcomingOnly bool, limit int) ([]model.Race, error) {
	return s.repo.List(ctx, upcomingOnly, limit)
}

// Update rewrites a race.
func (s *RaceService) Update(ctx context.Context, id string, in RaceInput) (*model.Race, error) {
	if err := validateRaceInput(in); err != nil {
		return nil, err
	}

	race, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := raceFromInput(in)
	updated.ID = race.ID
	updated.CreatedAt = race.CreatedAt

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a race from the calendar.
func (s *RaceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("race deleted", slog.String("race_id", id))
	return nil
}

func validateRaceInput(in RaceInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperror.ValidationFailed("name", "race name is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return apperror.ValidationFailed("location", "race location is required")
	}
	if in.Date.IsZero() {
		return apperror.ValidationFailed("date", "race date is required")
	}
	if in.Distance < 0 {
		return apperror.ValidationFailed("distance", "distance cannot be negative")
	}
	return nil
}

func raceFromInput(in RaceInput) *model.Race {
	return &model.Race{
		Name:                 strings.TrimSpace(in.Name),
		Description:          in.Description,
		Location:             strings.TrimSpace(in.Location),
		Date:                 in.Date,
		Distance:             in.Distance,
		ElevationGain:        in.ElevationGain,
		RaceType:             in.RaceType,
		RegistrationURL:      in.RegistrationURL,
		RegistrationDeadline: in.RegistrationDeadline,
		MaxParticipants:      in.MaxParticipants,
		IsActive:             in.IsActive,
		CoverImage:           in.CoverImage,
	}
}
