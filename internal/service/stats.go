package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// StatsService assembles member statistics, the leaderboard and the
// dashboard from stored activities.
type StatsService struct {
	activities repository.ActivityRepository
	races      repository.RaceRepository
	logger     *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(activities repository.ActivityRepository, races repository.RaceRepository, logger *slog.Logger) *StatsService {
	return &StatsService{activities: activities, races: races, logger: logger}
}

// Statistics is a member's aggregate over some window.
// Distances are kilometers rounded to 2 decimals; pace is minutes per km.
type Statistics struct {
	TotalDistanceKM  float64 `json:"totalDistanceKm"`
	TotalActivities  int     `json:"totalActivities"`
	TotalMovingTime  int     `json:"totalMovingTime"` // seconds
	TotalElevationM  float64 `json:"totalElevationM"`
	LongestRunKM     float64 `json:"longestRunKm"`
	AveragePaceMinKM float64 `json:"averagePaceMinKm"`
}

// LeaderboardEntry is one member's standing for the month.
type LeaderboardEntry struct {
	Rank            int     `json:"rank"`
	UserID          string  `json:"userId"`
	Username        string  `json:"username"`
	FullName        string  `json:"fullName"`
	ProfilePicture  string  `json:"profilePicture"`
	TotalDistanceKM float64 `json:"totalDistanceKm"`
	TotalActivities int     `json:"totalActivities"`
}

// Dashboard is everything the app's home screen shows in one call.
type Dashboard struct {
	Overall          Statistics       `json:"overall"`
	MonthDistanceKM  float64          `json:"monthDistanceKm"`
	WeekDistanceKM   float64          `json:"weekDistanceKm"`
	MonthRank        int              `json:"monthRank"` // 0 = unranked this month
	RecentActivities []model.Activity `json:"recentActivities"`
	UpcomingRaces    []model.Race     `json:"upcomingRaces"`
}

// Overall returns the member's all-time statistics.
func (s *StatsService) Overall(ctx context.Context, userID string) (*Statistics, error) {
	return s.window(ctx, userID, time.Time{})
}

// Monthly returns the member's statistics since the 1st of the current month.
func (s *StatsService) Monthly(ctx context.Context, userID string) (*Statistics, error) {
	return s.window(ctx, userID, startOfMonth(time.Now().UTC()))
}

// Weekly returns the member's statistics for the current week. Weeks start
// on Monday — that's when training plans reset.
func (s *StatsService) Weekly(ctx context.Context, userID string) (*Statistics, error) {
	return s.window(ctx, userID, startOfWeek(time.Now().UTC()))
}

func (s *StatsService) window(ctx context.Context, userID string, since time.Time) (*Statistics, error) {
	totals, err := s.activities.UserTotals(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	return statisticsFromTotals(totals), nil
}

// Leaderboard ranks members by distance for the given month.
func (s *StatsService) Leaderboard(ctx context.Context, year int, month time.Month) ([]LeaderboardEntry, error) {
	rows, err := s.activities.MonthlyLeaderboard(ctx, year, month)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = LeaderboardEntry{
			Rank:            i + 1,
			UserID:          r.UserID,
			Username:        r.Username,
			FullName:        r.FullName,
			ProfilePicture:  r.ProfilePicture,
			TotalDistanceKM: roundKM(r.TotalDistance),
			TotalActivities: r.TotalActivities,
		}
	}
	return entries, nil
}

// BuildDashboard assembles the home-screen payload for one member.
func (s *StatsService) BuildDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	now := time.Now().UTC()

	overall, err := s.Overall(ctx, userID)
	if err != nil {
		return nil, err
	}
	monthly, err := s.window(ctx, userID, startOfMonth(now))
	if err != nil {
		return nil, err
	}
	weekly, err := s.window(ctx, userID, startOfWeek(now))
	if err != nil {
		return nil, err
	}

	recent, err := s.activities.ListByUser(ctx, userID, repository.ListOptions{Limit: 5})
	if err != nil {
		return nil, err
	}

	races, err := s.races.List(ctx, true, 3)
	if err != nil {
		return nil, err
	}

	rank := 0
	board, err := s.Leaderboard(ctx, now.Year(), now.Month())
	if err != nil {
		return nil, err
	}
	for _, e := range board {
		if e.UserID == userID {
			rank = e.Rank
			break
		}
	}

	return &Dashboard{
		Overall:          *overall,
		MonthDistanceKM:  monthly.TotalDistanceKM,
		WeekDistanceKM:   weekly.TotalDistanceKM,
		MonthRank:        rank,
		RecentActivities: recent,
		UpcomingRaces:    races,
	}, nil
}

func statisticsFromTotals(t *repository.UserTotals) *Statistics {
	stats := &Statistics{
		TotalDistanceKM: roundKM(t.TotalDistance),
		TotalActivities: t.ActivityCount,
		TotalMovingTime: t.TotalTime,
		TotalElevationM: t.TotalElevation,
		LongestRunKM:    roundKM(t.LongestRun),
	}
	if t.TotalDistance > 0 {
		// pace (min/km) = minutes moved / km covered
		pace := (float64(t.TotalTime) / 60) / (t.TotalDistance / 1000)
		stats.AveragePaceMinKM = math.Round(pace*100) / 100
	}
	return stats
}

// roundKM converts meters to kilometers rounded to 2 decimals.
func roundKM(meters float64) float64 {
	return math.Round(meters/10) / 100
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the preceding (or current) Monday at midnight.
func startOfWeek(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -daysSinceMonday)
}
