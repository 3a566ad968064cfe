package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
	"github.com/eroderunners/clubhouse/internal/strava"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// WHAT IS A MOCK?
// A mock is a fake implementation of an interface used in tests.
// Instead of talking to a real database, it stores data in memory.
//
// WHY MOCK?
// 1. SPEED: No database setup, no disk I/O, tests run in microseconds
// 2. ISOLATION: Tests only test the service logic, not the database
// 3. CONTROL: You can simulate errors (Strava down, refresh rejected)
//    that would be hard to trigger against the real thing
//
// The mocks here are shared by all the service tests in this package, so
// they live in their own _test.go file instead of being repeated per test.

type mockUserRepo struct {
	users  map[string]*model.User
	nextID int

	// tokenUpdates counts UpdateStravaTokens calls so tests can assert
	// "exactly one refresh was persisted".
	tokenUpdates int

	// failTokenUpdate makes the next UpdateStravaTokens call fail.
	failTokenUpdate error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.nextID++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", m.nextID)
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockUserRepo) List(_ context.Context) ([]model.User, error) {
	result := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) LinkStrava(_ context.Context, userID string, cred model.StravaCredential) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	for id, other := range m.users {
		if id != userID && other.StravaAthleteID == cred.AthleteID {
			return apperror.Conflict("strava athlete", cred.AthleteID)
		}
	}
	u.StravaAthleteID = cred.AthleteID
	u.StravaAccessToken = cred.AccessToken
	u.StravaRefresh = cred.RefreshToken
	u.StravaExpiresAt = cred.ExpiresAt
	u.StravaConnectedAt = time.Now()
	if cred.ProfilePicture != "" {
		u.ProfilePicture = cred.ProfilePicture
	}
	return nil
}

func (m *mockUserRepo) UpdateStravaTokens(_ context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	if m.failTokenUpdate != nil {
		err := m.failTokenUpdate
		m.failTokenUpdate = nil
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.StravaAccessToken = accessToken
	u.StravaRefresh = refreshToken
	u.StravaExpiresAt = expiresAt
	m.tokenUpdates++
	return nil
}

func (m *mockUserRepo) DisconnectStrava(_ context.Context, userID string) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.StravaAthleteID = ""
	u.StravaAccessToken = ""
	u.StravaRefresh = ""
	u.StravaExpiresAt = time.Time{}
	u.StravaConnectedAt = time.Time{}
	return nil
}

func (m *mockUserRepo) ListStravaConnected(_ context.Context) ([]model.User, error) {
	result := make([]model.User, 0)
	for _, u := range m.users {
		if u.StravaAthleteID != "" && u.IsActive {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// mockActivityRepo stores activities keyed by Strava id, same uniqueness
// rule as the real table.
type mockActivityRepo struct {
	activities map[string]*model.Activity // keyed by StravaActivityID
	nextID     int

	failUpsert error // next Upsert call fails with this
}

func newMockActivityRepo() *mockActivityRepo {
	return &mockActivityRepo{activities: make(map[string]*model.Activity)}
}

func (m *mockActivityRepo) Upsert(_ context.Context, activity *model.Activity) error {
	if m.failUpsert != nil {
		err := m.failUpsert
		m.failUpsert = nil
		return err
	}
	if existing, ok := m.activities[activity.StravaActivityID]; ok {
		// First writer owns the row: id, owner and created-at survive.
		activity.ID = existing.ID
		activity.UserID = existing.UserID
		activity.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		activity.ID = fmt.Sprintf("act-%d", m.nextID)
		activity.CreatedAt = time.Now()
	}
	activity.SyncedAt = time.Now()
	stored := *activity
	m.activities[activity.StravaActivityID] = &stored
	return nil
}

func (m *mockActivityRepo) GetByStravaID(_ context.Context, stravaActivityID string) (*model.Activity, error) {
	a, ok := m.activities[stravaActivityID]
	if !ok {
		return nil, apperror.NotFound("activity", stravaActivityID)
	}
	result := *a
	return &result, nil
}

func (m *mockActivityRepo) ListByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Activity, error) {
	result := make([]model.Activity, 0)
	for _, a := range m.activities {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.After(result[j].StartDate)
	})
	if opts.Offset >= len(result) {
		return []model.Activity{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockActivityRepo) CountByUser(_ context.Context, userID string) (int, error) {
	count := 0
	for _, a := range m.activities {
		if a.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *mockActivityRepo) UserTotals(_ context.Context, userID string, since time.Time) (*repository.UserTotals, error) {
	totals := &repository.UserTotals{}
	for _, a := range m.activities {
		if a.UserID != userID {
			continue
		}
		if !since.IsZero() && a.StartDateLocal.Before(since) {
			continue
		}
		totals.TotalDistance += a.Distance
		totals.TotalTime += a.MovingTime
		totals.TotalElevation += a.TotalElevationGain
		if a.Distance > totals.LongestRun {
			totals.LongestRun = a.Distance
		}
		totals.ActivityCount++
	}
	return totals, nil
}

func (m *mockActivityRepo) MonthlyLeaderboard(_ context.Context, year int, month time.Month) ([]repository.LeaderboardRow, error) {
	byUser := make(map[string]*repository.LeaderboardRow)
	for _, a := range m.activities {
		if a.StartDateLocal.Year() != year || a.StartDateLocal.Month() != month {
			continue
		}
		row, ok := byUser[a.UserID]
		if !ok {
			row = &repository.LeaderboardRow{UserID: a.UserID, Username: a.UserID}
			byUser[a.UserID] = row
		}
		row.TotalDistance += a.Distance
		row.TotalActivities++
	}
	result := make([]repository.LeaderboardRow, 0, len(byUser))
	for _, row := range byUser {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TotalDistance > result[j].TotalDistance
	})
	return result, nil
}

// mockRaceRepo keeps the race calendar in memory.
type mockRaceRepo struct {
	races  map[string]*model.Race
	nextID int
}

func newMockRaceRepo() *mockRaceRepo {
	return &mockRaceRepo{races: make(map[string]*model.Race)}
}

func (m *mockRaceRepo) Create(_ context.Context, race *model.Race) error {
	m.nextID++
	race.ID = fmt.Sprintf("race-%d", m.nextID)
	race.CreatedAt = time.Now()
	stored := *race
	m.races[race.ID] = &stored
	return nil
}

func (m *mockRaceRepo) GetByID(_ context.Context, id string) (*model.Race, error) {
	r, ok := m.races[id]
	if !ok {
		return nil, apperror.NotFound("race", id)
	}
	result := *r
	return &result, nil
}

func (m *mockRaceRepo) List(_ context.Context, upcomingOnly bool, limit int) ([]model.Race, error) {
	now := time.Now()
	result := make([]model.Race, 0)
	for _, r := range m.races {
		if !r.IsActive {
			continue
		}
		if upcomingOnly && r.Date.Before(now) {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRaceRepo) Update(_ context.Context, race *model.Race) error {
	if _, ok := m.races[race.ID]; !ok {
		return apperror.NotFound("race", race.ID)
	}
	stored := *race
	m.races[race.ID] = &stored
	return nil
}

func (m *mockRaceRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.races[id]; !ok {
		return apperror.NotFound("race", id)
	}
	delete(m.races, id)
	return nil
}

// =========================================================================
// MOCK STRAVA
// =========================================================================

// mockRefresher hands out a scripted token pair, or fails.
type mockRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (m *mockRefresher) Refresh(_ context.Context, _ string) (*oauth2.Token, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.token, nil
}

// mockFetcher replays scripted pages. Page N serves pages[N-1]; pages past
// the script are empty, like Strava past the athlete's history.
type mockFetcher struct {
	pages [][]strava.Activity
	err   error // fail every call

	calls     int
	lastAfter time.Time
	tokens    []string // access token seen on each call
}

func (m *mockFetcher) ListActivities(_ context.Context, accessToken string, after time.Time, page, perPage int) ([]strava.Activity, error) {
	m.calls++
	m.lastAfter = after
	m.tokens = append(m.tokens, accessToken)
	if m.err != nil {
		return nil, m.err
	}
	if page < 1 || page > len(m.pages) {
		return nil, nil
	}
	return m.pages[page-1], nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stravaRun builds a minimal valid run record.
func stravaRun(id int64, name string, start time.Time) strava.Activity {
	return strava.Activity{
		ID:             id,
		Name:           name,
		SportType:      "Run",
		Distance:       5000,
		MovingTime:     1500,
		ElapsedTime:    1560,
		StartDate:      start,
		StartDateLocal: start,
	}
}

// connectedUser builds a member whose Strava credential doesn't need a
// refresh (expiry one hour out).
func connectedUser(id string) *model.User {
	return &model.User{
		ID:                id,
		Email:             id + "@example.com",
		Username:          id,
		IsActive:          true,
		StravaAthleteID:   "9" + id,
		StravaAccessToken: "access-" + id,
		StravaRefresh:     "refresh-" + id,
		StravaExpiresAt:   time.Now().Add(time.Hour),
		StravaConnectedAt: time.Now(),
	}
}

func seedUser(t *testing.T, repo *mockUserRepo, u *model.User) {
	t.Helper()
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}
