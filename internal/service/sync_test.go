package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/eroderunners/clubhouse/internal/strava"
)

func newTestSync(users *mockUserRepo, activities *mockActivityRepo, refresher *mockRefresher, fetcher *mockFetcher) *SyncService {
	return NewSyncService(users, activities, refresher, fetcher, testLogger())
}

// =========================================================================
// TOKEN LIFECYCLE TESTS
// =========================================================================

func TestSyncUser_ValidToken_NoRefresh(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	refresher := &mockRefresher{}
	fetcher := &mockFetcher{pages: [][]strava.Activity{
		{stravaRun(101, "Morning Run", time.Now().Add(-2*time.Hour))},
	}}
	svc := newTestSync(users, newMockActivityRepo(), refresher, fetcher)

	n, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if n != 1 {
		t.Errorf("synced = %d, want 1", n)
	}
	if refresher.calls != 0 {
		t.Errorf("refresher called %d times, want 0", refresher.calls)
	}
	if users.tokenUpdates != 0 {
		t.Errorf("token updates = %d, want 0", users.tokenUpdates)
	}
	if fetcher.tokens[0] != "access-alice" {
		t.Errorf("fetch used token %q, want the stored one", fetcher.tokens[0])
	}
}

func TestSyncUser_ZeroExpiry_NoRefresh(t *testing.T) {
	// An unset expiry means "unknown", not "expired" — the stored token is
	// trusted and no exchange happens.
	users := newMockUserRepo()
	user := connectedUser("alice")
	user.StravaExpiresAt = time.Time{}
	seedUser(t, users, user)

	refresher := &mockRefresher{err: errors.New("should not be called")}
	fetcher := &mockFetcher{}
	svc := newTestSync(users, newMockActivityRepo(), refresher, fetcher)

	if _, err := svc.SyncUser(context.Background(), user, BatchSyncDays); err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if refresher.calls != 0 {
		t.Errorf("refresher called %d times, want 0", refresher.calls)
	}
}

func TestSyncUser_ExpiredToken_RefreshesOnceAndPersists(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	user.StravaExpiresAt = time.Now().Add(-time.Minute)
	seedUser(t, users, user)

	newExpiry := time.Now().Add(6 * time.Hour)
	refresher := &mockRefresher{token: &oauth2.Token{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		Expiry:       newExpiry,
	}}
	fetcher := &mockFetcher{pages: [][]strava.Activity{
		{stravaRun(101, "Morning Run", time.Now().Add(-2*time.Hour))},
	}}
	svc := newTestSync(users, newMockActivityRepo(), refresher, fetcher)

	if _, err := svc.SyncUser(context.Background(), user, BatchSyncDays); err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}

	if refresher.calls != 1 {
		t.Errorf("refresher called %d times, want 1", refresher.calls)
	}
	if users.tokenUpdates != 1 {
		t.Errorf("token updates = %d, want 1", users.tokenUpdates)
	}

	// The whole rotated pair must be stored, not just the access token.
	stored, _ := users.GetByID(context.Background(), "alice")
	if stored.StravaAccessToken != "new-access" {
		t.Errorf("stored access token = %q, want %q", stored.StravaAccessToken, "new-access")
	}
	if stored.StravaRefresh != "new-refresh" {
		t.Errorf("stored refresh token = %q, want %q", stored.StravaRefresh, "new-refresh")
	}
	if !stored.StravaExpiresAt.Equal(newExpiry) {
		t.Errorf("stored expiry = %v, want %v", stored.StravaExpiresAt, newExpiry)
	}

	// And the fetch must have used the fresh token.
	if fetcher.tokens[0] != "new-access" {
		t.Errorf("fetch used token %q, want %q", fetcher.tokens[0], "new-access")
	}
	// In-memory user kept consistent with the store.
	if user.StravaRefresh != "new-refresh" {
		t.Errorf("in-memory refresh token = %q, want %q", user.StravaRefresh, "new-refresh")
	}
}

func TestSyncUser_RefreshFails_NothingWritten(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	user.StravaExpiresAt = time.Now().Add(-time.Minute)
	seedUser(t, users, user)

	refresher := &mockRefresher{err: errors.New("invalid refresh token")}
	fetcher := &mockFetcher{}
	svc := newTestSync(users, newMockActivityRepo(), refresher, fetcher)

	_, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if !errors.Is(err, ErrTokenRefresh) {
		t.Fatalf("error = %v, want ErrTokenRefresh", err)
	}

	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.UserID != "alice" {
		t.Errorf("error = %v, want *SyncError for alice", err)
	}
	if users.tokenUpdates != 0 {
		t.Errorf("token updates = %d, want 0 after failed refresh", users.tokenUpdates)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times, want 0", fetcher.calls)
	}

	// Stored credential untouched, usable for a later retry.
	stored, _ := users.GetByID(context.Background(), "alice")
	if stored.StravaRefresh != "refresh-alice" {
		t.Errorf("stored refresh token = %q, want the original", stored.StravaRefresh)
	}
}

func TestSyncUser_PersistFails_ErrTokenRefresh(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	user.StravaExpiresAt = time.Now().Add(-time.Minute)
	seedUser(t, users, user)
	users.failTokenUpdate = errors.New("disk full")

	refresher := &mockRefresher{token: &oauth2.Token{
		AccessToken: "new-access", RefreshToken: "new-refresh", Expiry: time.Now().Add(time.Hour),
	}}
	svc := newTestSync(users, newMockActivityRepo(), refresher, &mockFetcher{})

	_, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if !errors.Is(err, ErrTokenRefresh) {
		t.Fatalf("error = %v, want ErrTokenRefresh", err)
	}
}

func TestSyncUser_NotConnected(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	user.StravaAthleteID = ""
	seedUser(t, users, user)

	svc := newTestSync(users, newMockActivityRepo(), &mockRefresher{}, &mockFetcher{})

	_, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
}

// =========================================================================
// FETCH WINDOW AND FILTERING TESTS
// =========================================================================

func TestSyncUser_WindowReachesBack(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	fetcher := &mockFetcher{}
	svc := newTestSync(users, newMockActivityRepo(), &mockRefresher{}, fetcher)

	before := time.Now().AddDate(0, 0, -ManualSyncDays)
	if _, err := svc.SyncUser(context.Background(), user, ManualSyncDays); err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	after := time.Now().AddDate(0, 0, -ManualSyncDays)

	if fetcher.lastAfter.Before(before) || fetcher.lastAfter.After(after) {
		t.Errorf("after bound = %v, want ~%d days back", fetcher.lastAfter, ManualSyncDays)
	}
}

func TestSyncUser_KeepsOnlyRuns(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	start := time.Now().Add(-2 * time.Hour)
	ride := stravaRun(201, "Lunch Ride", start)
	ride.SportType = "Ride"
	trail := stravaRun(202, "Hill Repeats", start)
	trail.SportType = "TrailRun"
	virtual := stravaRun(203, "Treadmill", start)
	virtual.SportType = "VirtualRun"
	swim := stravaRun(204, "Pool", start)
	swim.SportType = "Swim"

	activities := newMockActivityRepo()
	fetcher := &mockFetcher{pages: [][]strava.Activity{{ride, trail, virtual, swim}}}
	svc := newTestSync(users, activities, &mockRefresher{}, fetcher)

	n, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if n != 2 {
		t.Errorf("synced = %d, want 2 (TrailRun + VirtualRun)", n)
	}
	if _, err := activities.GetByStravaID(context.Background(), "201"); err == nil {
		t.Error("ride was stored, want runs only")
	}
}

// =========================================================================
// PAGINATION TESTS
// =========================================================================

func TestSyncUser_SinglePartialPage(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	start := time.Now().Add(-2 * time.Hour)
	fetcher := &mockFetcher{pages: [][]strava.Activity{{
		stravaRun(301, "One", start),
		stravaRun(302, "Two", start),
		stravaRun(303, "Three", start),
	}}}
	svc := newTestSync(users, newMockActivityRepo(), &mockRefresher{}, fetcher)

	n, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if n != 3 {
		t.Errorf("synced = %d, want 3", n)
	}
	// 3 < page size: no second request.
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
}

func TestSyncUser_FullPageThenEmpty(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	start := time.Now().Add(-2 * time.Hour)
	full := make([]strava.Activity, strava.PerPage)
	for i := range full {
		full[i] = stravaRun(int64(400+i), "Run", start)
	}
	fetcher := &mockFetcher{pages: [][]strava.Activity{full}}
	svc := newTestSync(users, newMockActivityRepo(), &mockRefresher{}, fetcher)

	n, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if n != strava.PerPage {
		t.Errorf("synced = %d, want %d", n, strava.PerPage)
	}
	// A full page can't prove the end: one more request finds it empty.
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls)
	}
}

func TestSyncUser_FullPageThenShortPage(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	start := time.Now().Add(-2 * time.Hour)
	full := make([]strava.Activity, strava.PerPage)
	for i := range full {
		full[i] = stravaRun(int64(500+i), "Run", start)
	}
	short := []strava.Activity{stravaRun(999, "Last", start)}
	fetcher := &mockFetcher{pages: [][]strava.Activity{full, short}}
	svc := newTestSync(users, newMockActivityRepo(), &mockRefresher{}, fetcher)

	n, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if n != strava.PerPage+1 {
		t.Errorf("synced = %d, want %d", n, strava.PerPage+1)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (short page ends the walk)", fetcher.calls)
	}
}

// =========================================================================
// IDEMPOTENCY AND FAILURE TESTS
// =========================================================================

func TestSyncUser_RerunIsIdempotent(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	start := time.Now().Add(-2 * time.Hour)
	activities := newMockActivityRepo()
	fetcher := &mockFetcher{pages: [][]strava.Activity{{
		stravaRun(601, "One", start),
		stravaRun(602, "Two", start),
	}}}
	svc := newTestSync(users, activities, &mockRefresher{}, fetcher)

	if _, err := svc.SyncUser(context.Background(), user, BatchSyncDays); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if _, err := svc.SyncUser(context.Background(), user, BatchSyncDays); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if len(activities.activities) != 2 {
		t.Errorf("stored activities = %d, want 2 after replay", len(activities.activities))
	}
}

func TestSyncUser_FetchFails_PartialProgressKept(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	fetcher := &mockFetcher{err: errors.New("strava is down")}
	activities := newMockActivityRepo()
	svc := newTestSync(users, activities, &mockRefresher{}, fetcher)

	_, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("error = %v, want ErrFetch", err)
	}
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.UserID != "alice" {
		t.Errorf("error = %v, want *SyncError for alice", err)
	}
}

func TestSyncUser_UpsertFails_KeepsEarlierRows(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	start := time.Now().Add(-2 * time.Hour)
	activities := newMockActivityRepo()
	fetcher := &mockFetcher{pages: [][]strava.Activity{{
		stravaRun(701, "One", start),
		stravaRun(702, "Two", start),
	}}}
	svc := newTestSync(users, activities, &mockRefresher{}, fetcher)

	// A clean first sync lands two rows; the second sync then hits a
	// failing store.
	if _, err := svc.SyncUser(context.Background(), user, BatchSyncDays); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	fetcher.pages = [][]strava.Activity{{
		stravaRun(701, "One", start),
		stravaRun(703, "Three", start),
	}}
	activities.failUpsert = errors.New("disk full")

	n, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if err == nil {
		t.Fatal("expected error from failing upsert")
	}
	if n != 0 {
		t.Errorf("synced = %d, want 0 from the failed run", n)
	}
	// Rows from the first sync survive the aborted second one.
	if len(activities.activities) != 2 {
		t.Errorf("stored activities = %d, want 2", len(activities.activities))
	}
}

func TestSyncUser_MalformedRecord_ErrMapping(t *testing.T) {
	users := newMockUserRepo()
	user := connectedUser("alice")
	seedUser(t, users, user)

	bad := stravaRun(801, "", time.Now().Add(-2*time.Hour)) // no name
	fetcher := &mockFetcher{pages: [][]strava.Activity{{bad}}}
	svc := newTestSync(users, newMockActivityRepo(), &mockRefresher{}, fetcher)

	_, err := svc.SyncUser(context.Background(), user, BatchSyncDays)
	if !errors.Is(err, ErrMapping) {
		t.Fatalf("error = %v, want ErrMapping", err)
	}
}

// =========================================================================
// MAPPING TESTS
// =========================================================================

func TestMapActivity(t *testing.T) {
	start := time.Date(2026, 8, 30, 6, 15, 0, 0, time.UTC)
	hr := 152.4
	r := strava.Activity{
		ID:               12345,
		Name:             "Sunday Long Run",
		SportType:        "Run",
		Distance:         21097.5,
		MovingTime:       6300,
		StartDate:        start,
		StartDateLocal:   start.Add(5*time.Hour + 30*time.Minute),
		Timezone:         "(GMT+05:30) Asia/Kolkata",
		AverageHeartrate: &hr,
		StartLatLng:      []float64{11.34, 77.71},
	}
	r.Map.SummaryPolyline = "abc123"

	a, err := mapActivity("alice", r)
	if err != nil {
		t.Fatalf("mapActivity() error = %v", err)
	}
	if a.StravaActivityID != "12345" {
		t.Errorf("StravaActivityID = %q, want %q", a.StravaActivityID, "12345")
	}
	if a.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", a.UserID)
	}
	if a.AthleteCount != 1 {
		t.Errorf("AthleteCount = %d, want default 1", a.AthleteCount)
	}
	if a.AverageHeartrate == nil || *a.AverageHeartrate != hr {
		t.Errorf("AverageHeartrate = %v, want %v", a.AverageHeartrate, hr)
	}
	if a.MapSummaryPolyline != "abc123" {
		t.Errorf("MapSummaryPolyline = %q, want %q", a.MapSummaryPolyline, "abc123")
	}
}

func TestMapActivity_MissingRequiredFields(t *testing.T) {
	start := time.Now()
	cases := []struct {
		name string
		raw  strava.Activity
	}{
		{"missing id", strava.Activity{Name: "Run", SportType: "Run", StartDate: start}},
		{"missing name", strava.Activity{ID: 1, SportType: "Run", StartDate: start}},
		{"missing start date", strava.Activity{ID: 1, Name: "Run", SportType: "Run"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mapActivity("alice", tc.raw); !errors.Is(err, ErrMapping) {
				t.Errorf("error = %v, want ErrMapping", err)
			}
		})
	}
}
