package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/strava"
)

// mockExchanger scripts the OAuth code exchange.
type mockExchanger struct {
	token *oauth2.Token
	err   error
}

func (m *mockExchanger) AuthCodeURL(state string) string {
	return "https://example.com/authorize?state=" + state
}

func (m *mockExchanger) Exchange(_ context.Context, _ string) (*oauth2.Token, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.token, nil
}

// exchangeToken builds a token response carrying an athlete profile, the
// shape Strava's token endpoint returns on a code exchange.
func exchangeToken(athleteID float64, picture string) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  "exch-access",
		RefreshToken: "exch-refresh",
		Expiry:       time.Now().Add(6 * time.Hour),
	}
	return token.WithExtra(map[string]any{
		"athlete": map[string]any{
			"id":      athleteID,
			"profile": picture,
		},
	})
}

func newTestStrava(users *mockUserRepo, activities *mockActivityRepo, exch *mockExchanger, fetcher *mockFetcher) *StravaService {
	sync := NewSyncService(users, activities, &mockRefresher{}, fetcher, testLogger())
	return NewStravaService(users, exch, sync, testLogger())
}

// =========================================================================
// LINK TESTS
// =========================================================================

func TestLink_StoresCredentialAndBackfills(t *testing.T) {
	users := newMockUserRepo()
	member := connectedUser("alice")
	member.StravaAthleteID = "" // not linked yet
	member.StravaAccessToken = ""
	member.StravaRefresh = ""
	member.StravaExpiresAt = time.Time{}
	seedUser(t, users, member)

	activities := newMockActivityRepo()
	exch := &mockExchanger{token: exchangeToken(2468, "https://cdn/pic.jpg")}
	fetcher := &mockFetcher{pages: [][]strava.Activity{{
		stravaRun(901, "Backfilled Run", time.Now().AddDate(0, 0, -30)),
	}}}
	svc := newTestStrava(users, activities, exch, fetcher)

	n, err := svc.Link(context.Background(), "alice", "the-code")
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if n != 1 {
		t.Errorf("backfilled = %d, want 1", n)
	}

	stored, _ := users.GetByID(context.Background(), "alice")
	if stored.StravaAthleteID != "2468" {
		t.Errorf("athlete id = %q, want %q", stored.StravaAthleteID, "2468")
	}
	if stored.StravaAccessToken != "exch-access" || stored.StravaRefresh != "exch-refresh" {
		t.Errorf("stored tokens = (%q, %q), want the exchanged pair",
			stored.StravaAccessToken, stored.StravaRefresh)
	}
	if stored.ProfilePicture != "https://cdn/pic.jpg" {
		t.Errorf("profile picture = %q, want the athlete's", stored.ProfilePicture)
	}

	// The backfill reaches the full manual window.
	wantAfter := time.Now().AddDate(0, 0, -ManualSyncDays)
	if fetcher.lastAfter.After(wantAfter.Add(time.Minute)) {
		t.Errorf("backfill after bound = %v, want ~%d days back", fetcher.lastAfter, ManualSyncDays)
	}
}

func TestLink_EmptyCode(t *testing.T) {
	svc := newTestStrava(newMockUserRepo(), newMockActivityRepo(), &mockExchanger{}, &mockFetcher{})

	_, err := svc.Link(context.Background(), "alice", "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestLink_ExchangeFails(t *testing.T) {
	users := newMockUserRepo()
	seedUser(t, users, connectedUser("alice"))

	exch := &mockExchanger{err: errors.New("bad code")}
	svc := newTestStrava(users, newMockActivityRepo(), exch, &mockFetcher{})

	if _, err := svc.Link(context.Background(), "alice", "the-code"); err == nil {
		t.Fatal("expected error from failed exchange")
	}
}

func TestLink_NoAthleteInResponse(t *testing.T) {
	users := newMockUserRepo()
	seedUser(t, users, connectedUser("alice"))

	exch := &mockExchanger{token: &oauth2.Token{AccessToken: "a", RefreshToken: "r"}}
	svc := newTestStrava(users, newMockActivityRepo(), exch, &mockFetcher{})

	_, err := svc.Link(context.Background(), "alice", "the-code")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestLink_AthleteAlreadyClaimed(t *testing.T) {
	users := newMockUserRepo()
	owner := connectedUser("alice")
	owner.StravaAthleteID = "2468"
	seedUser(t, users, owner)

	late := connectedUser("bob")
	late.StravaAthleteID = ""
	seedUser(t, users, late)

	exch := &mockExchanger{token: exchangeToken(2468, "")}
	svc := newTestStrava(users, newMockActivityRepo(), exch, &mockFetcher{})

	_, err := svc.Link(context.Background(), "bob", "the-code")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestLink_BackfillFailureDoesNotUndoTheLink(t *testing.T) {
	users := newMockUserRepo()
	member := connectedUser("alice")
	member.StravaAthleteID = ""
	seedUser(t, users, member)

	exch := &mockExchanger{token: exchangeToken(2468, "")}
	fetcher := &mockFetcher{err: errors.New("strava is down")}
	svc := newTestStrava(users, newMockActivityRepo(), exch, fetcher)

	n, err := svc.Link(context.Background(), "alice", "the-code")
	if err != nil {
		t.Fatalf("Link() error = %v, backfill failures must not fail the link", err)
	}
	if n != 0 {
		t.Errorf("backfilled = %d, want 0", n)
	}

	stored, _ := users.GetByID(context.Background(), "alice")
	if stored.StravaAthleteID != "2468" {
		t.Errorf("athlete id = %q, want the link to stand", stored.StravaAthleteID)
	}
}

// =========================================================================
// MANUAL SYNC AND DISCONNECT TESTS
// =========================================================================

func TestManualSync(t *testing.T) {
	users := newMockUserRepo()
	seedUser(t, users, connectedUser("alice"))

	fetcher := &mockFetcher{pages: [][]strava.Activity{{
		stravaRun(911, "Run", time.Now().AddDate(0, 0, -10)),
	}}}
	svc := newTestStrava(users, newMockActivityRepo(), &mockExchanger{}, fetcher)

	n, err := svc.Sync(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if n != 1 {
		t.Errorf("synced = %d, want 1", n)
	}
}

func TestManualSync_UserNotFound(t *testing.T) {
	svc := newTestStrava(newMockUserRepo(), newMockActivityRepo(), &mockExchanger{}, &mockFetcher{})

	if _, err := svc.Sync(context.Background(), "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDisconnect(t *testing.T) {
	users := newMockUserRepo()
	seedUser(t, users, connectedUser("alice"))

	svc := newTestStrava(users, newMockActivityRepo(), &mockExchanger{}, &mockFetcher{})
	if err := svc.Disconnect(context.Background(), "alice"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	stored, _ := users.GetByID(context.Background(), "alice")
	if stored.StravaConnected() {
		t.Error("user still connected after Disconnect")
	}
	if stored.StravaRefresh != "" || stored.StravaAccessToken != "" {
		t.Error("tokens survived Disconnect, want them cleared")
	}
}

func TestDisconnect_NotConnected(t *testing.T) {
	users := newMockUserRepo()
	member := connectedUser("alice")
	member.StravaAthleteID = ""
	seedUser(t, users, member)

	svc := newTestStrava(users, newMockActivityRepo(), &mockExchanger{}, &mockFetcher{})
	if err := svc.Disconnect(context.Background(), "alice"); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestConnectURL(t *testing.T) {
	svc := newTestStrava(newMockUserRepo(), newMockActivityRepo(), &mockExchanger{}, &mockFetcher{})
	got := svc.ConnectURL("xyz")
	if got != "https://example.com/authorize?state=xyz" {
		t.Errorf("ConnectURL() = %q", got)
	}
}
