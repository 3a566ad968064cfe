package sqlite

import (
	"testing"
	"time"
)

// newTestDB is a "test helper" — a function used only in tests to reduce boilerplate.
// The `t.Helper()` call tells Go's test framework to report errors at the CALLER's
// line number, not inside this function. This makes test failure output much clearer.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	// t.Cleanup registers a function to run when the test finishes.
	// This is like defer, but scoped to the test — even works in subtests.
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 3, 17, 45, 12, 123456789, time.UTC)

	got := parseTime(fmtTime(now))
	if !got.Equal(now) {
		t.Errorf("round trip = %v, want %v", got, now)
	}
}

func TestTimeZeroIsEmptyString(t *testing.T) {
	// The zero time means "not set" and must survive storage as ''.
	if s := fmtTime(time.Time{}); s != "" {
		t.Errorf("fmtTime(zero) = %q, want empty string", s)
	}
	if got := parseTime(""); !got.IsZero() {
		t.Errorf("parseTime(\"\") = %v, want zero time", got)
	}
}
