// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a club member account.
//
// Members log in with email + password (bcrypt hash, never the plain text).
// The Strava* fields form the member's link to their Strava account and are
// all-or-nothing: either the member is connected (athlete id, both tokens,
// expiry and connected-at all set) or disconnected (all of them cleared).
// Nothing in between is ever persisted — linking writes all five fields in
// one statement and disconnecting clears all five in one statement.
//
// WHY StravaAthleteID string (not *string)?
// Strava athlete ids are numeric but opaque to us, so we store the decimal
// string. The empty string is the "not connected" zero value — simpler than
// a nullable pointer, same trick the rest of the model uses for optional
// text fields. The UNIQUE index on strava_athlete_id only applies to
// non-empty values (partial index), so many disconnected members coexist.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FullName       string    `json:"fullName"`
	HashedPassword string    `json:"-"` // bcrypt hash — never serialized
	IsAdmin        bool      `json:"isAdmin"`
	IsActive       bool      `json:"isActive"`
	ProfilePicture string    `json:"profilePicture"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"createdAt"`

	// Strava connection state. Tokens are secrets and stay server-side.
	StravaAthleteID   string    `json:"stravaAthleteId"`
	StravaAccessToken string    `json:"-"`
	StravaRefresh     string    `json:"-"`
	StravaExpiresAt   time.Time `json:"-"`
	StravaConnectedAt time.Time `json:"stravaConnectedAt"`
}

// StravaConnected reports whether the member has a linked Strava account.
// The athlete id is the canonical connection flag.
func (u *User) StravaConnected() bool {
	return u.StravaAthleteID != ""
}

// StravaCredential is the token tuple written when a member links Strava and
// rewritten on every refresh (Strava rotates the refresh token too).
type StravaCredential struct {
	AthleteID      string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	ProfilePicture string // athlete.profile from the token response, may be empty
}
