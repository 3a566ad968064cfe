package model

import "time"

// Activity is one run pulled from Strava.
//
// StravaActivityID is Strava's immutable id for the activity, stored as a
// decimal string. It is globally unique across all members (not scoped per
// user) and is the dedupe key for sync: no matter how many times a sync runs
// or how many overlapping windows re-fetch the same history, exactly one row
// exists per Strava activity id.
//
// UserID is set when the row is first created and never reassigned on later
// upserts — the first writer owns the activity permanently. Every other
// Strava-sourced field is overwritten wholesale on each re-sync, and
// SyncedAt records the last time that happened.
//
// WHY POINTERS FOR SOME METRICS?
// Strava omits heart rate / cadence / speed for activities recorded without
// the relevant sensor. A nil pointer means "Strava didn't report it", which
// is different from a genuine zero (a 0 average speed would be a parked
// run). Counts and elevation default instead: missing elevation is 0 and a
// solo run has athlete_count 1.
type Activity struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	StravaActivityID string `json:"stravaActivityId"`

	Name      string `json:"name"`
	SportType string `json:"sportType"` // "Run", "Trail Run", "Virtual Run", ...

	Distance           float64 `json:"distance"`   // meters
	MovingTime         int     `json:"movingTime"` // seconds
	ElapsedTime        int     `json:"elapsedTime"`
	TotalElevationGain float64 `json:"totalElevationGain"` // meters, 0 if unreported

	AverageSpeed     *float64 `json:"averageSpeed"` // m/s
	MaxSpeed         *float64 `json:"maxSpeed"`
	AverageHeartrate *float64 `json:"averageHeartrate"` // bpm
	MaxHeartrate     *float64 `json:"maxHeartrate"`
	AverageCadence   *float64 `json:"averageCadence"`

	StartDate      time.Time `json:"startDate"` // UTC
	StartDateLocal time.Time `json:"startDateLocal"`
	Timezone       string    `json:"timezone"`

	StartLatLng []float64 `json:"startLatlng"` // [lat, lng], nil if no GPS
	EndLatLng   []float64 `json:"endLatlng"`

	AchievementCount int `json:"achievementCount"`
	KudosCount       int `json:"kudosCount"`
	CommentCount     int `json:"commentCount"`
	AthleteCount     int `json:"athleteCount"` // 1 if unreported

	MapSummaryPolyline string `json:"mapSummaryPolyline"`

	SyncedAt  time.Time `json:"syncedAt"`
	CreatedAt time.Time `json:"createdAt"`
}
