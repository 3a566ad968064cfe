package strava

import "time"

// Activity is one activity record as Strava's API returns it.
//
// Metric fields Strava may omit (heartrate on a watch-less run, cadence on
// a treadmill) are pointers so "absent" survives into storage as NULL
// instead of a fake zero.
type Activity struct {
	ID        int64   `json:"id"`
	Athlete   Athlete `json:"athlete"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	SportType string  `json:"sport_type"`

	Distance           float64 `json:"distance"`             // meters
	MovingTime         int     `json:"moving_time"`          // seconds
	ElapsedTime        int     `json:"elapsed_time"`         // seconds
	TotalElevationGain float64 `json:"total_elevation_gain"` // meters

	AverageSpeed     *float64 `json:"average_speed"`     // m/s
	MaxSpeed         *float64 `json:"max_speed"`         // m/s
	AverageHeartrate *float64 `json:"average_heartrate"` // bpm
	MaxHeartrate     *float64 `json:"max_heartrate"`     // bpm
	AverageCadence   *float64 `json:"average_cadence"`   // spm

	StartDate      time.Time `json:"start_date"`
	StartDateLocal time.Time `json:"start_date_local"`
	Timezone       string    `json:"timezone"`

	StartLatLng []float64 `json:"start_latlng"`
	EndLatLng   []float64 `json:"end_latlng"`

	AchievementCount int `json:"achievement_count"`
	KudosCount       int `json:"kudos_count"`
	CommentCount     int `json:"comment_count"`
	AthleteCount     int `json:"athlete_count"`

	Map Map `json:"map"`
}

// Athlete is the minimal athlete stub embedded in activity responses.
type Athlete struct {
	ID int64 `json:"id"`
}

// Map carries the encoded polyline for an activity's route.
type Map struct {
	SummaryPolyline string `json:"summary_polyline"`
}
