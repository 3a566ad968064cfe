package model

import "time"

// Race is an event on the club's race calendar.
type Race struct {
	ID string `json:"id"`

	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`

	Distance      float64 `json:"distance"` // meters
	ElevationGain float64 `json:"elevationGain"`
	RaceType      string  `json:"raceType"` // "5K", "10K", "Half Marathon", "Trail", ...

	RegistrationURL      string    `json:"registrationUrl"`
	RegistrationDeadline time.Time `json:"registrationDeadline"`
	MaxParticipants      int       `json:"maxParticipants"`

	IsActive   bool   `json:"isActive"`
	CoverImage string `json:"coverImage"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
