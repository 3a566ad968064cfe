package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// compile-time check that *ActivityDB implements repository.ActivityRepository
var _ repository.ActivityRepository = (*ActivityDB)(nil)

const activityColumns = `id, user_id, strava_activity_id, name, sport_type,
	distance, moving_time, elapsed_time, total_elevation_gain,
	average_speed, max_speed, average_heartrate, max_heartrate, average_cadence,
	start_date, start_date_local, timezone, start_latlng, end_latlng,
	achievement_count, kudos_count, comment_count, athlete_count,
	map_summary_polyline, synced_at, created_at`

// Upsert creates-or-updates an activity keyed on its Strava id.
//
// A single INSERT ... ON CONFLICT DO UPDATE rides on the UNIQUE index on
// strava_activity_id, so two overlapping syncs racing on the same activity
// serialize inside SQLite — one inserts, the other updates; never two rows.
//
// The conflict branch deliberately leaves id, user_id and created_at alone:
// whoever first wrote the activity owns it permanently, even if a later raw
// record nominally belongs to someone else. Everything Strava-sourced is
// overwritten wholesale and synced_at is bumped.
//
// After the statement the canonical row is read back into the argument, so
// callers always see the stored identity (existing internal id and owner on
// an update, the fresh ones on an insert).
func (db *ActivityDB) Upsert(ctx context.Context, a *model.Activity) error {
	now := time.Now().UTC()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO activities (
			id, user_id, strava_activity_id, name, sport_type,
			distance, moving_time, elapsed_time, total_elevation_gain,
			average_speed, max_speed, average_heartrate, max_heartrate, average_cadence,
			start_date, start_date_local, timezone, start_latlng, end_latlng,
			achievement_count, kudos_count, comment_count, athlete_count,
			map_summary_polyline, synced_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(strava_activity_id) DO UPDATE SET
			name = excluded.name,
			sport_type = excluded.sport_type,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			average_speed = excluded.average_speed,
			max_speed = excluded.max_speed,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			average_cadence = excluded.average_cadence,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			timezone = excluded.timezone,
			start_latlng = excluded.start_latlng,
			end_latlng = excluded.end_latlng,
			achievement_count = excluded.achievement_count,
			kudos_count = excluded.kudos_count,
			comment_count = excluded.comment_count,
			athlete_count = excluded.athlete_count,
			map_summary_polyline = excluded.map_summary_polyline,
			synced_at = excluded.synced_at
	`,
		xid.New().String(), a.UserID, a.StravaActivityID, a.Name, a.SportType,
		a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.AverageSpeed, a.MaxSpeed, a.AverageHeartrate, a.MaxHeartrate, a.AverageCadence,
		fmtTime(a.StartDate), fmtTime(a.StartDateLocal), a.Timezone,
		marshalLatLng(a.StartLatLng), marshalLatLng(a.EndLatLng),
		a.AchievementCount, a.KudosCount, a.CommentCount, a.AthleteCount,
		a.MapSummaryPolyline, fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting activity %s: %w", a.StravaActivityID, err)
	}

	// Read back the canonical row — on update the existing id/user_id win.
	stored, err := db.GetByStravaID(ctx, a.StravaActivityID)
	if err != nil {
		return fmt.Errorf("sqlite: reloading activity %s: %w", a.StravaActivityID, err)
	}
	*a = *stored
	return nil
}

// GetByStravaID retrieves an activity by Strava's id for it.
func (db *ActivityDB) GetByStravaID(ctx context.Context, stravaActivityID string) (*model.Activity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE strava_activity_id = ?`,
		stravaActivityID,
	)

	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("activity", stravaActivityID)
		}
		return nil, fmt.Errorf("sqlite: getting activity %s: %w", stravaActivityID, err)
	}
	return a, nil
}

// ListByUser returns a member's activities, newest start first.
func (db *ActivityDB) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Activity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE user_id = ?
		 ORDER BY start_date DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activities for user %s: %w", userID, err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

// CountByUser returns how many activities a member has.
func (db *ActivityDB) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activities WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting activities for user %s: %w", userID, err)
	}
	return count, nil
}

func scanActivity(s scanner) (*model.Activity, error) {
	var (
		a                      model.Activity
		startDate, startLocal  string
		startLatLng, endLatLng string
		syncedAt, createdAt    string
	)
	err := s.Scan(
		&a.ID,
		&a.UserID,
		&a.StravaActivityID,
		&a.Name,
		&a.SportType,
		&a.Distance,
		&a.MovingTime,
		&a.ElapsedTime,
		&a.TotalElevationGain,
		&a.AverageSpeed,
		&a.MaxSpeed,
		&a.AverageHeartrate,
		&a.MaxHeartrate,
		&a.AverageCadence,
		&startDate,
		&startLocal,
		&a.Timezone,
		&startLatLng,
		&endLatLng,
		&a.AchievementCount,
		&a.KudosCount,
		&a.CommentCount,
		&a.AthleteCount,
		&a.MapSummaryPolyline,
		&syncedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	a.StartDate = parseTime(startDate)
	a.StartDateLocal = parseTime(startLocal)
	a.StartLatLng = unmarshalLatLng(startLatLng)
	a.EndLatLng = unmarshalLatLng(endLatLng)
	a.SyncedAt = parseTime(syncedAt)
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// marshalLatLng stores a [lat, lng] pair as JSON text; nil becomes ''.
func marshalLatLng(ll []float64) string {
	if len(ll) == 0 {
		return ""
	}
	b, err := json.Marshal(ll)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalLatLng(s string) []float64 {
	if s == "" {
		return nil
	}
	var ll []float64
	if err := json.Unmarshal([]byte(s), &ll); err != nil {
		return nil
	}
	return ll
}
