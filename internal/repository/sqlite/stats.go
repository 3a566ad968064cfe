package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/eroderunners/clubhouse/internal/repository"
)

// UserTotals aggregates one member's activities in SQL rather than loading
// rows into Go — the dashboard hits this on every load.
//
// The since bound compares start_date_local, matching how members think
// about "this week" / "this month" (wall-clock time where they ran, not
// UTC). A zero since disables the bound.
func (db *ActivityDB) UserTotals(ctx context.Context, userID string, since time.Time) (*repository.UserTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(distance), 0),
			COALESCE(SUM(moving_time), 0),
			COALESCE(SUM(total_elevation_gain), 0),
			COALESCE(MAX(distance), 0),
			COUNT(*)
		FROM activities
		WHERE user_id = ?`
	args := []any{userID}

	if !since.IsZero() {
		query += ` AND start_date_local >= ?`
		args = append(args, fmtTime(since))
	}

	var t repository.UserTotals
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&t.TotalDistance,
		&t.TotalTime,
		&t.TotalElevation,
		&t.LongestRun,
		&t.ActivityCount,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating totals for user %s: %w", userID, err)
	}
	return &t, nil
}

// MonthlyLeaderboard ranks members by total distance for one month.
//
// Months are bucketed on start_date_local with strftime — an early-morning
// run on the 1st counts for the month the member actually ran it in, not
// the UTC month. Members with no activities that month simply don't appear.
func (db *ActivityDB) MonthlyLeaderboard(ctx context.Context, year int, month time.Month) ([]repository.LeaderboardRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT u.id, u.username, u.full_name, u.profile_picture,
			SUM(a.distance) AS total_distance,
			COUNT(a.id) AS total_activities
		FROM users u
		JOIN activities a ON a.user_id = u.id
		WHERE strftime('%Y', a.start_date_local) = ?
		  AND strftime('%m', a.start_date_local) = ?
		GROUP BY u.id, u.username, u.full_name, u.profile_picture
		ORDER BY total_distance DESC`,
		fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", int(month)),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying leaderboard %d-%02d: %w", year, month, err)
	}
	defer rows.Close()

	var board []repository.LeaderboardRow
	for rows.Next() {
		var r repository.LeaderboardRow
		if err := rows.Scan(
			&r.UserID,
			&r.Username,
			&r.FullName,
			&r.ProfilePicture,
			&r.TotalDistance,
			&r.TotalActivities,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		board = append(board, r)
	}
	return board, rows.Err()
}
