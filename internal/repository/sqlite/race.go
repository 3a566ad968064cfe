package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// compile-time check that *RaceDB implements repository.RaceRepository
var _ repository.RaceRepository = (*RaceDB)(nil)

const raceColumns = `id, name, description, location, date, distance, elevation_gain,
	race_type, registration_url, registration_deadline, max_participants,
	is_active, cover_image, created_at, updated_at`

// Create inserts a new race.
func (db *RaceDB) Create(ctx context.Context, race *model.Race) error {
	now := time.Now().UTC()
	race.ID = xid.New().String()
	race.CreatedAt = now
	race.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO races (`+raceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		race.ID, race.Name, race.Description, race.Location, fmtTime(race.Date),
		race.Distance, race.ElevationGain, race.RaceType,
		race.RegistrationURL, fmtTime(race.RegistrationDeadline), race.MaxParticipants,
		race.IsActive, race.CoverImage, fmtTime(race.CreatedAt), fmtTime(race.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting race: %w", err)
	}
	return nil
}

// GetByID returns the race with the given id.
func (db *RaceDB) GetByID(ctx context.Context, id string) (*model.Race, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+raceColumns+` FROM races WHERE id = ?`, id)

	race, err := scanRace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("race", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying race: %w", err)
	}
	return race, nil
}

// List returns active races ordered by date ascending. With upcomingOnly
// set, races dated before now are excluded. Limit 0 means no limit.
func (db *RaceDB) List(ctx context.Context, upcomingOnly bool, limit int) ([]model.Race, error) {
	query := `SELECT ` + raceColumns + ` FROM races WHERE is_active = 1`
	args := []any{}
	if upcomingOnly {
		query += ` AND date >= ?`
		args = append(args, fmtTime(time.Now().UTC()))
	}
	query += ` ORDER BY date ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing races: %w", err)
	}
	defer rows.Close()

	var races []model.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning race: %w", err)
		}
		races = append(races, *race)
	}
	return races, rows.Err()
}

// Update rewrites every mutable column of the race.
func (db *RaceDB) Update(ctx context.Context, race *model.Race) error {
	race.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE races SET
			name = ?, description = ?, location = ?, date = ?,
			distance = ?, elevation_gain = ?, race_type = ?,
			registration_url = ?, registration_deadline = ?, max_participants = ?,
			is_active = ?, cover_image = ?, updated_at = ?
		WHERE id = ?`,
		race.Name, race.Description, race.Location, fmtTime(race.Date),
		race.Distance, race.ElevationGain, race.RaceType,
		race.RegistrationURL, fmtTime(race.RegistrationDeadline), race.MaxParticipants,
		race.IsActive, race.CoverImage, fmtTime(race.UpdatedAt),
		race.ID,
	)
	if err != nil {
		return fmt.Errorf("updating race: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("race", race.ID)
	}
	return nil
}

// Delete removes a race.
func (db *RaceDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM races WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting race: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("race", id)
	}
	return nil
}

func scanRace(s scanner) (*model.Race, error) {
	var (
		race                 model.Race
		date, deadline       string
		createdAt, updatedAt string
	)
	err := s.Scan(
		&race.ID, &race.Name, &race.Description, &race.Location, &date,
		&race.Distance, &race.ElevationGain, &race.RaceType,
		&race.RegistrationURL, &deadline, &race.MaxParticipants,
		&race.IsActive, &race.CoverImage, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	race.Date = parseTime(date)
	race.RegistrationDeadline = parseTime(deadline)
	race.CreatedAt = parseTime(createdAt)
	race.UpdatedAt = parseTime(updatedAt)
	return &race, nil
}
