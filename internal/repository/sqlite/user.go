package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, username, full_name, hashed_password, is_admin, is_active,
	profile_picture, bio, created_at,
	strava_athlete_id, strava_access_token, strava_refresh_token,
	strava_expires_at, strava_connected_at`

// Create inserts a new member. Email and username are UNIQUE; a duplicate
// surfaces as apperror.ErrConflict so the service layer can return 400/409
// without knowing SQLite's error strings.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, username, full_name, hashed_password,
			is_admin, is_active, profile_picture, bio, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Username,
		user.FullName,
		user.HashedPassword,
		user.IsAdmin,
		user.IsActive,
		user.ProfilePicture,
		user.Bio,
		fmtTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a member by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetByEmail retrieves a member by email (the login identifier).
func (db *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

// GetByUsername retrieves a member by username.
func (db *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `WHERE username = ?`, username)
}

func (db *UserDB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users `+where, arg)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user (%v): %w", arg, err)
	}
	return u, nil
}

// List returns every member, newest first.
func (db *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Delete removes a member. Their activities are owned rows and go with them.
func (db *UserDB) Delete(ctx context.Context, id string) error {
	// Activities reference users(id); delete them first so the foreign key
	// constraint doesn't reject the user delete.
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM activities WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting activities for user %s: %w", id, err)
	}

	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// LinkStrava stores the full credential tuple from the authorization-code
// exchange and stamps connected-at. All five columns are written in one
// statement — the connection state is never partially persisted.
func (db *UserDB) LinkStrava(ctx context.Context, userID string, cred model.StravaCredential) error {
	query := `UPDATE users SET
			strava_athlete_id = ?,
			strava_access_token = ?,
			strava_refresh_token = ?,
			strava_expires_at = ?,
			strava_connected_at = ?`
	args := []any{
		cred.AthleteID,
		cred.AccessToken,
		cred.RefreshToken,
		fmtTime(cred.ExpiresAt),
		fmtTime(time.Now().UTC()),
	}
	if cred.ProfilePicture != "" {
		query += `, profile_picture = ?`
		args = append(args, cred.ProfilePicture)
	}
	query += ` WHERE id = ?`
	args = append(args, userID)

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			// Another member already linked this athlete.
			return apperror.Conflict("strava athlete", cred.AthleteID)
		}
		return fmt.Errorf("sqlite: linking strava for user %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// UpdateStravaTokens persists a refreshed token pair. The three credential
// fields are rewritten together; a failed refresh never reaches this method,
// so the stored credential is either the old tuple or the new one.
func (db *UserDB) UpdateStravaTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			strava_access_token = ?,
			strava_refresh_token = ?,
			strava_expires_at = ?
		 WHERE id = ?`,
		accessToken, refreshToken, fmtTime(expiresAt), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating strava tokens for user %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// DisconnectStrava clears the whole connection state in one statement.
func (db *UserDB) DisconnectStrava(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			strava_athlete_id = '',
			strava_access_token = '',
			strava_refresh_token = '',
			strava_expires_at = '',
			strava_connected_at = ''
		 WHERE id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: disconnecting strava for user %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// ListStravaConnected returns active members with a linked Strava account,
// in creation order so the nightly sync walks them deterministically.
func (db *UserDB) ListStravaConnected(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE strava_athlete_id != '' AND is_active = 1
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing strava-connected users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// scanner abstracts *sql.Row and *sql.Rows so one scan function serves both.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u                                 model.User
		createdAt, expiresAt, connectedAt string
	)
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.HashedPassword,
		&u.IsAdmin,
		&u.IsActive,
		&u.ProfilePicture,
		&u.Bio,
		&createdAt,
		&u.StravaAthleteID,
		&u.StravaAccessToken,
		&u.StravaRefresh,
		&expiresAt,
		&connectedAt,
	)
	if err != nil {
		return nil, err
	}

	u.CreatedAt = parseTime(createdAt)
	u.StravaExpiresAt = parseTime(expiresAt)
	u.StravaConnectedAt = parseTime(connectedAt)
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]model.User, error) {
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
// modernc.org/sqlite doesn't export typed errors for this, so we match the
// canonical message ("UNIQUE constraint failed: users.email").
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
