// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. A club of a
// few hundred runners is comfortably inside SQLite territory, and ":memory:"
// databases make repository tests trivial.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// TIMESTAMP STORAGE:
// All timestamps are stored as RFC3339 text in UTC. That keeps them readable
// in the sqlite3 shell and, importantly, lets the leaderboard bucket months
// with strftime() directly on start_date_local. The zero time is stored as
// the empty string (used for "not set" — e.g. a member with no Strava link).
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. The repository interfaces are
// implemented by the typed views below (Users, Activities, ...) — method
// sets stay small and names like Create don't collide across entities.
type DB struct {
	conn *sql.DB
}

// Users returns the UserRepository view of this database.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Activities returns the ActivityRepository view of this database.
func (db *DB) Activities() *ActivityDB { return &ActivityDB{conn: db.conn} }

// Blog returns the BlogRepository view of this database.
func (db *DB) Blog() *BlogDB { return &BlogDB{conn: db.conn} }

// Races returns the RaceRepository view of this database.
func (db *DB) Races() *RaceDB { return &RaceDB{conn: db.conn} }

// UserDB persists users and their Strava credentials.
type UserDB struct {
	conn *sql.DB
}

// ActivityDB persists synced activities and answers the aggregate
// queries (totals, leaderboard) built on top of them.
type ActivityDB struct {
	conn *sql.DB
}

// BlogDB persists blog posts.
type BlogDB struct {
	conn *sql.DB
}

// RaceDB persists races.
type RaceDB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/clubhouse.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping verifies the connection actually works. Without this, a bad path
	// or permissions issue would only surface on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress — the
	// nightly sync writes activities while members browse the leaderboard.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (backwards compatibility).
	// activities.user_id references users.id, so we want them enforced.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent, so
// this is safe to run on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			email                TEXT NOT NULL UNIQUE,
			username             TEXT NOT NULL UNIQUE,
			full_name            TEXT NOT NULL DEFAULT '',
			hashed_password      TEXT NOT NULL,
			is_admin             INTEGER NOT NULL DEFAULT 0,
			is_active            INTEGER NOT NULL DEFAULT 1,
			profile_picture      TEXT NOT NULL DEFAULT '',
			bio                  TEXT NOT NULL DEFAULT '',
			created_at           TEXT NOT NULL,

			strava_athlete_id    TEXT NOT NULL DEFAULT '',
			strava_access_token  TEXT NOT NULL DEFAULT '',
			strava_refresh_token TEXT NOT NULL DEFAULT '',
			strava_expires_at    TEXT NOT NULL DEFAULT '',
			strava_connected_at  TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// One Strava athlete maps to at most one member. A partial index keeps
	// the uniqueness constraint off the empty "not connected" value.
	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_strava_athlete_id
		ON users(strava_athlete_id) WHERE strava_athlete_id != '';
	`)
	if err != nil {
		return fmt.Errorf("creating strava athlete index: %w", err)
	}

	// strava_activity_id is UNIQUE — this is what makes the sync upsert
	// idempotent and keeps concurrent first-writers from duplicating a row.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS activities (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL REFERENCES users(id),
			strava_activity_id   TEXT NOT NULL UNIQUE,
			name                 TEXT NOT NULL,
			sport_type           TEXT NOT NULL,
			distance             REAL NOT NULL,
			moving_time          INTEGER NOT NULL,
			elapsed_time         INTEGER NOT NULL,
			total_elevation_gain REAL NOT NULL DEFAULT 0,
			average_speed        REAL,
			max_speed            REAL,
			average_heartrate    REAL,
			max_heartrate        REAL,
			average_cadence      REAL,
			start_date           TEXT NOT NULL,
			start_date_local     TEXT NOT NULL,
			timezone             TEXT NOT NULL DEFAULT '',
			start_latlng         TEXT NOT NULL DEFAULT '',
			end_latlng           TEXT NOT NULL DEFAULT '',
			achievement_count    INTEGER NOT NULL DEFAULT 0,
			kudos_count          INTEGER NOT NULL DEFAULT 0,
			comment_count        INTEGER NOT NULL DEFAULT 0,
			athlete_count        INTEGER NOT NULL DEFAULT 1,
			map_summary_polyline TEXT NOT NULL DEFAULT '',
			synced_at            TEXT NOT NULL,
			created_at           TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activities_user_start
		ON activities(user_id, start_date);
		CREATE INDEX IF NOT EXISTS idx_activities_start_local
		ON activities(start_date_local);
	`)
	if err != nil {
		return fmt.Errorf("creating activities table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS blog_posts (
			id           TEXT PRIMARY KEY,
			author_id    TEXT NOT NULL REFERENCES users(id),
			title        TEXT NOT NULL,
			slug         TEXT NOT NULL UNIQUE,
			content      TEXT NOT NULL,
			excerpt      TEXT NOT NULL DEFAULT '',
			cover_image  TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			tags         TEXT NOT NULL DEFAULT '[]',
			is_published INTEGER NOT NULL DEFAULT 0,
			published_at TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_blog_posts_created_at ON blog_posts(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating blog_posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS races (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			description           TEXT NOT NULL DEFAULT '',
			location              TEXT NOT NULL,
			date                  TEXT NOT NULL,
			distance              REAL NOT NULL,
			elevation_gain        REAL NOT NULL DEFAULT 0,
			race_type             TEXT NOT NULL,
			registration_url      TEXT NOT NULL DEFAULT '',
			registration_deadline TEXT NOT NULL DEFAULT '',
			max_participants      INTEGER NOT NULL DEFAULT 0,
			is_active             INTEGER NOT NULL DEFAULT 1,
			cover_image           TEXT NOT NULL DEFAULT '',
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_races_date ON races(date);
	`)
	if err != nil {
		return fmt.Errorf("creating races table: %w", err)
	}

	return nil
}

// fmtTime formats a timestamp for storage. The zero time becomes the empty
// string, which is the schema's "not set" value.
func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime is the inverse of fmtTime. Malformed values come back as the
// zero time rather than an error: the only writer is fmtTime itself.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
