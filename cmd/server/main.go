// Package main is the entry point for the club server.
//
// main's job is deliberately small:
// 1. Read configuration from environment variables
// 2. Create the logger
// 3. Hand both to internal/server and block until shutdown
//
// All actual logic lives in the internal packages — this keeps the app
// testable and main boring, which is how main should be.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/eroderunners/clubhouse/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Make sure the database directory exists before sqlite tries to
	// create the file inside it.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("creating database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads the server configuration from environment variables.
//
// Required: JWT_SECRET, STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET.
// Everything else has a sensible default for local development.
func loadConfig() (server.Config, error) {
	cfg := server.Config{
		Port:   envInt("PORT", 8080),
		DBPath: envString("DB_PATH", "data/clubhouse.db"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StravaClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		StravaRedirectURL:  envString("STRAVA_REDIRECT_URL", "http://localhost:8080/strava/callback"),

		AdminEmail:    envString("ADMIN_EMAIL", "admin@eroderunners.in"),
		AdminUsername: envString("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		// The nightly sync runs after the evening runs are uploaded.
		SyncHour:   envInt("SYNC_HOUR", 23),
		SyncMinute: envInt("SYNC_MINUTE", 0),
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required (try: openssl rand -hex 32)")
	}
	if cfg.StravaClientID == "" || cfg.StravaClientSecret == "" {
		return cfg, fmt.Errorf("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET are required")
	}
	if cfg.AdminPassword == "" {
		// No password means no seeding — fine once the admin exists.
		cfg.AdminEmail = ""
	}

	tz := envString("SYNC_TIMEZONE", "Asia/Kolkata")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return cfg, fmt.Errorf("invalid SYNC_TIMEZONE %q: %w", tz, err)
	}
	cfg.SyncTimezone = loc

	return cfg, nil
}

func envString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
