// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects repositories, services,
// handlers and middleware. Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go reads config and passes it here. New() then assembles the chain:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// This is the "composition root" pattern — all dependencies are wired in
// one place rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/handler"
	"github.com/eroderunners/clubhouse/internal/middleware"
	sqliteRepo "github.com/eroderunners/clubhouse/internal/repository/sqlite"
	"github.com/eroderunners/clubhouse/internal/service"
	"github.com/eroderunners/clubhouse/internal/strava"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port   int
	DBPath string

	JWTSecret string

	StravaClientID     string
	StravaClientSecret string
	StravaRedirectURL  string

	// Default admin, seeded at startup if the email doesn't exist yet.
	AdminEmail    string
	AdminUsername string
	AdminPassword string

	// Nightly sync schedule, in SyncTimezone's wall clock.
	SyncHour     int
	SyncMinute   int
	SyncTimezone *time.Location
}

// Server owns the router, the database and the nightly sync scheduler.
// Start runs until a shutdown signal, then tears the three down in order:
// HTTP first (stop taking requests), scheduler second (stop background
// writes), database last.
type Server struct {
	router    *chi.Mux
	config    Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	scheduler *service.Scheduler
}

// New creates a Server with all dependencies wired.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// setup assembles services, routes and the scheduler.
//
// MIDDLEWARE ORDER MATTERS: RequestID first so the logger can include it,
// Recoverer before the logger so a panicked request still gets a log line
// with its status 500.
func (s *Server) setup() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}
	passwords := auth.NewPasswordService()

	// === STRAVA CLIENTS ===
	oauth := strava.NewOAuth(s.config.StravaClientID, s.config.StravaClientSecret, s.config.StravaRedirectURL)
	apiClient := strava.NewClient()

	// === SERVICES ===
	authService := service.NewAuthService(s.db.Users(), passwords, tokens, s.logger)
	syncService := service.NewSyncService(s.db.Users(), s.db.Activities(), oauth, apiClient, s.logger)
	stravaService := service.NewStravaService(s.db.Users(), oauth, syncService, s.logger)
	activityService := service.NewActivityService(s.db.Activities(), s.logger)
	statsService := service.NewStatsService(s.db.Activities(), s.db.Races(), s.logger)
	blogService := service.NewBlogService(s.db.Blog(), s.logger)
	raceService := service.NewRaceService(s.db.Races(), s.logger)

	// === NIGHTLY SYNC ===
	batch := service.NewBatchSync(s.db.Users(), syncService, s.logger)
	s.scheduler = service.NewScheduler(batch, s.config.SyncHour, s.config.SyncMinute, s.config.SyncTimezone, s.logger)

	// === HANDLERS ===
	authHandler := handler.NewAuthHandler(authService, s.logger)
	adminHandler := handler.NewAdminHandler(authService, s.logger)
	stravaHandler := handler.NewStravaHandler(stravaService, s.logger)
	activityHandler := handler.NewActivityHandler(activityService, s.logger)
	statsHandler := handler.NewStatsHandler(statsService, s.logger)
	blogHandler := handler.NewBlogHandler(blogService, s.logger)
	raceHandler := handler.NewRaceHandler(raceService, s.logger)

	// === GLOBAL MIDDLEWARE ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public routes.
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/blog", blogHandler.HandleList)
		r.Get("/blog/{slug}", blogHandler.HandleGetBySlug)
		r.Get("/races", raceHandler.HandleList)
		r.Get("/races/{id}", raceHandler.HandleGet)

		// Member routes.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/auth/me", authHandler.HandleMe)

			r.Get("/strava/connect", stravaHandler.HandleConnect)
			r.Post("/strava/link", stravaHandler.HandleLink)
			r.Post("/strava/sync", stravaHandler.HandleSync)
			r.Delete("/strava/disconnect", stravaHandler.HandleDisconnect)

			r.Get("/activities", activityHandler.HandleList)
			r.Get("/activities/recent", activityHandler.HandleRecent)

			r.Get("/statistics", statsHandler.HandleStatistics)
			r.Get("/statistics/monthly", statsHandler.HandleMonthlyStatistics)
			r.Get("/statistics/weekly", statsHandler.HandleWeeklyStatistics)
			r.Get("/leaderboard", statsHandler.HandleLeaderboard)
			r.Get("/dashboard", statsHandler.HandleDashboard)

			// Admin routes.
			r.Group(func(r chi.Router) {
				r.Use(adminHandler.RequireAdmin)

				r.Get("/admin/users", adminHandler.HandleListUsers)
				r.Post("/admin/users", adminHandler.HandleCreateUser)
				r.Delete("/admin/users/{id}", adminHandler.HandleDeleteUser)

				r.Post("/blog", blogHandler.HandleCreate)
				r.Put("/blog/{id}", blogHandler.HandleUpdate)
				r.Delete("/blog/{id}", blogHandler.HandleDelete)

				r.Post("/races", raceHandler.HandleCreate)
				r.Put("/races/{id}", raceHandler.HandleUpdate)
				r.Delete("/races/{id}", raceHandler.HandleDelete)
			})
		})
	})

	// Seed the default admin so a fresh deployment is immediately usable.
	if s.config.AdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := authService.EnsureAdmin(ctx, s.config.AdminEmail, s.config.AdminUsername, s.config.AdminPassword); err != nil {
			return fmt.Errorf("seeding admin account: %w", err)
		}
	}

	return nil
}

// Start runs the server and blocks until shutdown.
//
// GRACEFUL SHUTDOWN ORDER:
//  1. Stop accepting new HTTP connections, drain in-flight requests (30s)
//  2. Stop the scheduler — cancels an in-flight nightly sync if one is
//     running; the sync's upsert semantics make the interruption harmless
//  3. Close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	s.scheduler.Start()
	defer s.scheduler.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
