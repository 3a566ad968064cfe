package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// UserSyncer is the slice of SyncService the batch needs.
type UserSyncer interface {
	SyncUser(ctx context.Context, user *model.User, daysBack int) (int, error)
}

// BatchSync syncs every connected member, one at a time.
//
// Sequential on purpose: the nightly run has all night, the club is a few
// dozen members, and Strava's rate limit is shared across the whole
// application — parallelism would only burn the quota faster.
type BatchSync struct {
	users  repository.UserRepository
	syncer UserSyncer
	logger *slog.Logger
}

// NewBatchSync creates a BatchSync.
func NewBatchSync(users repository.UserRepository, syncer UserSyncer, logger *slog.Logger) *BatchSync {
	return &BatchSync{users: users, syncer: syncer, logger: logger}
}

// Run syncs all active, Strava-connected members over the batch window.
//
// One member's failure never blocks the rest: the error is logged with the
// member id and the loop moves on. Run itself only fails if the member
// listing can't be loaded or the context is cancelled mid-batch.
func (b *BatchSync) Run(ctx context.Context) error {
	users, err := b.users.ListStravaConnected(ctx)
	if err != nil {
		return err
	}

	b.logger.Info("batch sync starting", slog.Int("users", len(users)))
	start := time.Now()

	var synced, failed int
	for i := range users {
		if err := ctx.Err(); err != nil {
			return err
		}

		user := &users[i]
		n, err := b.syncer.SyncUser(ctx, user, BatchSyncDays)
		if err != nil {
			failed++
			b.logger.Error("batch sync: user failed",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		synced += n
	}

	b.logger.Info("batch sync finished",
		slog.Int("users", len(users)),
		slog.Int("failed", failed),
		slog.Int("activities", synced),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// Scheduler fires a BatchSync run once a day at a fixed local time.
type Scheduler struct {
	batch  *BatchSync
	hour   int
	minute int
	loc    *time.Location
	logger *slog.Logger

	stop chan struct{}
	done sync.WaitGroup
}

// NewScheduler creates a Scheduler that runs batch at hour:minute in loc
// every day. It doesn't start until Start is called.
func NewScheduler(batch *BatchSync, hour, minute int, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		batch:  batch,
		hour:   hour,
		minute: minute,
		loc:    loc,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Start launches the scheduling loop in a goroutine.
func (s *Scheduler) Start() {
	s.done.Add(1)
	go s.loop()
	s.logger.Info("sync scheduler started",
		slog.Int("hour", s.hour),
		slog.Int("minute", s.minute),
		slog.String("timezone", s.loc.String()),
	)
}

// Stop halts the loop and waits for an in-flight run to notice.
// Safe to call once; used during graceful shutdown.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.done.Wait()
}

func (s *Scheduler) loop() {
	defer s.done.Done()

	for {
		wait := time.Until(s.nextRun(time.Now()))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.stop:
			timer.Stop()
			return
		}

		// Cancel the run too if Stop is called while it's syncing.
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-s.stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		if err := s.batch.Run(ctx); err != nil {
			s.logger.Error("scheduled batch sync failed", slog.String("error", err.Error()))
		}
		cancel()
	}
}

// nextRun returns the next hour:minute occurrence strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
