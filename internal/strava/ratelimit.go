package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Strava rate limits (per application, shared across all members):
// - 100 requests per 15 minutes
// - 1000 requests per day
//
// The limiter paces individual requests with a token bucket and tracks the
// two windows from the X-RateLimit-* headers Strava returns, blocking when
// a window is exhausted instead of burning requests on 429s.
type RateLimiter struct {
	pace *rate.Limiter

	mu sync.Mutex

	shortLimit    int
	shortUsage    int
	shortResetsAt time.Time

	dailyLimit    int
	dailyUsage    int
	dailyResetsAt time.Time
}

// NewRateLimiter creates a rate limiter preset with Strava's default limits.
func NewRateLimiter() *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		// ~6 req/s with a small burst — a nightly batch sync for a whole
		// club finishes fast without hammering the API.
		pace:          rate.NewLimiter(rate.Every(150*time.Millisecond), 3),
		shortLimit:    100,
		shortResetsAt: now.Add(15 * time.Minute),
		dailyLimit:    1000,
		dailyResetsAt: now.Truncate(24 * time.Hour).Add(24 * time.Hour),
	}
}

// Wait blocks until a request can be made without exceeding rate limits.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()

	// Reset windows if expired
	if now.After(r.shortResetsAt) {
		r.shortUsage = 0
		r.shortResetsAt = now.Add(15 * time.Minute)
	}
	if now.After(r.dailyResetsAt) {
		r.dailyUsage = 0
		r.dailyResetsAt = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}

	// Sleep out an exhausted window before spending a paced slot.
	var wait time.Duration
	if r.shortUsage >= r.shortLimit {
		wait = time.Until(r.shortResetsAt)
	}
	if r.dailyUsage >= r.dailyLimit {
		if d := time.Until(r.dailyResetsAt); d > wait {
			wait = d
		}
	}
	r.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := r.pace.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.shortUsage++
	r.dailyUsage++
	r.mu.Unlock()
	return nil
}

// UpdateFromHeaders corrects the tracked usage from Strava response headers.
// Strava returns: X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512".
// The headers are authoritative — other processes (or a second deploy) share
// the same application quota.
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if usage := h.Get("X-RateLimit-Usage"); usage != "" {
		if short, daily, ok := splitPair(usage); ok {
			r.shortUsage = short
			r.dailyUsage = daily
		}
	}
	if limit := h.Get("X-RateLimit-Limit"); limit != "" {
		if short, daily, ok := splitPair(limit); ok {
			r.shortLimit = short
			r.dailyLimit = daily
		}
	}
}

// Status returns the remaining requests in the 15-minute and daily windows.
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shortLimit - r.shortUsage, r.dailyLimit - r.dailyUsage
}

func splitPair(s string) (short, daily int, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	short, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	daily, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	return short, daily, err1 == nil && err2 == nil
}
