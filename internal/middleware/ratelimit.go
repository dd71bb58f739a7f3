// Package middleware provides Fiber middleware for the event boundary.
package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"

	"watchnext-suggestion-service/internal/config"
)

const cleanupInterval = 5 * time.Minute

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// UserRateLimiter throttles conversation events per user. Limiters for
// users idle longer than the cleanup interval are dropped by a background
// goroutine so the registry stays bounded.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
	stopCh   chan struct{}
}

// NewUserRateLimiter creates a new UserRateLimiter and starts its cleanup
// loop.
func NewUserRateLimiter(cfg config.RateLimitConfig) *UserRateLimiter {
	rl := &UserRateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Limit(float64(cfg.EventsPerMinute) / 60.0),
		burst:    cfg.Burst,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop terminates the cleanup goroutine.
func (rl *UserRateLimiter) Stop() {
	close(rl.stopCh)
}

// Handler returns the Fiber middleware. It keys on the :id route parameter;
// requests without one pass through untouched.
func (rl *UserRateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		userID := c.Params("id")
		if userID == "" {
			return c.Next()
		}

		if !rl.allow(userID) {
			slog.Warn("rate limit exceeded", "user_id", userID)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many events, slow down",
			})
		}
		return c.Next()
	}
}

func (rl *UserRateLimiter) allow(userID string) bool {
	rl.mu.Lock()
	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[userID] = ul
	}
	ul.lastAccess = time.Now()
	rl.mu.Unlock()

	return ul.limiter.Allow()
}

func (rl *UserRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cleanupInterval)
			rl.mu.Lock()
			for id, ul := range rl.limiters {
				if ul.lastAccess.Before(cutoff) {
					delete(rl.limiters, id)
				}
			}
			rl.mu.Unlock()
		}
	}
}
