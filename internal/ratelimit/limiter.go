// Package ratelimit provides per-key token bucket rate limiting for the
// correction command surface (C8): each user gets an independent bucket
// per command, so one user issuing many hide_cluster calls can't starve
// another user's analyze requests.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow checks if a request for the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		// First request for this key: start with full burst
		b = &bucket{
			tokens:    float64(l.burst),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += l.rate * elapsed
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.lastCheck = now
	}

	// Check if we have at least 1 token
	if b.tokens < 1.0 {
		return false
	}

	b.tokens--
	return true
}

// CommandLimiters maps correction command names (analyze,
// delete_observation, hide_cluster, ...) to their rate limiters. Each
// limiter's key space is the requesting user_id, not the command name,
// so limits are enforced per user.
type CommandLimiters map[string]*Limiter

// NewCommandLimiters creates the default set of per-command rate
// limiters for the Correction Coordinator's command surface.
func NewCommandLimiters() CommandLimiters {
	return CommandLimiters{
		"analyze":            NewLimiter(1.0/60.0, 2),  // 1/minute, burst 2
		"delete_observation": NewLimiter(30.0/60.0, 10), // 30/minute, burst 10
		"report_observation": NewLimiter(30.0/60.0, 10),
		"hide_cluster":       NewLimiter(30.0/60.0, 10),
		"unhide_cluster":     NewLimiter(30.0/60.0, 10),
		"pause_detection":    NewLimiter(10.0/60.0, 3),
		"resume_detection":   NewLimiter(10.0/60.0, 3),
		"delete_profile":     NewLimiter(1.0/60.0, 1), // 1/minute, burst 1
		"export":             NewLimiter(5.0/60.0, 2),
	}
}

// CheckLimit checks the rate limit for a given command and user.
// Returns nil if allowed, or an error if rate limited. Commands without
// a configured limiter are always allowed.
func CheckLimit(limiters CommandLimiters, command, userID string) error {
	limiter, ok := limiters[command]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if !limiter.Allow(userID) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", command)
	}

	return nil
}
