package middleware

import (
	"log/slog"
	"sync"
	"time"
)

// RateLimiter enforces a per-device sliding-window cap on uplink frames,
// the caller-side policy spec §6 names against the Ack `RateLimited`
// error code. Expired windows are garbage-collected periodically.
type RateLimiter struct {
	mu       sync.RWMutex
	windows  map[string]*rateLimitWindow
	defaults RateLimitConfig
}

// RateLimitConfig defines the rate limiting thresholds.
type RateLimitConfig struct {
	MaxCallsPerMinute int // default max uplinks per minute per device
	BurstSize         int // temporary burst allowance above the limit
}

type rateLimitWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter with the given defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxCallsPerMinute == 0 {
		cfg.MaxCallsPerMinute = 60
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = cfg.MaxCallsPerMinute * 2
	}

	rl := &RateLimiter{
		windows:  make(map[string]*rateLimitWindow),
		defaults: cfg,
	}
	go rl.cleanup()
	return rl
}

// Allow checks whether an uplink from the given device serial should be
// accepted. Only acquires the write lock when a window must be created or
// has expired; existing-window checks use a read lock.
func (rl *RateLimiter) Allow(serial string) bool {
	now := time.Now()

	rl.mu.RLock()
	window, exists := rl.windows[serial]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		count := window.count
		rl.mu.RUnlock()

		if count > rl.defaults.BurstSize {
			slog.Warn("rate limit exceeded (burst)", "serial", serial, "count", count, "limit", rl.defaults.BurstSize)
			return false
		}
		if count > rl.defaults.MaxCallsPerMinute {
			slog.Warn("rate limit exceeded", "serial", serial, "count", count, "limit", rl.defaults.MaxCallsPerMinute)
			return false
		}
		return true
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window, exists = rl.windows[serial]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		return window.count <= rl.defaults.BurstSize
	}

	rl.windows[serial] = &rateLimitWindow{count: 1, windowStart: now}
	return true
}

// cleanup periodically removes expired windows to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, window := range rl.windows {
			if now.Sub(window.windowStart) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Stats returns current rate limiter statistics, exposed on the gateway's
// diagnostic endpoint.
func (rl *RateLimiter) Stats() map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return map[string]interface{}{
		"active_windows":    len(rl.windows),
		"max_calls_per_min": rl.defaults.MaxCallsPerMinute,
		"burst_size":        rl.defaults.BurstSize,
	}
}
