package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds per-client request limits. A zero limit is disabled.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// maxTrackedClients bounds the usage table; idle entries are pruned past it.
const maxTrackedClients = 10000

// RateLimiter enforces fixed-window request limits and daily quotas per
// client key (the client IP in the HTTP middleware).
type RateLimiter struct {
	mu      sync.Mutex
	config  RateLimitConfig
	clients map[string]*clientUsage
	now     func() time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	BytesToday         int64
}

type clientUsage struct {
	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
	lastSeen    time.Time
	usage       Usage
}

// NewRateLimiter creates a limiter for config.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  config,
		clients: make(map[string]*clientUsage),
		now:     time.Now,
	}
}

// Allow records a request of dataSize bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cu := rl.clients[client]
	if cu == nil {
		if len(rl.clients) >= maxTrackedClients {
			rl.prune(now)
		}
		cu = &clientUsage{minuteStart: now, hourStart: now, dayStart: startOfDay(now)}
		rl.clients[client] = cu
	}
	cu.roll(now)

	if err := rl.check(cu, dataSize, now); err != nil {
		return err
	}

	cu.usage.RequestsLastMinute++
	cu.usage.RequestsLastHour++
	cu.usage.RequestsToday++
	cu.usage.BytesToday += dataSize
	cu.lastSeen = now
	return nil
}

func (rl *RateLimiter) check(cu *clientUsage, dataSize int64, now time.Time) error {
	c := rl.config
	if c.RequestsPerMinute > 0 && cu.usage.RequestsLastMinute >= c.RequestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: c.RequestsPerMinute, RetryAfter: cu.minuteStart.Add(time.Minute).Sub(now)}
	}
	if c.RequestsPerHour > 0 && cu.usage.RequestsLastHour >= c.RequestsPerHour {
		return &RateLimitError{Type: "hour", Limit: c.RequestsPerHour, RetryAfter: cu.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := cu.dayStart.AddDate(0, 0, 1)
	if c.MaxRequestsPerDay > 0 && cu.usage.RequestsToday >= c.MaxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(c.MaxRequestsPerDay), Used: int64(cu.usage.RequestsToday), Resets: resets}
	}
	if c.MaxDataPerDay > 0 && cu.usage.BytesToday+dataSize > c.MaxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: c.MaxDataPerDay, Used: cu.usage.BytesToday, Resets: resets}
	}
	return nil
}

// roll starts new windows whose period has elapsed.
func (cu *clientUsage) roll(now time.Time) {
	if now.Sub(cu.minuteStart) >= time.Minute {
		cu.minuteStart = now
		cu.usage.RequestsLastMinute = 0
	}
	if now.Sub(cu.hourStart) >= time.Hour {
		cu.hourStart = now
		cu.usage.RequestsLastHour = 0
	}
	if day := startOfDay(now); day.After(cu.dayStart) {
		cu.dayStart = day
		cu.usage.RequestsToday = 0
		cu.usage.BytesToday = 0
	}
}

func (rl *RateLimiter) prune(now time.Time) {
	for k, cu := range rl.clients {
		if now.Sub(cu.lastSeen) >= 24*time.Hour {
			delete(rl.clients, k)
		}
	}
}

// Usage returns the current counters for client.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cu, ok := rl.clients[client]; ok {
		return cu.usage
	}
	return Usage{}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
