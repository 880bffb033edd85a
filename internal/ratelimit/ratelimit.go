package ratelimit

import (
	"sync"
	"time"
)

// Config holds rate limiter configuration
type Config struct {
	Window time.Duration // sliding window length
	Limit  int           // default ceiling per identifier within the window

	// TypeLimits maps a message type to its own ceiling. When a type has an
	// entry, that ceiling replaces the default for the (identifier, type)
	// pair; it does not stack with it.
	TypeLimits map[string]int
}

// Result is the outcome of a rate-limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Stats is a read-only snapshot of an identifier's window
type Stats struct {
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a sliding-window counter keyed by identifier and, when a
// per-type ceiling is configured, by (identifier, type). Safe for
// concurrent use.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// New creates a limiter
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	return &Limiter{
		cfg:     cfg,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (l *Limiter) keyAndLimit(id, msgType string) (string, int) {
	if msgType != "" {
		if limit, ok := l.cfg.TypeLimits[msgType]; ok {
			return id + "|" + msgType, limit
		}
	}
	return id, l.cfg.Limit
}

// trim drops timestamps that fell out of the window; entries are mutated in
// place so the map slot is reused on the next request.
func trim(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Check records a request for the identifier (and optional message type) and
// reports whether it is within the ceiling. Denied requests are not recorded.
func (l *Limiter) Check(id, msgType string) Result {
	key, limit := l.keyAndLimit(id, msgType)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.cfg.Window)
	stamps := trim(l.windows[key], cutoff)

	if len(stamps) >= limit {
		oldest := stamps[0]
		l.windows[key] = stamps
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: oldest.Add(l.cfg.Window).Sub(now),
			ResetAt:    oldest.Add(l.cfg.Window),
		}
	}

	stamps = append(stamps, now)
	l.windows[key] = stamps

	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(l.cfg.Window),
	}
}

// Stats returns the current window state without recording a request
func (l *Limiter) Stats(id, msgType string) Stats {
	key, limit := l.keyAndLimit(id, msgType)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := trim(l.windows[key], now.Add(-l.cfg.Window))
	l.windows[key] = stamps

	stats := Stats{
		Count:     len(stamps),
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   now,
	}
	if stats.Remaining < 0 {
		stats.Remaining = 0
	}
	if len(stamps) > 0 {
		stats.ResetAt = stamps[0].Add(l.cfg.Window)
	}
	return stats
}

// Remove clears all windows for an identifier, including per-type ones
func (l *Limiter) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, id)
	for msgType := range l.cfg.TypeLimits {
		delete(l.windows, id+"|"+msgType)
	}
}
