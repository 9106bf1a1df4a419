package ratelimit

import (
	"sync"
	"time"
)

// Limiter suppresses repeated log lines for the same key within a
// window. It is safe for concurrent use.
type Limiter struct {
	last   map[string]time.Time
	window time.Duration
	mu     sync.Mutex
}

// New creates a Limiter that allows one event per key every window.
func New(window time.Duration) *Limiter {
	return &Limiter{
		last:   make(map[string]time.Time),
		window: window,
	}
}

// Allow reports whether an event for key should be logged now,
// recording the event's timestamp if so. Subsequent calls for the
// same key within the window return false.
func (l *Limiter) Allow(key string) bool {
	return l.AllowAt(key, time.Now())
}

// AllowAt is Allow with an explicit "now", for deterministic tests.
func (l *Limiter) AllowAt(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.last[key]; ok && now.Sub(prev) < l.window {
		return false
	}
	l.last[key] = now
	return true
}

// Reset clears the recorded timestamp for key, so the next Allow call
// for it succeeds regardless of the window.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, key)
}
