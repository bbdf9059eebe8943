// Package ratelimit provides a per-sender sliding-window message limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows at most limit events per sender within window. The zero
// limit disables limiting.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	events map[string][]time.Time
}

// New creates a limiter.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		events: make(map[string][]time.Time),
	}
}

// Allow records an event for sender and reports whether it fits the
// window. Denied events are not recorded, so a flooding sender recovers as
// soon as their accepted events age out.
func (l *Limiter) Allow(sender string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.events[sender][:0]
	for _, ts := range l.events[sender] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.events[sender] = kept
		return false
	}
	l.events[sender] = append(kept, now)
	return true
}
