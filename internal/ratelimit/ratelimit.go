// Package ratelimit implements fixed-window request admission control keyed
// by an opaque identifier (typically the request origin).
//
// The limiter is in-memory and single-process: it does not coordinate across
// multiple server instances.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of an admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type record struct {
	count         int
	windowResetAt time.Time
}

// Limiter is a fixed-window counter per identifier.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record

	maxRequests int
	window      time.Duration

	shutdown chan struct{}
	once     sync.Once
}

// New creates a Limiter allowing maxRequests per window per identifier.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		records:     make(map[string]*record),
		maxRequests: maxRequests,
		window:      window,
		shutdown:    make(chan struct{}),
	}
}

// Check admits or rejects a request for the given identifier. The first
// request for an identifier, or the first after window expiry, resets the
// counter to 1. A rejected request does not consume window budget.
func (l *Limiter) Check(identifier string) Result {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok || !now.Before(rec.windowResetAt) {
		rec = &record{count: 1, windowResetAt: now.Add(l.window)}
		l.records[identifier] = rec
		return Result{Allowed: true, Remaining: l.maxRequests - 1, ResetAt: rec.windowResetAt}
	}

	if rec.count >= l.maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetAt: rec.windowResetAt}
	}

	rec.count++
	return Result{Allowed: true, Remaining: l.maxRequests - rec.count, ResetAt: rec.windowResetAt}
}

// StartSweep periodically removes records whose window has expired, bounding
// memory to identifiers active within the last window.
func (l *Limiter) StartSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep(time.Now())
			case <-l.shutdown:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.shutdown) })
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, rec := range l.records {
		if !now.Before(rec.windowResetAt) {
			delete(l.records, id)
		}
	}
}

// Size returns the number of tracked identifiers.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
