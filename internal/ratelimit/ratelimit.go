// Package ratelimit provides sliding-window limiters that check and record an
// attempt in one step.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether an attempt identified by key is allowed at now.
// An allowed attempt is recorded; a rejected attempt records nothing.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

// Memory is a process-local sliding-window limiter. Attempts at or before
// now-window no longer count.
type Memory struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemory creates an in-process limiter allowing limit attempts per window.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		entries: make(map[string][]time.Time),
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recent := prune(m.entries[key], now.Add(-m.window))
	if len(recent) >= m.limit {
		m.entries[key] = recent
		return false, nil
	}
	m.entries[key] = append(recent, now)
	return true, nil
}

// Sweep drops keys with no attempts left in the window and returns how many
// were removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.window)
	removed := 0
	for key, times := range m.entries {
		if recent := prune(times, cutoff); len(recent) == 0 {
			delete(m.entries, key)
			removed++
		} else {
			m.entries[key] = recent
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// prune drops timestamps at or before cutoff. times is kept in order of
// insertion, which is chronological for a monotonic clock.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0:0], times[i:]...)
}

// WindowStore is a shared ledger able to check and record atomically.
type WindowStore interface {
	AllowInWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error)
}

// Shared is a limiter backed by a WindowStore, so that every process using
// the same store enforces one budget.
type Shared struct {
	store  WindowStore
	limit  int
	window time.Duration
}

// NewShared creates a limiter over store allowing limit attempts per window.
func NewShared(store WindowStore, limit int, window time.Duration) *Shared {
	return &Shared{store: store, limit: limit, window: window}
}

// Allow implements Limiter.
func (s *Shared) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	return s.store.AllowInWindow(ctx, key, s.limit, s.window, now)
}
