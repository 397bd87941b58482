package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LockedError reports that a key is locked out and for how long.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("locked out, retry after %s", e.RetryAfter)
}

// Policy holds the tunables for one limiter: how many failures inside Window
// trigger a lockout of Lockout.
type Policy struct {
	MaxFailures int
	Window      time.Duration
	Lockout     time.Duration
}

// Limiter tracks failed attempts per key and imposes temporary lockouts.
// Allow must be consulted before the guarded operation; RecordFailure and
// RecordSuccess report its outcome. Implementations make the threshold
// crossing exact under concurrent callers of the same key.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) error
	RecordFailure(ctx context.Context, key string, now time.Time) error
	RecordSuccess(ctx context.Context, key string) error
}

type entry struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
}

// Memory is an in-process Limiter backed by a mutex-guarded table. It is an
// explicitly constructed component, suitable for single-instance deployments;
// use Redis when multiple instances must share counters.
type Memory struct {
	policy Policy

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory builds an in-memory limiter with the given policy.
func NewMemory(policy Policy) *Memory {
	if policy.MaxFailures <= 0 {
		policy.MaxFailures = 5
	}
	return &Memory{policy: policy, entries: make(map[string]*entry)}
}

// Allow returns a LockedError while key is locked out. Expired entries
// encountered here are dropped so the table does not grow without bound.
func (m *Memory) Allow(_ context.Context, key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if now.Before(e.lockedUntil) {
		return &LockedError{RetryAfter: e.lockedUntil.Sub(now)}
	}
	if m.expired(e, now) {
		delete(m.entries, key)
	}
	return nil
}

// RecordFailure increments the failure count for key, starting a lockout
// when the threshold is reached. A failure arriving after the previous
// window or lockout has passed starts a fresh window.
func (m *Memory) RecordFailure(_ context.Context, key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e, now) {
		e = &entry{failures: 1, windowStart: now}
		m.entries[key] = e
	} else {
		if now.Before(e.lockedUntil) {
			return nil
		}
		e.failures++
	}
	if e.failures >= m.policy.MaxFailures {
		e.lockedUntil = now.Add(m.policy.Lockout)
	}
	return nil
}

// RecordSuccess clears any entry for key.
func (m *Memory) RecordSuccess(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// expired must be called with the mutex held. An entry is dead once its
// lockout has passed and its window has elapsed.
func (m *Memory) expired(e *entry, now time.Time) bool {
	if now.Before(e.lockedUntil) {
		return false
	}
	if !e.lockedUntil.IsZero() {
		return true
	}
	return m.policy.Window > 0 && !now.Before(e.windowStart.Add(m.policy.Window))
}
