package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var testPolicy = Policy{MaxFailures: 5, Window: time.Hour, Lockout: 30 * time.Minute}

func TestMemoryAllowsUnknownKey(t *testing.T) {
	m := NewMemory(testPolicy)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := m.Allow(context.Background(), "login:+40712345678", now); err != nil {
		t.Fatalf("expected unknown key to be allowed, got %v", err)
	}
}

func TestMemoryLocksAtThreshold(t *testing.T) {
	m := NewMemory(testPolicy)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := "login:+40712345678"

	for i := 0; i < 4; i++ {
		if err := m.RecordFailure(ctx, key, now); err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
		if err := m.Allow(ctx, key, now); err != nil {
			t.Fatalf("expected allowed after %d failures, got %v", i+1, err)
		}
	}

	if err := m.RecordFailure(ctx, key, now); err != nil {
		t.Fatalf("record fifth failure: %v", err)
	}
	err := m.Allow(ctx, key, now)
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError after threshold, got %v", err)
	}
	if locked.RetryAfter != 30*time.Minute {
		t.Fatalf("expected retry after 30m, got %s", locked.RetryAfter)
	}
}

func TestMemoryUnlocksAfterLockout(t *testing.T) {
	m := NewMemory(testPolicy)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := "login:+40712345678"

	for i := 0; i < 5; i++ {
		m.RecordFailure(ctx, key, now)
	}
	if err := m.Allow(ctx, key, now.Add(29*time.Minute)); err == nil {
		t.Fatalf("expected still locked at +29m")
	}
	if err := m.Allow(ctx, key, now.Add(30*time.Minute)); err != nil {
		t.Fatalf("expected unlocked at +30m, got %v", err)
	}
}

func TestMemoryFreshWindowAfterLockout(t *testing.T) {
	m := NewMemory(testPolicy)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := "login:+40712345678"

	for i := 0; i < 5; i++ {
		m.RecordFailure(ctx, key, now)
	}
	later := now.Add(31 * time.Minute)

	// A failure after the lockout has passed starts a fresh count.
	if err := m.RecordFailure(ctx, key, later); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := m.Allow(ctx, key, later); err != nil {
		t.Fatalf("expected allowed with one failure in fresh window, got %v", err)
	}
}

func TestMemorySuccessClearsEntry(t *testing.T) {
	m := NewMemory(testPolicy)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := "login:+40712345678"

	for i := 0; i < 4; i++ {
		m.RecordFailure(ctx, key, now)
	}
	if err := m.RecordSuccess(ctx, key); err != nil {
		t.Fatalf("record success: %v", err)
	}
	// Four more failures after the reset must not lock.
	for i := 0; i < 4; i++ {
		m.RecordFailure(ctx, key, now)
	}
	if err := m.Allow(ctx, key, now); err != nil {
		t.Fatalf("expected allowed after reset, got %v", err)
	}
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	m := NewMemory(testPolicy)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		m.RecordFailure(ctx, "login:+40712345678", now)
	}
	if err := m.Allow(ctx, "login:+40799999999", now); err != nil {
		t.Fatalf("expected other key to be unaffected, got %v", err)
	}
}

func TestMemoryWindowExpiryResetsCount(t *testing.T) {
	m := NewMemory(testPolicy)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := "login:+40712345678"

	for i := 0; i < 4; i++ {
		m.RecordFailure(ctx, key, now)
	}
	later := now.Add(time.Hour + time.Second)
	if err := m.RecordFailure(ctx, key, later); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	// Only one failure counts in the new window.
	if err := m.Allow(ctx, key, later); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestMemoryLazyCleanup(t *testing.T) {
	m := NewMemory(testPolicy)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := "login:+40712345678"

	m.RecordFailure(ctx, key, now)
	if err := m.Allow(ctx, key, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("allow: %v", err)
	}

	m.mu.Lock()
	_, exists := m.entries[key]
	m.mu.Unlock()
	if exists {
		t.Fatalf("expected expired entry to be dropped on inspection")
	}
}

func TestMemoryExactThresholdUnderConcurrency(t *testing.T) {
	m := NewMemory(Policy{MaxFailures: 50, Window: time.Hour, Lockout: 30 * time.Minute})
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := "login:+40712345678"

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordFailure(ctx, key, now)
		}()
	}
	wg.Wait()

	m.mu.Lock()
	e := m.entries[key]
	m.mu.Unlock()
	if e == nil {
		t.Fatalf("expected entry to exist")
	}
	if e.failures != 50 {
		t.Fatalf("expected exactly 50 recorded failures, got %d", e.failures)
	}
	if err := m.Allow(ctx, key, now); err == nil {
		t.Fatalf("expected lockout at threshold")
	}
}
