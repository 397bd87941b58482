package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T, policy Policy) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, policy), mr
}

func TestRedisLocksAtThreshold(t *testing.T) {
	r, _ := newTestRedis(t, testPolicy)
	ctx := context.Background()
	now := time.Now()
	key := "login:+40712345678"

	for i := 0; i < 4; i++ {
		if err := r.RecordFailure(ctx, key, now); err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
		if err := r.Allow(ctx, key, now); err != nil {
			t.Fatalf("expected allowed after %d failures, got %v", i+1, err)
		}
	}

	if err := r.RecordFailure(ctx, key, now); err != nil {
		t.Fatalf("record fifth failure: %v", err)
	}
	err := r.Allow(ctx, key, now)
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.RetryAfter <= 0 || locked.RetryAfter > 30*time.Minute {
		t.Fatalf("unexpected retry-after %s", locked.RetryAfter)
	}
}

func TestRedisUnlocksAfterLockout(t *testing.T) {
	r, mr := newTestRedis(t, testPolicy)
	ctx := context.Background()
	now := time.Now()
	key := "login:+40712345678"

	for i := 0; i < 5; i++ {
		r.RecordFailure(ctx, key, now)
	}
	if err := r.Allow(ctx, key, now); err == nil {
		t.Fatalf("expected locked")
	}

	mr.FastForward(31 * time.Minute)
	if err := r.Allow(ctx, key, now); err != nil {
		t.Fatalf("expected unlocked after lockout, got %v", err)
	}
}

func TestRedisSuccessClearsCounter(t *testing.T) {
	r, _ := newTestRedis(t, testPolicy)
	ctx := context.Background()
	now := time.Now()
	key := "login:+40712345678"

	for i := 0; i < 4; i++ {
		r.RecordFailure(ctx, key, now)
	}
	if err := r.RecordSuccess(ctx, key); err != nil {
		t.Fatalf("record success: %v", err)
	}
	for i := 0; i < 4; i++ {
		r.RecordFailure(ctx, key, now)
	}
	if err := r.Allow(ctx, key, now); err != nil {
		t.Fatalf("expected allowed after reset, got %v", err)
	}
}

func TestRedisWindowExpiryResetsCounter(t *testing.T) {
	r, mr := newTestRedis(t, testPolicy)
	ctx := context.Background()
	now := time.Now()
	key := "login:+40712345678"

	for i := 0; i < 4; i++ {
		r.RecordFailure(ctx, key, now)
	}
	mr.FastForward(61 * time.Minute)

	r.RecordFailure(ctx, key, now)
	if err := r.Allow(ctx, key, now); err != nil {
		t.Fatalf("expected allowed in fresh window, got %v", err)
	}
}

func TestRedisFailsOpenWhenUnavailable(t *testing.T) {
	r, mr := newTestRedis(t, testPolicy)
	ctx := context.Background()
	mr.Close()

	if err := r.Allow(ctx, "login:+40712345678", time.Now()); err != nil {
		t.Fatalf("expected fail-open allow, got %v", err)
	}
}
