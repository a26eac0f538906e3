package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginLimiterBlocksAfterBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "Alice@Example.com", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("increment %d: unexpected %v", i, err)
		}
	}

	if err := l.CheckLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	n, err := l.LoginAttempts(ctx, "ALICE@example.com")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 attempts, got %d (%v)", n, err)
	}
}

func TestLoginLimiterResetAndWindow(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "bob", "10.0.0.1")
	if err := l.CheckLogin(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "carol", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle to apply, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckLogin(ctx, "bob", "10.0.0.1"); err != nil {
		t.Fatalf("expected window to lapse, got %v", err)
	}

	_ = l.IncrementLogin(ctx, "bob", "10.0.0.1")
	if err := l.ResetLogin(ctx, "bob", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", "10.0.0.1"); err != nil {
		t.Fatalf("expected reset counters, got %v", err)
	}
}

func TestRefreshLimiter(t *testing.T) {
	l, _ := newTestLimiter(t, Config{EnableRefreshThrottle: true, MaxRefreshAttempts: 2, RefreshCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "u1"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckRefresh(ctx, "u2"); err != nil {
		t.Fatalf("other users unaffected, got %v", err)
	}
}

func TestLimiterRedisUnavailable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	l := New(rdb, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "x", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
