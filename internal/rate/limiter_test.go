package rate

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, New(rdb, cfg)
}

func TestLoginBudgetExhaustsAndResets(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "t1", "a@b.c", ""); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "t1", "a@b.c", ""); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "t1", "A@B.C", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "t2", "a@b.c", ""); err != nil {
		t.Fatalf("other tenant must have its own budget: %v", err)
	}

	if err := l.ResetLogin(ctx, "t1", "a@b.c"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "t1", "a@b.c"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "t1", "a@b.c", "")
	if err := l.CheckLogin(ctx, "t1", "a@b.c", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	mr.FastForward(61 * time.Second)
	if err := l.CheckLogin(ctx, "t1", "a@b.c", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestIPThrottle(t *testing.T) {
	_, l := newTestLimiter(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "t1", "a@b.c", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "t1", "d@e.f", "10.0.0.1")
	if err := l.CheckLogin(ctx, "t1", "new@x.y", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ip limited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "t1", "new@x.y", "10.0.0.2"); err != nil {
		t.Fatalf("other ip should pass: %v", err)
	}
}

func TestBackendFailureSurfaced(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	mr.SetError("ERR limiter offline")
	if err := l.CheckLogin(context.Background(), "t1", "a@b.c", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

// silentRedis accepts connections and never answers, like a Redis server
// wedged behind a full network buffer.
func silentRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestLimiterBoundsCallsAgainstSilentServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: silentRedis(t), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	l := New(rdb, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
		Timeout:               50 * time.Millisecond,
	})
	ctx := context.Background()

	start := time.Now()
	if err := l.CheckLogin(ctx, "t1", "a@b.c", "10.0.0.1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("CheckLogin: expected ErrRedisUnavailable, got %v", err)
	}
	if err := l.IncrementLogin(ctx, "t1", "a@b.c", "10.0.0.1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("IncrementLogin: expected ErrRedisUnavailable, got %v", err)
	}
	if err := l.ResetLogin(ctx, "t1", "a@b.c"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("ResetLogin: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := l.LoginAttempts(ctx, "t1", "a@b.c"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("LoginAttempts: expected ErrRedisUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("limiter calls waited on the server: %v", elapsed)
	}
}
