package tenantguard

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tenantguard/password"
	"github.com/MrEthical07/tenantguard/store/memstore"
	"github.com/MrEthical07/tenantguard/store/seed"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// newSilentRedis returns the address of a listener that accepts
// connections and never replies.
func newSilentRedis(t *testing.T) string {
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

// A Redis that stops answering must cost each call at most
// Cache.OperationTimeout, whatever the client's own read timeout is.
func TestSilentRedisDoesNotStallRequests(t *testing.T) {
	store := memstore.New()
	hasher, err := password.NewBcrypt(password.Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	demo, err := seed.Demo(context.Background(), store, hasher.Hash)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// default ReadTimeout (3s) and no ContextTimeoutEnabled
	rdb := redis.NewClient(&redis.Options{Addr: newSilentRedis(t)})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.Cache.OperationTimeout = 100 * time.Millisecond
	engine, err := New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithRedis(rdb).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	ctx := context.Background()

	start := time.Now()
	if _, err := engine.Login(ctx, LoginRequest{Email: "admin@demo-corp.com", Password: "AdminPassword123!", TenantSlug: "demo-corp"}); err != nil {
		t.Fatalf("login with silent redis: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Fatalf("login waited on redis: %v", elapsed)
	}

	start = time.Now()
	if _, err := engine.SetupMFA(ctx, demo.DemoUser.ID); err != nil {
		t.Fatalf("mfa setup with silent redis: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Fatalf("mfa setup waited on redis: %v", elapsed)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricMFAFallbackUsed] < 1 {
		t.Fatalf("expected enrollment to fall back to the store, got %d", snap.Counters[MetricMFAFallbackUsed])
	}
	if snap.Counters[MetricCacheFailure] < 1 {
		t.Fatalf("expected cache failures to be counted, got %d", snap.Counters[MetricCacheFailure])
	}

	user, err := store.FindUserByID(ctx, demo.DemoUser.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.TempMFASetup == nil {
		t.Fatal("expected enrollment state in the credential store")
	}
}
