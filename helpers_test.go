package tenantguard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tenantguard/password"
	"github.com/MrEthical07/tenantguard/store/memstore"
	"github.com/MrEthical07/tenantguard/store/seed"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.MFA.BackupCodeCost = bcrypt.MinCost
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *memstore.Store
	demo   *seed.Result
	redis  *miniredis.Miniredis
	clock  *testClock
}

func newTestEnv(t *testing.T, cfg Config, configure ...func(*Builder)) *testEnv {
	t.Helper()

	store := memstore.New()
	hasher, err := password.NewBcrypt(password.Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	demo, err := seed.Demo(context.Background(), store, hasher.Hash)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	mr, rdb := newTestRedis(t)
	clock := newTestClock()

	b := New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithRedis(rdb).
		WithClock(clock.Now)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine: engine,
		store:  store,
		demo:   demo,
		redis:  mr,
		clock:  clock,
	}
}

func (env *testEnv) loginAdmin(t *testing.T) *AuthResponse {
	t.Helper()

	res, err := env.engine.Login(context.Background(), LoginRequest{
		Email:      "admin@demo-corp.com",
		Password:   "AdminPassword123!",
		TenantSlug: "demo-corp",
	})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return res
}
