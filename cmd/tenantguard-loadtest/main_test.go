package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/tenantguard"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 0); got != 1 {
		t.Fatalf("p0 = %v", got)
	}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestPhasesAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	engine, err := newEngine(ctx, client, bcrypt.MinCost, 4)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	t.Cleanup(engine.Close)

	states := make([]userState, 4)
	for i := range states {
		states[i].email = "load-" + string(rune('a'+i)) + "@demo-corp.com"
		res, err := engine.Register(ctx, tenantguard.RegisterRequest{
			Email:      states[i].email,
			Password:   loadPassword,
			TenantSlug: loadTenant,
		})
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		states[i].refresh = res.RefreshToken
	}

	login := runLoginPhase(ctx, engine, states, 20, 4)
	if login.ops != 20 || login.failures != 0 {
		t.Fatalf("login phase = %+v", login)
	}
	refresh := runRefreshPhase(ctx, engine, states, 20, 4)
	if refresh.ops != 20 || refresh.failures != 0 {
		t.Fatalf("refresh phase = %+v", refresh)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[tenantguard.MetricRefreshSuccess] != 20 {
		t.Fatalf("refresh counter = %d", snap.Counters[tenantguard.MetricRefreshSuccess])
	}
}

func TestNewEngineRejectsOversizedRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })

	if _, err := newEngine(context.Background(), client, bcrypt.MinCost, 5000); err == nil {
		t.Fatal("expected user limit error")
	}
}
