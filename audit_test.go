package tenantguard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

func collectEvents(sink *ChannelSink, max int, wait time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, max)
	timeout := time.After(wait)
	for len(events) < max {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })

	_, _ = env.engine.Login(WithClientIP(context.Background(), "203.0.113.1"), LoginRequest{
		Email:      "admin@demo-corp.com",
		Password:   "wrong-password",
		TenantSlug: "demo-corp",
	})
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
	if len(env.store.AuditLogs()) != 0 {
		t.Fatal("expected no audit rows when disabled")
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	cfg.Audit.DropIfFull = false

	sink := NewChannelSink(16)
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"), "curl/8.5")
	res, err := env.engine.Login(ctx, LoginRequest{
		Email:      "admin@demo-corp.com",
		Password:   "AdminPassword123!",
		TenantSlug: "demo-corp",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	events := collectEvents(sink, 1, 2*time.Second)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != AuditUserLogin || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.UserID != env.demo.AdminUser.ID || ev.TenantID != env.demo.DemoTenant.ID || ev.SessionID != res.SessionID {
		t.Fatalf("unexpected identity fields %+v", ev)
	}
	if ev.IP != "203.0.113.7" || ev.UserAgent != "curl/8.5" {
		t.Fatalf("expected request metadata, got ip=%q ua=%q", ev.IP, ev.UserAgent)
	}
	if !ev.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("expected engine clock timestamp, got %v", ev.Timestamp)
	}
	if ev.Metadata["loginMethod"] != "native" {
		t.Fatalf("expected loginMethod metadata, got %v", ev.Metadata)
	}

	env.engine.Close()

	var found bool
	for _, row := range env.store.AuditLogs() {
		if row.Action == AuditUserLogin && row.UserID == env.demo.AdminUser.ID && row.IPAddress == "203.0.113.7" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected login to be persisted to the audit log")
	}
}

func TestAuditFailureCarriesKind(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	sink := NewChannelSink(16)
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })

	_, _ = env.engine.Login(context.Background(), LoginRequest{
		Email:      "admin@demo-corp.com",
		Password:   "wrong-password",
		TenantSlug: "demo-corp",
	})

	events := collectEvents(sink, 1, 2*time.Second)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].EventType != AuditLoginFailed || events[0].Success {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if events[0].Error != "unauthorized" {
		t.Fatalf("expected error kind, got %q", events[0].Error)
	}
	if events[0].Metadata["reason"] != "password_mismatch" {
		t.Fatalf("expected reason metadata, got %v", events[0].Metadata)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false

	var buf syncBuffer
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithAuditSink(NewJSONWriterSink(&buf)) })
	ctx := context.Background()

	sensitivePassword := "AdminPassword123!"
	login, err := env.engine.Login(ctx, LoginRequest{Email: "admin@demo-corp.com", Password: sensitivePassword, TenantSlug: "demo-corp"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	refreshed, err := env.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	setup, err := env.engine.SetupMFA(ctx, env.demo.AdminUser.ID)
	if err != nil {
		t.Fatalf("setup mfa: %v", err)
	}
	if err := env.engine.Logout(ctx, env.demo.AdminUser.ID, refreshed.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	env.engine.Close()

	if !buf.Contains(AuditTokenRefreshed) || !buf.Contains(AuditUserLogout) {
		t.Fatal("expected refresh and logout events")
	}

	needles := []string{
		sensitivePassword,
		login.RefreshToken,
		login.AccessToken,
		refreshed.RefreshToken,
		setup.Secret,
		env.demo.AdminUser.PasswordHash,
	}
	needles = append(needles, setup.BackupCodes...)
	for _, needle := range needles {
		if needle != "" && buf.Contains(needle) {
			t.Fatalf("sensitive value leaked in audit stream: %q", needle)
		}
	}
}

func TestAuditDroppedReported(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	gate := make(chan struct{})
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithAuditSink(blockingSink(gate)) })

	for i := 0; i < 5; i++ {
		_, _ = env.engine.Login(context.Background(), LoginRequest{Email: "admin@demo-corp.com", Password: "x", TenantSlug: "demo-corp"})
	}
	if env.engine.AuditDropped() == 0 {
		t.Fatal("expected dropped audit events while the sink is stalled")
	}
	close(gate)
}

type blockingSink chan struct{}

func (s blockingSink) Emit(context.Context, AuditEvent) {
	<-s
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}

type deadlineSink struct {
	remaining chan time.Duration
}

func (s *deadlineSink) Emit(ctx context.Context, _ AuditEvent) {
	var left time.Duration
	if dl, ok := ctx.Deadline(); ok {
		left = time.Until(dl)
	}
	select {
	case s.remaining <- left:
	default:
	}
}

func TestAuditDeliveryTimeoutReachesSink(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DeliveryTimeout = 250 * time.Millisecond

	sink := &deadlineSink{remaining: make(chan time.Duration, 4)}
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })
	env.loginAdmin(t)

	select {
	case left := <-sink.remaining:
		if left <= 0 || left > 250*time.Millisecond {
			t.Fatalf("expected a delivery deadline within 250ms, got %v", left)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audit event never delivered")
	}
}

type gatedSink struct {
	gate chan struct{}
}

func (s *gatedSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestEngineShutdownGivesUpOnStuckSink(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	sink := &gatedSink{gate: make(chan struct{})}
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })
	defer close(sink.gate)
	env.loginAdmin(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := env.engine.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Shutdown ignored its deadline: %v", elapsed)
	}
}
