package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tenantguard/jwt"
	"github.com/MrEthical07/tenantguard/store/memstore"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTestManager(t *testing.T) (*Manager, *jwt.Manager, *memstore.Store, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Now()}
	tokens, err := jwt.NewManager(jwt.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:  24 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	store := memstore.New()
	return NewManager(store, tokens, Config{Now: clock.Now}), tokens, store, clock
}

func issueSession(t *testing.T, m *Manager, tokens *jwt.Manager, userID, tenantID string) jwt.Pair {
	t.Helper()

	pair, err := tokens.IssuePair(userID, userID+"@example.com", tenantID)
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	if _, err := m.Create(context.Background(), userID, tenantID, pair); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return pair
}

func TestCreateStoresDigestsNotTokens(t *testing.T) {
	m, tokens, store, clock := newTestManager(t)
	pair := issueSession(t, m, tokens, "u1", "t1")

	rows := store.Sessions("u1")
	if len(rows) != 1 {
		t.Fatalf("expected one session row, got %d", len(rows))
	}
	row := rows[0]
	if row.RefreshTokenHash == pair.RefreshToken || row.AccessTokenHash == pair.AccessToken {
		t.Fatal("expected token digests, found raw tokens")
	}
	if !row.IsActive {
		t.Fatal("expected new session to be active")
	}
	if want := clock.Now().Add(DefaultLifetime); !row.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, row.ExpiresAt)
	}
}

func TestRefreshRotatesRow(t *testing.T) {
	m, tokens, store, _ := newTestManager(t)
	pair := issueSession(t, m, tokens, "u1", "t1")

	_, next, err := m.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if len(store.Sessions("u1")) != 1 {
		t.Fatal("expected rotation in place, not a new row")
	}

	if _, _, err := m.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected old token to be rejected with ErrInvalidSession, got %v", err)
	}
	if _, _, err := m.Refresh(context.Background(), next.RefreshToken); err != nil {
		t.Fatalf("expected rotated token to refresh, got %v", err)
	}
}

func TestRefreshRejectsBadSignatureBeforeStore(t *testing.T) {
	m, _, store, _ := newTestManager(t)
	store.InjectError(errors.New("must not be reached"))

	_, _, err := m.Refresh(context.Background(), "not-a-token")
	if !errors.Is(err, jwt.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	m, tokens, _, _ := newTestManager(t)
	pair := issueSession(t, m, tokens, "u1", "t1")

	if _, _, err := m.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, jwt.ErrInvalidToken) {
		t.Fatalf("expected access token to be refused, got %v", err)
	}
}

func TestRefreshRejectsExpiredRow(t *testing.T) {
	m, tokens, _, clock := newTestManager(t)
	pair, err := tokens.IssuePair("u1", "u1@example.com", "t1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	short := NewManager(m.store, tokens, Config{Lifetime: time.Hour, Now: clock.Now})
	if _, err := short.Create(context.Background(), "u1", "t1", pair); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, _, err := short.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected expired row to be rejected, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	m, tokens, store, _ := newTestManager(t)
	pair := issueSession(t, m, tokens, "u1", "t1")

	for i := 0; i < 2; i++ {
		if err := m.Logout(context.Background(), "u1", pair.RefreshToken); err != nil {
			t.Fatalf("Logout #%d failed: %v", i+1, err)
		}
	}
	if err := m.Logout(context.Background(), "u1", "never-issued"); err != nil {
		t.Fatalf("expected unknown token logout to succeed, got %v", err)
	}

	if store.Sessions("u1")[0].IsActive {
		t.Fatal("expected session to be inactive")
	}
	if _, _, err := m.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected revoked session to refuse refresh, got %v", err)
	}
}

func TestLogoutIgnoresOtherUsersSession(t *testing.T) {
	m, tokens, store, _ := newTestManager(t)
	pair := issueSession(t, m, tokens, "u1", "t1")

	if err := m.Logout(context.Background(), "u2", pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if !store.Sessions("u1")[0].IsActive {
		t.Fatal("expected session of another user to stay active")
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	m, tokens, _, _ := newTestManager(t)
	pair := issueSession(t, m, tokens, "u1", "t1")

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		invalid int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := m.Refresh(context.Background(), pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidSession):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 || invalid != workers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d invalid=%d", wins, invalid)
	}
}
