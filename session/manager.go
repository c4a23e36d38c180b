package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantguard/internal"
	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/MrEthical07/tenantguard/jwt"
)

// DefaultLifetime is the validity window of a session row.
const DefaultLifetime = 7 * 24 * time.Hour

// ErrInvalidSession is returned when no live row matches a refresh token.
var ErrInvalidSession = errors.New("session expired or invalid")

// TokenIssuer is the part of the token service the manager needs.
type TokenIssuer interface {
	IssuePair(userID, email, tenantID string) (jwt.Pair, error)
	ParseRefresh(token string) (*jwt.Claims, error)
}

// Config controls session row lifetime.
type Config struct {
	Lifetime time.Duration
	Now      func() time.Time
}

// Manager creates, rotates and revokes session rows.
type Manager struct {
	store  model.SessionStore
	tokens TokenIssuer
	config Config
}

// NewManager returns a Manager over store. Zero config values take defaults.
func NewManager(store model.SessionStore, tokens TokenIssuer, cfg Config) *Manager {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{store: store, tokens: tokens, config: cfg}
}

// Create persists an active session for pair.
func (m *Manager) Create(ctx context.Context, userID, tenantID string, pair jwt.Pair) (*model.Session, error) {
	now := m.config.Now()
	sess := &model.Session{
		UserID:           userID,
		TenantID:         tenantID,
		AccessTokenHash:  internal.HashToken(pair.AccessToken),
		RefreshTokenHash: internal.HashToken(pair.RefreshToken),
		ExpiresAt:        now.Add(m.config.Lifetime),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Lookup verifies refreshToken and returns the live row it belongs to along
// with its claims. Signature or expiry failures return jwt.ErrInvalidToken
// before any store access.
func (m *Manager) Lookup(ctx context.Context, refreshToken string) (*model.Session, *jwt.Claims, error) {
	claims, err := m.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, nil, err
	}

	sess, err := m.store.FindSessionByRefreshToken(ctx, internal.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, ErrInvalidSession
		}
		return nil, nil, err
	}
	if !sess.Usable(m.config.Now()) {
		return nil, nil, ErrInvalidSession
	}
	if sess.UserID != claims.UserID() || sess.TenantID != claims.TenantID {
		return nil, nil, ErrInvalidSession
	}
	return sess, claims, nil
}

// Rotate swaps sess's token digests for next's, conditioned on the row still
// holding oldRefreshToken. The loser of a concurrent rotation gets
// ErrInvalidSession.
func (m *Manager) Rotate(ctx context.Context, sess *model.Session, oldRefreshToken string, next jwt.Pair) error {
	now := m.config.Now()
	err := m.store.RotateSession(ctx, model.SessionRotation{
		SessionID:      sess.ID,
		OldRefreshHash: internal.HashToken(oldRefreshToken),
		NewAccessHash:  internal.HashToken(next.AccessToken),
		NewRefreshHash: internal.HashToken(next.RefreshToken),
		ExpiresAt:      now.Add(m.config.Lifetime),
		Now:            now,
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrInvalidSession
		}
		return err
	}
	return nil
}

// Refresh is Lookup, a fresh pair from the same claims, and Rotate.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*model.Session, jwt.Pair, error) {
	sess, claims, err := m.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, jwt.Pair{}, err
	}
	next, err := m.tokens.IssuePair(claims.UserID(), claims.Email, claims.TenantID)
	if err != nil {
		return nil, jwt.Pair{}, err
	}
	if err := m.Rotate(ctx, sess, refreshToken, next); err != nil {
		return nil, jwt.Pair{}, err
	}
	return sess, next, nil
}

// Logout deactivates the user's rows holding refreshToken. Unknown or
// already inactive sessions are not an error.
func (m *Manager) Logout(ctx context.Context, userID, refreshToken string) error {
	_, err := m.store.DeactivateSessions(ctx, userID, internal.HashToken(refreshToken))
	return err
}
