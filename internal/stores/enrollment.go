package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/tenantguard/internal/model"
)

var (
	ErrEnrollmentNotFound = errors.New("mfa enrollment not found")
	ErrEnrollmentExpired  = errors.New("mfa enrollment expired")
)

// EnrollmentStore holds pending MFA material per user.
type EnrollmentStore interface {
	Put(ctx context.Context, userID string, state *model.MFAEnrollmentState, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*model.MFAEnrollmentState, error)
	Delete(ctx context.Context, userID string) error
}

// CacheEnrollmentStore keeps enrollment state as JSON in the fast cache and
// relies on the cache TTL for expiry.
type CacheEnrollmentStore struct {
	cache  model.Cache
	prefix string
}

func NewCacheEnrollmentStore(cache model.Cache, prefix string) *CacheEnrollmentStore {
	if prefix == "" {
		prefix = "mfa_setup:"
	}
	return &CacheEnrollmentStore{
		cache:  cache,
		prefix: prefix,
	}
}

func (s *CacheEnrollmentStore) Key(userID string) string {
	return s.prefix + userID
}

func (s *CacheEnrollmentStore) Put(ctx context.Context, userID string, state *model.MFAEnrollmentState, ttl time.Duration) error {
	if state == nil {
		return errors.New("nil enrollment state")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.Key(userID), data, ttl)
}

func (s *CacheEnrollmentStore) Get(ctx context.Context, userID string) (*model.MFAEnrollmentState, error) {
	data, err := s.cache.Get(ctx, s.Key(userID))
	if err != nil {
		if errors.Is(err, model.ErrCacheMiss) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	var state model.MFAEnrollmentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode enrollment state: %w", err)
	}
	return &state, nil
}

func (s *CacheEnrollmentStore) Delete(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, s.Key(userID))
}

// DurableEnrollmentStore embeds enrollment state in the user record. The
// record has no native TTL, so Put stamps an explicit expiry and Get clears
// state found past it.
type DurableEnrollmentStore struct {
	users model.UserStore
	now   func() time.Time
}

func NewDurableEnrollmentStore(users model.UserStore, now func() time.Time) *DurableEnrollmentStore {
	if now == nil {
		now = time.Now
	}
	return &DurableEnrollmentStore{
		users: users,
		now:   now,
	}
}

func (s *DurableEnrollmentStore) Put(ctx context.Context, userID string, state *model.MFAEnrollmentState, ttl time.Duration) error {
	if state == nil {
		return errors.New("nil enrollment state")
	}
	stamped := *state
	stamped.ExpiresAt = s.now().Add(ttl)
	return s.users.SetMFASetup(ctx, userID, &stamped)
}

func (s *DurableEnrollmentStore) Get(ctx context.Context, userID string) (*model.MFAEnrollmentState, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	if user.TempMFASetup == nil {
		return nil, ErrEnrollmentNotFound
	}
	if user.TempMFASetup.Expired(s.now()) {
		if err := s.users.ClearMFASetup(ctx, userID); err != nil {
			log.Printf("tenantguard: clearing expired mfa setup for user %s failed: %v", userID, err)
		}
		return nil, ErrEnrollmentExpired
	}
	return user.TempMFASetup, nil
}

func (s *DurableEnrollmentStore) Delete(ctx context.Context, userID string) error {
	return s.users.ClearMFASetup(ctx, userID)
}

// FailoverEnrollmentStore reads and writes the primary store first and uses
// the fallback when the primary fails. A nil primary means fallback only.
type FailoverEnrollmentStore struct {
	primary  EnrollmentStore
	fallback EnrollmentStore
	// OnFallback is invoked each time a primary failure is absorbed.
	OnFallback func(op string, err error)
}

func NewFailoverEnrollmentStore(primary, fallback EnrollmentStore) *FailoverEnrollmentStore {
	return &FailoverEnrollmentStore{
		primary:  primary,
		fallback: fallback,
	}
}

func (s *FailoverEnrollmentStore) fellBack(op string, err error) {
	log.Printf("tenantguard: mfa enrollment cache %s failed, using durable fallback: %v", op, err)
	if s.OnFallback != nil {
		s.OnFallback(op, err)
	}
}

func (s *FailoverEnrollmentStore) Put(ctx context.Context, userID string, state *model.MFAEnrollmentState, ttl time.Duration) error {
	if s.primary != nil {
		err := s.primary.Put(ctx, userID, state, ttl)
		if err == nil {
			return nil
		}
		s.fellBack("write", err)
	}
	return s.fallback.Put(ctx, userID, state, ttl)
}

func (s *FailoverEnrollmentStore) Get(ctx context.Context, userID string) (*model.MFAEnrollmentState, error) {
	if s.primary != nil {
		state, err := s.primary.Get(ctx, userID)
		switch {
		case err == nil:
			return state, nil
		case errors.Is(err, ErrEnrollmentNotFound):
		default:
			s.fellBack("read", err)
		}
	}
	return s.fallback.Get(ctx, userID)
}

// Delete clears the fallback copy and best-effort deletes the cached copy;
// only fallback failures are returned.
func (s *FailoverEnrollmentStore) Delete(ctx context.Context, userID string) error {
	if s.primary != nil {
		if err := s.primary.Delete(ctx, userID); err != nil {
			log.Printf("tenantguard: mfa enrollment cache delete failed for user %s, ttl will reap it: %v", userID, err)
		}
	}
	return s.fallback.Delete(ctx, userID)
}

// DeleteCached best-effort deletes only the cached copy.
func (s *FailoverEnrollmentStore) DeleteCached(ctx context.Context, userID string) {
	if s.primary == nil {
		return
	}
	if err := s.primary.Delete(ctx, userID); err != nil {
		log.Printf("tenantguard: mfa enrollment cache delete failed for user %s, ttl will reap it: %v", userID, err)
	}
}

var (
	_ EnrollmentStore = (*CacheEnrollmentStore)(nil)
	_ EnrollmentStore = (*DurableEnrollmentStore)(nil)
	_ EnrollmentStore = (*FailoverEnrollmentStore)(nil)
)
