package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantguard/internal"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	// Timeout bounds each public call, covering every Redis round trip it
	// makes. Zero leaves calls bounded only by the caller's context.
	Timeout time.Duration
}

// Limiter enforces per-identifier and per-IP budgets for failed logins
// using Redis counters. Identifiers are scoped by tenant.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func loginUserKey(tenantID, email string) string {
	return "tg:rl:login:" + tenantID + ":" + strings.ToLower(email)
}

func loginIPKey(ip string) string {
	return "tg:rl:ip:" + ip
}

// CheckLogin returns ErrRateLimited when the identifier or IP already spent
// its failure budget.
func (l *Limiter) CheckLogin(ctx context.Context, tenantID, email, ip string) error {
	return l.bounded(ctx, func(ctx context.Context) error {
		return l.checkLogin(ctx, tenantID, email, ip)
	})
}

func (l *Limiter) checkLogin(ctx context.Context, tenantID, email, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(tenantID, email)); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login attempt.
func (l *Limiter) IncrementLogin(ctx context.Context, tenantID, email, ip string) error {
	return l.bounded(ctx, func(ctx context.Context) error {
		return l.incrementLogin(ctx, tenantID, email, ip)
	})
}

func (l *Limiter) incrementLogin(ctx context.Context, tenantID, email, ip string) error {
	if _, err := l.incrementWithTTL(ctx, loginUserKey(tenantID, email), l.config.LoginCooldownDuration); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldownDuration); err != nil {
			return err
		}
	}

	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left to expire.
func (l *Limiter) ResetLogin(ctx context.Context, tenantID, email string) error {
	return l.bounded(ctx, func(ctx context.Context) error {
		if err := l.redis.Del(ctx, loginUserKey(tenantID, email)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	})
}

// LoginAttempts returns the current failure count for an identifier.
func (l *Limiter) LoginAttempts(ctx context.Context, tenantID, email string) (int, error) {
	var count int64
	err := l.bounded(ctx, func(ctx context.Context) error {
		n, err := l.redis.Get(ctx, loginUserKey(tenantID, email)).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		count = n
		return nil
	})
	if err != nil || count < 0 {
		return 0, err
	}
	return int(count), nil
}

// bounded runs fn under the configured timeout. A deadline surfaces as
// ErrRedisUnavailable so callers treat a hung server like a dead one.
func (l *Limiter) bounded(ctx context.Context, fn func(context.Context) error) error {
	err := internal.Bounded(ctx, l.config.Timeout, fn)
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRedisUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
