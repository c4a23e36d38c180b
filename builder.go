package tenantguard

import (
	"errors"
	"fmt"
	"log"
	"time"

	internalaudit "github.com/MrEthical07/tenantguard/internal/audit"
	"github.com/MrEthical07/tenantguard/internal/rate"
	"github.com/MrEthical07/tenantguard/internal/stores"
	"github.com/MrEthical07/tenantguard/jwt"
	"github.com/MrEthical07/tenantguard/password"
	"github.com/MrEthical07/tenantguard/permission"
	"github.com/MrEthical07/tenantguard/session"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by tenantguard APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	store  CredentialStore
	redis  redis.UniversalClient
	cache  Cache

	auditSink  AuditSink
	operations *permission.Table
	now        func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the durable store. It is required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithRedis enables the Redis fast cache for MFA enrollment and the login
// throttle. Without it enrollment state lives only in the credential store
// and logins are not throttled.
//
// Every Redis call made by the engine returns after Cache.OperationTimeout
// even if the server stops answering. Build the client with
// ContextTimeoutEnabled so the abandoned command is also cancelled on the
// connection rather than waiting out the client's ReadTimeout.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache overrides the fast cache used for MFA enrollment. It takes
// precedence over the cache derived from [Builder.WithRedis].
func (b *Builder) WithCache(cache Cache) *Builder {
	b.cache = cache
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink receives events in addition to the credential store audit log.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithOperations installs the operation table used by
// [Engine.AuthorizeOperation]. The table is frozen by Build.
func (b *Builder) WithOperations(table *permission.Table) *Builder {
	b.operations = table
	return b
}

// WithClock replaces time.Now for every time-dependent component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build returns an error when the configuration is invalid or no credential store was supplied.
// A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	store := stores.NewTimeoutStore(b.store, cfg.Store.OperationTimeout)

	cache := b.cache
	if cache == nil && b.redis != nil {
		cache = stores.NewRedisCache(b.redis, cfg.Cache.KeyPrefix)
	}
	if cache != nil {
		cache = stores.NewTimeoutCache(cache, cfg.Cache.OperationTimeout)
	}

	hasher, err := password.NewBcrypt(password.Config{Cost: cfg.Password.BcryptCost})
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	backupHasher, err := password.NewBcrypt(password.Config{Cost: cfg.MFA.BackupCodeCost})
	if err != nil {
		return nil, fmt.Errorf("backup code hasher: %w", err)
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	operations := b.operations
	if operations == nil {
		operations = permission.NewTable()
	}
	operations.Freeze()

	e := &Engine{
		config:     cfg,
		store:      store,
		cache:      cache,
		metrics:    NewMetrics(cfg.Metrics),
		hasher:     hasher,
		backupHash: backupHasher,
		jwtManager: jwtManager,
		sessions: session.NewManager(store, jwtManager, session.Config{
			Lifetime: cfg.JWT.RefreshTTL,
			Now:      now,
		}),
		totp:       newTOTPManager(cfg.MFA, now),
		operations: operations,
		now:        now,
	}

	var primary stores.EnrollmentStore
	if cache != nil {
		primary = stores.NewCacheEnrollmentStore(cache, cfg.MFA.CacheKeyPrefix)
	}
	enrollment := stores.NewFailoverEnrollmentStore(primary, stores.NewDurableEnrollmentStore(store, now))
	enrollment.OnFallback = func(string, error) {
		e.metricInc(MetricCacheFailure)
		e.metricInc(MetricMFAFallbackUsed)
	}
	e.enrollment = enrollment

	if b.redis != nil && cfg.Security.EnableLoginThrottle {
		e.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
			Timeout:               cfg.Cache.OperationTimeout,
		})
	}

	if cfg.Audit.Enabled {
		var sink AuditSink = internalaudit.NewStoreSink(b.store, cfg.Store.OperationTimeout)
		if b.auditSink != nil {
			sink = internalaudit.MultiSink{sink, b.auditSink}
		}
		e.audit = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:         true,
			BufferSize:      cfg.Audit.BufferSize,
			DropIfFull:      cfg.Audit.DropIfFull,
			DeliveryTimeout: cfg.Audit.DeliveryTimeout,
		}, sink)
	}

	e.initFlows()

	b.built = true
	log.Printf("tenantguard: engine ready (cache=%t throttle=%t audit=%t)", cache != nil, e.rateLimiter != nil, e.audit != nil)
	return e, nil
}
