package tenantguard

import (
	"errors"
	"time"
)

// Config defines a public type used by tenantguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	MFA      MFAConfig
	Tenant   TenantConfig
	Store    StoreConfig
	Cache    CacheConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by tenantguard APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by tenantguard APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	BcryptCost     int
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig defines a public type used by tenantguard APIs.
//
// MFAConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFAConfig struct {
	Issuer           string
	Digits           int
	Period           int
	Skew             int
	SetupTTL         time.Duration
	BackupCodeCount  int
	BackupCodeLength int
	// BackupCodeCost is the bcrypt cost applied to each stored backup code.
	BackupCodeCost   int
	CacheKeyPrefix   string
}

/*
====================================
TENANT CONFIG
====================================
*/

// TenantConfig controls where the tenant resolver looks for a slug, in
// precedence order: host subdomain, Header, PathParam, QueryParam.
type TenantConfig struct {
	IgnoredSubdomains []string
	Header            string
	PathParam         string
	QueryParam        string
}

/*
====================================
STORE / CACHE CONFIG
====================================
*/

// StoreConfig bounds every credential store call.
type StoreConfig struct {
	OperationTimeout time.Duration
}

// CacheConfig bounds every fast cache call.
type CacheConfig struct {
	OperationTimeout time.Duration
	KeyPrefix        string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by tenantguard APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// AuditConfig defines a public type used by tenantguard APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// DeliveryTimeout bounds a single sink write. Zero disables the bound.
	DeliveryTimeout time.Duration
}

// MetricsConfig defines a public type used by tenantguard APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration Builder starts from. JWT.Secret is
// left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  24 * time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "tenantguard",
		},
		Password: PasswordConfig{
			BcryptCost:     12,
			MinLength:      6,
			UpgradeOnLogin: true,
		},
		MFA: MFAConfig{
			Issuer:           "TenantGuard",
			Digits:           6,
			Period:           30,
			Skew:             2,
			SetupTTL:         10 * time.Minute,
			BackupCodeCount:  10,
			BackupCodeLength: 6,
			BackupCodeCost:   10,
			CacheKeyPrefix:   "mfa_setup:",
		},
		Tenant: TenantConfig{
			IgnoredSubdomains: []string{"api", "www"},
			Header:            "X-Tenant-Slug",
			PathParam:         "tenantSlug",
			QueryParam:        "tenant",
		},
		Store: StoreConfig{
			OperationTimeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			OperationTimeout: 500 * time.Millisecond,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize:      1024,
			DropIfFull:      true,
			DeliveryTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.Tenant.IgnoredSubdomains != nil {
		out.Tenant.IgnoredSubdomains = append([]string(nil), cfg.Tenant.IgnoredSubdomains...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	if c.Password.MinLength < 1 || c.Password.MinLength > 72 {
		return errors.New("Password MinLength must be between 1 and 72")
	}

	// MFA
	if c.MFA.Issuer == "" {
		return errors.New("MFA Issuer must be set")
	}
	if c.MFA.Digits != 6 && c.MFA.Digits != 8 {
		return errors.New("MFA Digits must be 6 or 8")
	}
	if c.MFA.Period <= 0 {
		return errors.New("MFA Period must be > 0")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 10 {
		return errors.New("MFA Skew must be between 0 and 10")
	}
	if c.MFA.SetupTTL <= 0 {
		return errors.New("MFA SetupTTL must be > 0")
	}
	if c.MFA.BackupCodeCount <= 0 || c.MFA.BackupCodeCount > 32 {
		return errors.New("MFA BackupCodeCount must be between 1 and 32")
	}
	if c.MFA.BackupCodeLength < 4 || c.MFA.BackupCodeLength > 32 {
		return errors.New("MFA BackupCodeLength must be between 4 and 32")
	}
	if c.MFA.BackupCodeCost < 4 || c.MFA.BackupCodeCost > 31 {
		return errors.New("MFA BackupCodeCost must be between 4 and 31")
	}
	if c.MFA.CacheKeyPrefix == "" {
		return errors.New("MFA CacheKeyPrefix must be set")
	}

	// Store / Cache
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}
	if c.Cache.OperationTimeout <= 0 {
		return errors.New("Cache OperationTimeout must be > 0")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.DeliveryTimeout < 0 {
		return errors.New("Audit DeliveryTimeout must be >= 0")
	}

	return nil
}
