package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantguard"
)

// serverConfig is read from the environment, optionally primed from a .env
// file in the working directory.
type serverConfig struct {
	Addr            string        `env:"TENANTGUARD_ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"TENANTGUARD_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	JWTSecret  string        `env:"TENANTGUARD_JWT_SECRET,required"`
	JWTIssuer  string        `env:"TENANTGUARD_JWT_ISSUER"      envDefault:"tenantguard"`
	AccessTTL  time.Duration `env:"TENANTGUARD_ACCESS_TTL"      envDefault:"24h"`
	RefreshTTL time.Duration `env:"TENANTGUARD_REFRESH_TTL"     envDefault:"168h"`
	BcryptCost int           `env:"TENANTGUARD_BCRYPT_COST"     envDefault:"12"`

	// Store is one of memory, postgres or sqlite.
	Store       string `env:"TENANTGUARD_STORE"        envDefault:"memory"`
	DatabaseURL string `env:"TENANTGUARD_DATABASE_URL"`
	SeedDemo    bool   `env:"TENANTGUARD_SEED_DEMO"    envDefault:"false"`

	RedisAddr     string `env:"TENANTGUARD_REDIS_ADDR"`
	RedisPassword string `env:"TENANTGUARD_REDIS_PASSWORD"`
	RedisDB       int    `env:"TENANTGUARD_REDIS_DB"       envDefault:"0"`

	// CacheTimeout bounds every Redis call made on a request path.
	CacheTimeout time.Duration `env:"TENANTGUARD_CACHE_TIMEOUT" envDefault:"500ms"`

	AuditEnabled bool     `env:"TENANTGUARD_AUDIT"         envDefault:"true"`
	KafkaBrokers []string `env:"TENANTGUARD_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"TENANTGUARD_KAFKA_TOPIC"   envDefault:"tenantguard.audit"`

	// AuditTimeout bounds a single audit sink write.
	AuditTimeout time.Duration `env:"TENANTGUARD_AUDIT_TIMEOUT" envDefault:"5s"`

	MetricsEnabled bool `env:"TENANTGUARD_METRICS"           envDefault:"true"`
	LatencyMetrics bool `env:"TENANTGUARD_LATENCY_HISTOGRAM" envDefault:"true"`

	// OTel metric export is opt-in: it runs only when an endpoint is set
	// and TENANTGUARD_OTEL_ENABLED is not false.
	OTelEnabled  bool          `env:"TENANTGUARD_OTEL_ENABLED"  envDefault:"true"`
	OTelEndpoint string        `env:"TENANTGUARD_OTEL_ENDPOINT"`
	OTelInterval time.Duration `env:"TENANTGUARD_OTEL_INTERVAL" envDefault:"30s"`
}

func loadConfig() (serverConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return serverConfig{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Store {
	case "memory":
	case "postgres", "sqlite":
		if cfg.DatabaseURL == "" {
			return serverConfig{}, fmt.Errorf("TENANTGUARD_DATABASE_URL is required for store %q", cfg.Store)
		}
	default:
		return serverConfig{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}

// engineConfig maps the environment onto the engine configuration.
func (c serverConfig) engineConfig() tenantguard.Config {
	cfg := tenantguard.DefaultConfig()
	cfg.JWT.Secret = []byte(c.JWTSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Password.BcryptCost = c.BcryptCost
	cfg.Audit.Enabled = c.AuditEnabled
	if c.AuditTimeout > 0 {
		cfg.Audit.DeliveryTimeout = c.AuditTimeout
	}
	if c.CacheTimeout > 0 {
		cfg.Cache.OperationTimeout = c.CacheTimeout
	}
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.LatencyMetrics
	return cfg
}

// redisOptions enables ContextTimeoutEnabled so a command abandoned at the
// engine's cache deadline is also cancelled on its connection.
func (c serverConfig) redisOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:                 []string{c.RedisAddr},
		Password:              c.RedisPassword,
		DB:                    c.RedisDB,
		ContextTimeoutEnabled: true,
	}
}
