// Command tenantguard-server exposes the tenantguard engine over HTTP.
//
// Configuration comes from TENANTGUARD_* environment variables (see
// config.go). Routes are available both at the root, with the tenant taken
// from the subdomain, X-Tenant-Slug header or ?tenant= query, and under
// /t/{tenantSlug}.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantguard"
	"github.com/MrEthical07/tenantguard/audit/kafkasink"
	promexport "github.com/MrEthical07/tenantguard/metrics/export/prometheus"
	"github.com/MrEthical07/tenantguard/password"
	"github.com/MrEthical07/tenantguard/store/memstore"
	"github.com/MrEthical07/tenantguard/store/seed"
	"github.com/MrEthical07/tenantguard/store/sqlstore"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	builder := tenantguard.New().
		WithConfig(cfg.engineConfig()).
		WithCredentialStore(store).
		WithOperations(operations())

	if cfg.RedisAddr != "" {
		client := redis.NewUniversalClient(cfg.redisOptions())
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("redis ping failed, continuing with durable fallback: %v", err)
		}
		builder = builder.WithRedis(client)
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := kafkasink.New(kafkasink.Config{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			ClientID: "tenantguard-server",
		})
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		defer sink.Close()
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	shutdownTelemetry, err := setupTelemetry(ctx, cfg, engine)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: newRouter(engine, promexport.NewPrometheusExporter(engine).Handler()),
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("tenantguard-server listening on %s (store=%s)", cfg.Addr, cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("serve: %v", err)
		stop()
	}
	<-stopped

	// in-flight requests are done; flush what they produced
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := engine.Shutdown(drainCtx); err != nil {
		log.Printf("audit drain: %v", err)
	}
	if err := shutdownTelemetry(drainCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}

// openStore returns the credential store named by cfg, seeded with the demo
// tenants when requested.
func openStore(ctx context.Context, cfg serverConfig) (tenantguard.CredentialStore, func(), error) {
	hasher, err := password.NewBcrypt(password.Config{Cost: cfg.BcryptCost})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Store == "memory" {
		store := memstore.New()
		if cfg.SeedDemo {
			if _, err := seed.Demo(ctx, store, hasher.Hash); err != nil {
				return nil, nil, err
			}
			log.Printf("seeded demo tenants into memory store")
		}
		return store, func() {}, nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.SeedDemo {
		res, err := store.SeedDemo(ctx, hasher.Hash)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		if res != nil {
			log.Printf("seeded demo tenants into %s store", dialect)
		}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}, nil
}
