package main

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MrEthical07/tenantguard"
	otelexport "github.com/MrEthical07/tenantguard/metrics/export/otel"
)

const serviceName = "tenantguard-server"

// setupTelemetry pushes the engine's metrics to an OTLP/HTTP collector.
//
// Export is opt-in: with no endpoint, or with TENANTGUARD_OTEL_ENABLED set
// to false, it returns a no-op shutdown and registers nothing. The returned
// shutdown flushes a final collection and must be called before exit.
func setupTelemetry(ctx context.Context, cfg serverConfig, engine *tenantguard.Engine) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.OTelEnabled || cfg.OTelEndpoint == "" {
		return noop, nil
	}

	exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.OTelEndpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.OTelInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.OTelInterval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	exporter, err := otelexport.NewOTelExporter(mp.Meter("github.com/MrEthical07/tenantguard"), engine)
	if err != nil {
		return noop, errors.Join(err, mp.Shutdown(ctx))
	}
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		// the provider's final collection still sees the callback
		err := mp.Shutdown(ctx)
		return errors.Join(err, exporter.Close())
	}, nil
}
