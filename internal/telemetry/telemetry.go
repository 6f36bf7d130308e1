// Package telemetry wires the OpenTelemetry metrics pipeline.
//
// Telemetry is disabled by default: Init installs a no-op meter provider,
// so components create their instruments unconditionally at zero cost.
// When enabled, metrics export either to stdout (dev mode) or to an
// OTLP/HTTP endpoint.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"unshub/internal/config"
)

const instrumentationScope = "unshub"

// ShutdownFunc flushes pending metrics and releases the exporter.
type ShutdownFunc func(context.Context) error

// Init configures the global meter provider from cfg and returns the
// shutdown function to defer. With telemetry disabled it installs a no-op
// provider and the shutdown is free.
func Init(ctx context.Context, cfg config.TelemetryConfig, version string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("unshub"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	reader, err := buildReader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

func buildReader(ctx context.Context, cfg config.TelemetryConfig) (sdkmetric.Reader, error) {
	switch cfg.Exporter {
	case "otlp":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("telemetry: otlp exporter requires an endpoint")
		}
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)), nil
	case "", "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)), nil
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q (supported: stdout, otlp)", cfg.Exporter)
	}
}

// Meter returns a meter with the given instrumentation name (or the broker's
// global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}
