package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SetupConfig configures OTLP trace export for a running process.
type SetupConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint (host:port).
	Endpoint string
	// ServiceName identifies this process in exported traces. Defaults to
	// "pkgaudit".
	ServiceName string
	// Insecure disables TLS for the exporter connection.
	Insecure bool
}

// Setup installs a global tracer provider that exports spans over OTLP/HTTP.
// The returned shutdown function flushes and stops the provider.
func Setup(ctx context.Context, cfg SetupConfig) (func(context.Context) error, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("otel: collector endpoint is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pkgaudit"
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel: create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
