// Package otel configures OpenTelemetry tracing for sessionstore commands.
package otel

import (
	"context"
	"fmt"

	"github.com/louisbranch/sessionstore/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// settings is the tracing configuration read from the environment.
type settings struct {
	Enabled     bool    `env:"SESSIONSTORE_OTEL_ENABLED" envDefault:"true"`
	Endpoint    string  `env:"SESSIONSTORE_OTEL_ENDPOINT"`
	SampleRatio float64 `env:"SESSIONSTORE_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := config.ParseEnv(&s); err != nil {
		return settings{}, fmt.Errorf("otel settings: %w", err)
	}
	if s.SampleRatio < 0 || s.SampleRatio > 1 {
		return settings{}, fmt.Errorf("otel sample ratio %v must be within [0, 1]", s.SampleRatio)
	}
	return s, nil
}

// sampler honours the parent's decision and samples root spans by ratio.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: with no SESSIONSTORE_OTEL_ENDPOINT, or with
// SESSIONSTORE_OTEL_ENABLED=false, Setup returns a no-op shutdown and store
// spans go to the default no-op tracer. SESSIONSTORE_OTEL_SAMPLE_RATIO
// limits how many root spans are kept.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	s, err := loadSettings()
	if err != nil {
		return noop, err
	}
	if !s.Enabled || s.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(s.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
