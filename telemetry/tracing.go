// Package telemetry configures OpenTelemetry tracing and the Prometheus metrics
// written at the end of a pipeline run.
package telemetry

import (
	"context"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
)

// TracingConfig selects the OTLP exporter. Standard OTEL_* variables still apply
// to endpoints and headers.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol string `yaml:"protocol"`
	// Sampler follows OTEL_TRACES_SAMPLER names.
	Sampler    string  `yaml:"sampler"`
	SamplerArg float64 `yaml:"sampler_arg"`
}

// DefaultTracingConfig disables tracing.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: "nycprice", Protocol: "grpc", Sampler: "parentbased_always_on", SamplerArg: 1}
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

func setPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}

// InitTracing installs a global tracer provider exporting over OTLP. It returns a
// no-op shutdown when tracing is disabled by cfg or OTEL_SDK_DISABLED=true.
func InitTracing(ctx context.Context, cfg TracingConfig) (ShutdownFunc, error) {
	logger := log.GetLoggerWithName("telemetry")
	setPropagator()
	if disabled, _ := strconv.ParseBool(os.Getenv("OTEL_SDK_DISABLED")); disabled || !cfg.Enabled {
		logger.Debug("Tracing disabled")
		return noopShutdown, nil
	}

	name := cfg.ServiceName
	if v, ok := os.LookupEnv("OTEL_SERVICE_NAME"); ok {
		name = v
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(name)),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create otel resource")
	}

	protocol := cfg.Protocol
	if v := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); v != "" {
		protocol = v
	}
	var exporter *otlptrace.Exporter
	switch protocol {
	case "", "grpc":
		exporter, err = otlptracegrpc.New(ctx)
	case "http/protobuf":
		exporter, err = otlptracehttp.New(ctx)
	default:
		return nil, errors.NewValidationError("telemetry.otel.protocol", "must be grpc or http/protobuf", protocol)
	}
	if err != nil {
		// Tracing must never stop the pipeline.
		logger.Error("Tracing exporter failed, continuing without tracing", "error", err)
		return noopShutdown, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.Sampler, cfg.SamplerArg)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("Tracing configured", "otlp_protocol", protocol, "sampler", cfg.Sampler)
	return tp.Shutdown, nil
}

// Sampler maps an OTEL_TRACES_SAMPLER name to a sampler. Unknown names sample
// everything under a parent-based policy.
func Sampler(name string, arg float64) sdktrace.Sampler {
	switch name {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(arg)
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(arg))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}
