package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// DefaultServiceName identifies the service to the trace backend
const DefaultServiceName = "sitetime"

// ShutdownFunc flushes and stops tracing
type ShutdownFunc func(context.Context) error

// InitTracer initializes the OpenTelemetry tracer provider. component
// distinguishes the server from the worker within one service.
func InitTracer(ctx context.Context, serviceName, component, endpoint string) (*sdktrace.TracerProvider, error) {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			attribute.String("sitetime.component", component),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Setup initializes tracing when enabled. Failures are logged and tracing stays
// off; the returned ShutdownFunc is always safe to call.
func Setup(ctx context.Context, enabled bool, component, endpoint string, logger *zap.Logger) ShutdownFunc {
	noop := func(context.Context) error { return nil }
	if !enabled {
		return noop
	}
	tp, err := InitTracer(ctx, DefaultServiceName, component, endpoint)
	if err != nil {
		logger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return noop
	}
	logger.Info("otel_tracer_initialized",
		zap.String("component", component),
		zap.String("endpoint", endpoint),
	)
	return func(ctx context.Context) error {
		return Shutdown(ctx, tp)
	}
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
