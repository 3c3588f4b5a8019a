package tracing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidConnectionString is returned when an Application Insights
// connection string lacks an instrumentation key or ingestion endpoint.
var ErrInvalidConnectionString = errors.New("invalid application insights connection string")

// ConnectionString is a parsed Application Insights connection string
type ConnectionString struct {
	InstrumentationKey string
	IngestionEndpoint  string
}

// ParseConnectionString parses "Key=Value;Key=Value" pairs. Keys are matched
// case-insensitively.
func ParseConnectionString(raw string) (ConnectionString, error) {
	var cs ConnectionString
	for _, part := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "instrumentationkey":
			cs.InstrumentationKey = strings.TrimSpace(value)
		case "ingestionendpoint":
			cs.IngestionEndpoint = strings.TrimSpace(value)
		}
	}

	if cs.InstrumentationKey == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing InstrumentationKey", ErrInvalidConnectionString)
	}
	if cs.IngestionEndpoint == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing IngestionEndpoint", ErrInvalidConnectionString)
	}
	return cs, nil
}

// TracesURL is the OTLP/HTTP traces URL under the ingestion endpoint
func (cs ConnectionString) TracesURL() string {
	return strings.TrimRight(cs.IngestionEndpoint, "/") + "/v1/traces"
}

// Config configures the tracer provider
type Config struct {
	ServiceName      string
	ServiceVersion   string
	ConnectionString string

	// Exporter overrides the OTLP exporter, used by tests
	Exporter sdktrace.SpanExporter
}

// Provider owns the process tracer provider
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init builds a tracer provider that exports to Application Insights and
// installs it as the global provider. When OTEL_EXPORTER_OTLP_ENDPOINT is set
// the exporter honours it instead of the ingestion endpoint.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	exporter := cfg.Exporter
	if exporter == nil {
		cs, err := ParseConnectionString(cfg.ConnectionString)
		if err != nil {
			return nil, err
		}

		opts := []otlptracehttp.Option{
			otlptracehttp.WithHeaders(map[string]string{
				"x-ms-instrumentation-key": cs.InstrumentationKey,
			}),
		}
		if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" && os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cs.TracesURL()))
		}

		exporter, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans and stops the provider. Safe on nil.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartSpan starts a span and ensures trace_id is propagated in the tracing context package.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		sc := span.SpanContext()
		if sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
