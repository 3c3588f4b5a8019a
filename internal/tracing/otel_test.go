package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestParseConnectionString(t *testing.T) {
	raw := "InstrumentationKey=00000000-1111-2222-3333-444444444444;IngestionEndpoint=https://eastus-8.in.applicationinsights.azure.com/;LiveEndpoint=https://eastus.livediagnostics.monitor.azure.com/"

	cs, err := ParseConnectionString(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.InstrumentationKey != "00000000-1111-2222-3333-444444444444" {
		t.Errorf("InstrumentationKey = %q", cs.InstrumentationKey)
	}
	if got := cs.TracesURL(); got != "https://eastus-8.in.applicationinsights.azure.com/v1/traces" {
		t.Errorf("TracesURL = %q", got)
	}
}

func TestParseConnectionStringInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"missing key":      "IngestionEndpoint=https://example.com/",
		"missing endpoint": "InstrumentationKey=abc",
		"garbage":          "not a connection string",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConnectionString(raw)
			if !errors.Is(err, ErrInvalidConnectionString) {
				t.Errorf("expected ErrInvalidConnectionString, got %v", err)
			}
		})
	}
}

func TestInitRejectsBadConnectionString(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "agentgate", ConnectionString: "bogus"})
	if !errors.Is(err, ErrInvalidConnectionString) {
		t.Fatalf("expected ErrInvalidConnectionString, got %v", err)
	}
}

func TestInitExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()

	p, err := Init(context.Background(), Config{
		ServiceName:    "agentgate",
		ServiceVersion: "test",
		Exporter:       exporter,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "agentgate/test", "resolve-agent")
	if GetTraceID(ctx) == "" {
		t.Error("trace id not stored in context")
	}
	span.End()

	// the in-memory exporter drops spans on shutdown, so flush first
	if err := p.tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "resolve-agent" {
		t.Fatalf("unexpected spans: %+v", spans)
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestShutdownNilProvider(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider shutdown: %v", err)
	}
}
