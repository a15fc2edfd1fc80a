package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/panelopt/panelopt/pkg/config"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), nil, "run-1")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	_, span := Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected a no-op span without an endpoint")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}

	if _, err := Setup(context.Background(), &config.Tracing{}, "run-1"); err != nil {
		t.Errorf("Setup with empty endpoint failed: %v", err)
	}
}

func TestNewProviderRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := NewProvider(exporter, 1, "run-2")
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(prev)

	_, span := Tracer("test").Start(context.Background(), "generation")
	span.End()
	if err := provider.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "generation" {
		t.Fatalf("unexpected spans %v", spans)
	}
	found := false
	for _, kv := range spans[0].Resource.Attributes() {
		if string(kv.Key) == "panelopt.run_id" && kv.Value.AsString() == "run-2" {
			found = true
		}
	}
	if !found {
		t.Error("run id missing from span resource")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Error(err)
	}
}
