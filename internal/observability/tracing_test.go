package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracingDisabledInstallsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Fatalf("provider: got %T, want noop", otel.GetTracerProvider())
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingStdoutExporter(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "starfleet-test",
		Exporter:    "stdout",
		SampleRatio: 1,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	defer ShutdownWithTimeout(context.Background(), shutdown, nil)

	_, span := StartSpan(context.Background(), "loader.Load", "asset", "jet")
	if !span.SpanContext().IsValid() {
		t.Fatalf("span context is not valid with sampling ratio 1")
	}
	EndSpan(span, errors.New("boom"))
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestShutdownWithTimeoutToleratesNil(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil, nil)
}
