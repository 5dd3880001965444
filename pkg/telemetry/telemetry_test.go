package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInit_Disabled(t *testing.T) {
	cfg := Config{
		Enabled:     false,
		ServiceName: "test",
	}

	provider, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if provider == nil {
		t.Fatal("provider should not be nil")
	}

	if provider.tracer == nil {
		t.Error("tracer should not be nil even when disabled")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestGet_Uninitialized(t *testing.T) {
	globalProvider = nil

	provider := Get()
	if provider == nil {
		t.Fatal("Get() should return provider even when uninitialized")
	}

	if provider.tracer == nil {
		t.Error("tracer should not be nil")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}

	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}

	if got := sampler(0.25).Description(); got == "AlwaysOnSampler" || got == "AlwaysOffSampler" {
		t.Errorf("fractional rate should use ratio sampler, got %s", got)
	}
}

func TestInitWithExporter_RecordsRouterSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider, err := InitWithExporter(Config{ServiceName: "fpgaroute-test"}, exporter)
	if err != nil {
		t.Fatalf("InitWithExporter() error = %v", err)
	}
	defer provider.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	ctx, span := StartSpan(context.Background(), SpanRouteConnection,
		WithAttributes(ConnectionAttributes("s-1", 3, 17, "[0..4]x[0..4]x[0..0]", "normal", 4)...),
	)
	SetAttributes(ctx, OutcomeAttributes("found", 40, 38, 52, 6, 12.5)...)
	AddEvent(ctx, "retry", attribute.Int("attempt", 1))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != SpanRouteConnection {
		t.Errorf("span name = %s, want %s", got.Name, SpanRouteConnection)
	}

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range got.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrSink].AsInt64() != 17 {
		t.Errorf("sink attribute = %v, want 17", attrs[AttrSink])
	}
	if attrs[AttrStatus].AsString() != "found" {
		t.Errorf("status attribute = %v, want found", attrs[AttrStatus])
	}
	if attrs[AttrPushes].AsInt64() != 40 {
		t.Errorf("pushes attribute = %v, want 40", attrs[AttrPushes])
	}
	if len(got.Events) != 1 || got.Events[0].Name != "retry" {
		t.Errorf("expected one retry event, got %+v", got.Events)
	}
}

func TestSetError_MarksSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider, err := InitWithExporter(Config{ServiceName: "fpgaroute-test"}, exporter)
	if err != nil {
		t.Fatalf("InitWithExporter() error = %v", err)
	}
	defer provider.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	ctx, span := StartSpan(context.Background(), SpanRouteNet)
	SetError(ctx, errors.New("no source in route tree"))
	span.End()

	ctx, span = StartSpan(context.Background(), SpanRouteNet)
	RecordError(ctx, errors.New("unroutable"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("SetError should mark span as error, got %v", spans[0].Status.Code)
	}
	if spans[1].Status.Code == codes.Error {
		t.Error("RecordError should not change span status")
	}
	if len(spans[1].Events) != 1 {
		t.Errorf("RecordError should add an exception event, got %d", len(spans[1].Events))
	}
}

func TestSpanFromContext(t *testing.T) {
	span := SpanFromContext(context.Background())

	// Should return noop span for context without span
	if span == nil {
		t.Error("SpanFromContext should return span (noop)")
	}
	if span.SpanContext().IsValid() {
		t.Error("span from empty context should not be valid")
	}
}

func TestProvider_Tracer(t *testing.T) {
	provider := &Provider{
		tracer: noop.NewTracerProvider().Tracer("test"),
	}

	if provider.Tracer() == nil {
		t.Error("Tracer() should not return nil")
	}
}

func TestAttributeHelpers(t *testing.T) {
	if got := len(ConnectionAttributes("id", 1, 2, "bb", "high_fanout", 8)); got != 6 {
		t.Errorf("expected 6 connection attributes, got %d", got)
	}
	if got := len(OutcomeAttributes("retry", 1, 1, 1, 0, 0)); got != 6 {
		t.Errorf("expected 6 outcome attributes, got %d", got)
	}
	if got := len(NetAttributes(4, 70)); got != 2 {
		t.Errorf("expected 2 net attributes, got %d", got)
	}
	if got := len(DeviceAttributes(100, 400)); got != 2 {
		t.Errorf("expected 2 device attributes, got %d", got)
	}
}
