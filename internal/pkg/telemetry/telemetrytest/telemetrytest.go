// Package telemetrytest provides in-memory tracer and meter providers for
// tests that assert on spans and metric points.
package telemetrytest

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// Metrics collects metric points on demand.
type Metrics struct {
	Reader   *sdkmetric.ManualReader
	Provider *sdkmetric.MeterProvider
}

// NewMetrics returns a MeterProvider backed by a manual reader.
func NewMetrics() *Metrics {
	reader := sdkmetric.NewManualReader()
	return &Metrics{
		Reader:   reader,
		Provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

// Meter returns a meter from the in-memory provider.
func (m *Metrics) Meter() metric.Meter {
	return m.Provider.Meter("telemetrytest")
}

// Int64 sums every int64 point of the named instrument whose attribute set
// contains all of attrs. found is false when no point matched.
func (m *Metrics) Int64(t testing.TB, name string, attrs ...attribute.KeyValue) (total int64, found bool) {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := m.Reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			var points []metricdata.DataPoint[int64]
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			for _, dp := range points {
				if matches(dp.Attributes, attrs) {
					total += dp.Value
					found = true
				}
			}
		}
	}
	return total, found
}

func matches(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

// Spans records every ended span.
type Spans struct {
	Recorder *tracetest.SpanRecorder
	Provider *sdktrace.TracerProvider
}

// NewSpans returns a TracerProvider that records spans in memory.
func NewSpans() *Spans {
	sr := tracetest.NewSpanRecorder()
	return &Spans{
		Recorder: sr,
		Provider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)),
	}
}

// Tracer returns a tracer from the recording provider.
func (s *Spans) Tracer() trace.Tracer {
	return s.Provider.Tracer("telemetrytest")
}

// Named returns the ended spans with the given name, in end order.
func (s *Spans) Named(name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, span := range s.Recorder.Ended() {
		if span.Name() == name {
			out = append(out, span)
		}
	}
	return out
}

// Children returns the ended spans whose parent is parent.
func (s *Spans) Children(parent sdktrace.ReadOnlySpan) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, span := range s.Recorder.Ended() {
		if span.Parent().SpanID() == parent.SpanContext().SpanID() {
			out = append(out, span)
		}
	}
	return out
}

// Attr returns the value of key on span, or an empty Value.
func Attr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}
