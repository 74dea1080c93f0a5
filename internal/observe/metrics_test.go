package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"mockmate.question.fetch.duration", m.QuestionFetchDuration},
		{"mockmate.scoring.duration", m.ScoringDuration},
		{"mockmate.tts.duration", m.TTSDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordStageTransition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStageTransition(ctx, "intro", "awaiting_answer")
	m.RecordStageTransition(ctx, "intro", "awaiting_answer")
	m.RecordStageTransition(ctx, "feedback", "evaluating")

	met := findMetric(collect(t, reader), "mockmate.stage.transitions")
	if met == nil {
		t.Fatal("stage transitions metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("stage transitions metric is not a sum")
	}

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Fatalf("total transitions = %d, want 3", total)
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("attribute sets = %d, want 2", len(sum.DataPoints))
	}
}

func TestRecordScoringFallback(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordScoringFallback(ctx, "answer")
	m.RecordScoringFallback(ctx, "session")

	met := findMetric(collect(t, reader), "mockmate.scoring.fallbacks")
	if met == nil {
		t.Fatal("scoring fallback metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 2 {
		t.Fatalf("attribute sets = %d, want 2 (answer, session)", len(sum.DataPoints))
	}
}

func TestRecordScoringDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordScoringDuration(ctx, "answer", 0.25)
	m.RecordScoringDuration(ctx, "answer", 0.75)
	m.RecordScoringDuration(ctx, "session", 1.5)

	met := findMetric(collect(t, reader), "mockmate.scoring.duration")
	if met == nil {
		t.Fatal("scoring duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("scoring duration metric is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("attribute sets = %d, want 2 (answer, session)", len(hist.DataPoints))
	}
	for _, dp := range hist.DataPoints {
		v, ok := dp.Attributes.Value("kind")
		if !ok {
			t.Fatal("data point missing kind attribute")
		}
		switch v.AsString() {
		case "answer":
			if dp.Count != 2 {
				t.Errorf("answer count = %d, want 2", dp.Count)
			}
		case "session":
			if dp.Count != 1 {
				t.Errorf("session count = %d, want 1", dp.Count)
			}
		default:
			t.Errorf("unexpected kind %q", v.AsString())
		}
	}
}

func TestRecordProviderRequestAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "openai", "llm", "ok")

	met := findMetric(collect(t, reader), "mockmate.provider.requests")
	if met == nil {
		t.Fatal("provider requests metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(sum.DataPoints))
	}
	attrs := sum.DataPoints[0].Attributes
	for _, want := range []attribute.KeyValue{
		attribute.String("provider", "openai"),
		attribute.String("kind", "llm"),
		attribute.String("status", "ok"),
	} {
		if v, ok := attrs.Value(want.Key); !ok || v != want.Value {
			t.Errorf("attribute %s = %v, want %v", want.Key, v, want.Value)
		}
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	met := findMetric(collect(t, reader), "mockmate.active_sessions")
	if met == nil {
		t.Fatal("active sessions metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}
}

func TestDefaultMetricsSingleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Fatal("DefaultMetrics returned different instances")
	}
}
