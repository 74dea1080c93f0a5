// Package observe provides application-wide observability primitives for
// MockMate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all MockMate metrics.
const meterName = "github.com/mockmate/mockmate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// QuestionFetchDuration tracks question batch generation latency.
	QuestionFetchDuration metric.Float64Histogram

	// ScoringDuration tracks answer/session scoring latency. Use with
	// attribute.String("kind", "answer"|"session").
	ScoringDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency per utterance.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// StageTransitions counts interview stage transitions. Use with
	// attributes: attribute.String("from", ...), attribute.String("to", ...)
	StageTransitions metric.Int64Counter

	// ScoringFallbacks counts scoring calls resolved by the fixed fallback
	// payload. Use with attribute.String("kind", "answer"|"session").
	ScoringFallbacks metric.Int64Counter

	// PlaybackWatchdogFires counts playback chunks force-completed by the
	// stall watchdog.
	PlaybackWatchdogFires metric.Int64Counter

	// CaptureRestarts counts automatic recognizer restarts.
	CaptureRestarts metric.Int64Counter

	// VoiceCommands counts recognised spoken commands. Use with
	// attribute.String("command", ...).
	VoiceCommands metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ConnectedClients tracks the number of connected gateway clients.
	ConnectedClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for remote
// generation/scoring calls and synthesis.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.QuestionFetchDuration, err = m.Float64Histogram("mockmate.question.fetch.duration",
		metric.WithDescription("Latency of question batch generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ScoringDuration, err = m.Float64Histogram("mockmate.scoring.duration",
		metric.WithDescription("Latency of answer/session scoring by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("mockmate.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("mockmate.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.StageTransitions, err = m.Int64Counter("mockmate.stage.transitions",
		metric.WithDescription("Total interview stage transitions by from/to stage."),
	); err != nil {
		return nil, err
	}
	if met.ScoringFallbacks, err = m.Int64Counter("mockmate.scoring.fallbacks",
		metric.WithDescription("Total scoring calls resolved by the fixed fallback payload."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackWatchdogFires, err = m.Int64Counter("mockmate.playback.watchdog_fires",
		metric.WithDescription("Total playback chunks force-completed by the stall watchdog."),
	); err != nil {
		return nil, err
	}
	if met.CaptureRestarts, err = m.Int64Counter("mockmate.capture.restarts",
		metric.WithDescription("Total automatic speech recognizer restarts."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCommands, err = m.Int64Counter("mockmate.voice.commands",
		metric.WithDescription("Total recognised spoken commands by command."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("mockmate.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("mockmate.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}
	if met.ConnectedClients, err = m.Int64UpDownCounter("mockmate.connected_clients",
		metric.WithDescription("Number of connected gateway clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("mockmate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordStageTransition records an interview stage transition.
func (m *Metrics) RecordStageTransition(ctx context.Context, from, to string) {
	m.StageTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordScoringDuration records the latency of one scoring call. kind is
// "answer" or "session".
func (m *Metrics) RecordScoringDuration(ctx context.Context, kind string, seconds float64) {
	m.ScoringDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordScoringFallback records a scoring call resolved by the fixed fallback
// payload.
func (m *Metrics) RecordScoringFallback(ctx context.Context, kind string) {
	m.ScoringFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordVoiceCommand records a recognised spoken command.
func (m *Metrics) RecordVoiceCommand(ctx context.Context, command string) {
	m.VoiceCommands.Add(ctx, 1,
		metric.WithAttributes(attribute.String("command", command)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
