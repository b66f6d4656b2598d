// Package observe provides application-wide observability primitives for
// callsight: OpenTelemetry metrics, distributed tracing, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all callsight metrics.
const meterName = "github.com/callsight/callsight"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscriptionDuration tracks the latency of one transcription flush
	// against the speech-to-text backend.
	TranscriptionDuration metric.Float64Histogram

	// InsightsDuration tracks the latency of one insight extraction pass.
	InsightsDuration metric.Float64Histogram

	// --- Counters ---

	// MediaFrames counts inbound carrier envelopes. Use with attribute:
	//   attribute.String("event", "start"|"media"|"stop")
	MediaFrames metric.Int64Counter

	// ProviderRequests counts provider API calls that passed the silence
	// gate. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	// status is "ok" for a usable result, "empty" for an operational
	// failure swallowed by the adapter, and "error" for caller misuse.
	ProviderRequests metric.Int64Counter

	// Broadcasts counts dashboard push events by event name.
	Broadcasts metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Flushes
// against hosted speech and chat models run from sub-second to the 90 s
// insight budget, so the buckets stretch well past typical HTTP latencies.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("callsight.transcription.duration",
		metric.WithDescription("Latency of one transcription flush."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InsightsDuration, err = m.Float64Histogram("callsight.insights.duration",
		metric.WithDescription("Latency of one insight extraction pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MediaFrames, err = m.Int64Counter("callsight.media.frames",
		metric.WithDescription("Inbound carrier envelopes by event."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("callsight.provider.requests",
		metric.WithDescription("Provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Broadcasts, err = m.Int64Counter("callsight.push.broadcasts",
		metric.WithDescription("Dashboard broadcasts by event."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("callsight.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("callsight.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RegisterGauges registers observable gauges that poll live counts on every
// metrics collection: active media sessions and connected dashboard
// clients. Either probe may be nil to skip its gauge.
func RegisterGauges(mp metric.MeterProvider, sessions, clients func() int) error {
	m := mp.Meter(meterName)

	if sessions != nil {
		_, err := m.Int64ObservableGauge("callsight.active_sessions",
			metric.WithDescription("Number of live media sessions."),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(sessions()))
				return nil
			}),
		)
		if err != nil {
			return err
		}
	}

	if clients != nil {
		_, err := m.Int64ObservableGauge("callsight.dashboard.clients",
			metric.WithDescription("Number of connected dashboard clients."),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(clients()))
				return nil
			}),
		)
		if err != nil {
			return err
		}
	}

	return nil
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records one provider error with the standard
// attribute set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordMediaFrame records one inbound carrier envelope.
func (m *Metrics) RecordMediaFrame(ctx context.Context, event string) {
	m.MediaFrames.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
}

// RecordBroadcast records one dashboard broadcast.
func (m *Metrics) RecordBroadcast(ctx context.Context, event string) {
	m.Broadcasts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
}
