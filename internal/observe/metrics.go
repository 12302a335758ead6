// Package observe provides observability primitives for sayright:
// OpenTelemetry metrics, tracing, and a trace-aware structured logger.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to a
// Prometheus registry by [InitProvider]. Since the program exposes no network
// interface, the registry is written to a Prometheus textfile on shutdown
// instead of being scraped. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sayright metrics.
const meterName = "github.com/sayright/sayright"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// FeedbackDuration tracks how long a feedback message takes to present,
	// settle delay included.
	FeedbackDuration metric.Float64Histogram

	// TTSDuration tracks synthesis plus playback of one spoken message.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts final transcripts handed to the session. Use with
	// attribute:
	//   attribute.String("state", ...)
	Utterances metric.Int64Counter

	// Activations counts transitions into the active state.
	Activations metric.Int64Counter

	// Dispatches counts words evaluated and presented. Use with attribute:
	//   attribute.String("outcome", ...)
	Dispatches metric.Int64Counter

	// SkippedDuplicates counts words skipped because they repeated the
	// previous word.
	SkippedDuplicates metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Failovers counts calls served by a fallback provider. Use with
	// attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	Failovers metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of running practice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// feedback presentation, which is dominated by speech playback.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FeedbackDuration, err = m.Float64Histogram("sayright.feedback.duration",
		metric.WithDescription("Time to present one feedback message, settle delay included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("sayright.tts.duration",
		metric.WithDescription("Latency of speech synthesis and playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Utterances, err = m.Int64Counter("sayright.utterances",
		metric.WithDescription("Total final transcripts received by session state."),
	); err != nil {
		return nil, err
	}
	if met.Activations, err = m.Int64Counter("sayright.activations",
		metric.WithDescription("Total session activations."),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("sayright.dispatches",
		metric.WithDescription("Total evaluated words by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SkippedDuplicates, err = m.Int64Counter("sayright.skipped_duplicates",
		metric.WithDescription("Total words skipped as immediate repeats."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("sayright.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Failovers, err = m.Int64Counter("sayright.provider.failovers",
		metric.WithDescription("Total calls served by a fallback provider."),
	); err != nil {
		return nil, err
	}

	if met.ProviderErrors, err = m.Int64Counter("sayright.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("sayright.active_sessions",
		metric.WithDescription("Number of running practice sessions."),
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
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// RecordUtterance records a received utterance in the given session state.
func (m *Metrics) RecordUtterance(ctx context.Context, state string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordActivation records a session activation.
func (m *Metrics) RecordActivation(ctx context.Context) {
	m.Activations.Add(ctx, 1)
}

// RecordDispatch records an evaluated word and how long presenting its
// feedback took.
func (m *Metrics) RecordDispatch(ctx context.Context, outcome string, presented time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Dispatches.Add(ctx, 1, attrs)
	m.FeedbackDuration.Record(ctx, presented.Seconds(), attrs)
}

// RecordSkippedDuplicate records a word skipped as an immediate repeat.
func (m *Metrics) RecordSkippedDuplicate(ctx context.Context) {
	m.SkippedDuplicates.Add(ctx, 1)
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

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFailover records a call served by a fallback provider.
func (m *Metrics) RecordFailover(ctx context.Context, provider, kind string) {
	m.Failovers.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
