// Package observe provides the observability primitives for Scrivener:
// OpenTelemetry metrics and tracing, a context-carried structured logger,
// and the HTTP middleware that ties them together.
//
// Metrics go through the OpenTelemetry Metrics API and are scraped through
// the Prometheus exporter installed by [InitProvider]. [DefaultMetrics] is a
// process-wide instance; tests should build their own with [NewMetrics] and a
// private [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/scrivener"

// Metrics holds every instrument the service records. The OTel types do their
// own locking, so a *Metrics is safe for concurrent use.
type Metrics struct {
	// AnalysisDuration covers one complete grammar analysis, correction
	// excluded. Attribute: "kind".
	AnalysisDuration metric.Float64Histogram

	// DiffDuration covers one edit-script build plus change extraction.
	// Attribute: "scope" ("paragraph" or "sentence").
	DiffDuration metric.Float64Histogram

	// ProviderDuration covers calls to correction and LLM collaborators.
	// Attributes: "provider", "kind".
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts collaborator calls.
	// Attributes: "provider", "kind", "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed collaborator calls.
	// Attributes: "provider", "kind".
	ProviderErrors metric.Int64Counter

	// ChangesEmitted counts Change records. Attribute: "scope".
	ChangesEmitted metric.Int64Counter

	// DissimilarPairs counts positionally aligned sentence pairs whose
	// similarity fell below the configured threshold.
	DissimilarPairs metric.Int64Counter

	// ActiveWebSockets tracks open live-analysis connections.
	ActiveWebSockets metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency.
	// Attributes: "method", "path", "status".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Diffing lives at the low
// end, LLM explanations at the high end.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("scrivener.analysis.duration",
		metric.WithDescription("Latency of a complete grammar analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiffDuration, err = m.Float64Histogram("scrivener.diff.duration",
		metric.WithDescription("Latency of edit-script construction and change extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("scrivener.provider.duration",
		metric.WithDescription("Latency of correction and LLM provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("scrivener.provider.requests",
		metric.WithDescription("Provider calls by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("scrivener.provider.errors",
		metric.WithDescription("Failed provider calls by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ChangesEmitted, err = m.Int64Counter("scrivener.changes.emitted",
		metric.WithDescription("Change records produced, by scope."),
	); err != nil {
		return nil, err
	}
	if met.DissimilarPairs, err = m.Int64Counter("scrivener.alignment.dissimilar_pairs",
		metric.WithDescription("Aligned sentence pairs below the similarity threshold."),
	); err != nil {
		return nil, err
	}

	if met.ActiveWebSockets, err = m.Int64UpDownCounter("scrivener.websocket.active",
		metric.WithDescription("Open live-analysis WebSocket connections."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("scrivener.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics], created on first use from
// [otel.GetMeterProvider]. Call it after [InitProvider] so the instruments
// bind to the Prometheus exporter.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderCall records one collaborator call: its latency, the request
// counter with an ok/error status, and the error counter on failure.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	m.ProviderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordDiff records the latency and change count of one diff.
func (m *Metrics) RecordDiff(ctx context.Context, scope string, d time.Duration, changes int) {
	attrs := metric.WithAttributes(attribute.String("scope", scope))
	m.DiffDuration.Record(ctx, d.Seconds(), attrs)
	m.ChangesEmitted.Add(ctx, int64(changes), attrs)
}

// RecordDissimilarPair counts one suspicious sentence pairing.
func (m *Metrics) RecordDissimilarPair(ctx context.Context) {
	m.DissimilarPairs.Add(ctx, 1)
}
