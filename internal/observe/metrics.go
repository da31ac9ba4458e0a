// Package observe provides application-wide observability primitives for
// Versewise: OpenTelemetry metrics and HTTP middleware.
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

// meterName is the instrumentation scope name used for all Versewise metrics.
const meterName = "github.com/ebarkley/versewise"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ScoringDuration tracks attempt-scoring latency.
	ScoringDuration metric.Float64Histogram

	// Attempts counts scored attempts. Use with attributes:
	//   attribute.String("mode", ...), attribute.String("verdict", ...)
	Attempts metric.Int64Counter

	// HintsIssued counts hints by kind.
	HintsIssued metric.Int64Counter

	// AutoHides counts auto-hide nudges applied.
	AutoHides metric.Int64Counter

	// SessionsCompleted counts finished sessions by mode.
	SessionsCompleted metric.Int64Counter

	// PatternsDetected counts detected difficulty patterns by type.
	PatternsDetected metric.Int64Counter

	// StoreErrors counts progress-store failures by operation.
	StoreErrors metric.Int64Counter

	// ActiveSessions tracks the number of live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Scoring
// is CPU-bound and fast, so the buckets skew low.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ScoringDuration, err = m.Float64Histogram("versewise.scoring.duration",
		metric.WithDescription("Latency of attempt scoring."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Attempts, err = m.Int64Counter("versewise.attempts",
		metric.WithDescription("Total scored attempts by mode and verdict."),
	); err != nil {
		return nil, err
	}
	if met.HintsIssued, err = m.Int64Counter("versewise.hints",
		metric.WithDescription("Total hints issued by kind."),
	); err != nil {
		return nil, err
	}
	if met.AutoHides, err = m.Int64Counter("versewise.auto_hides",
		metric.WithDescription("Total auto-hide nudges applied."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("versewise.sessions.completed",
		metric.WithDescription("Total completed practice sessions by mode."),
	); err != nil {
		return nil, err
	}
	if met.PatternsDetected, err = m.Int64Counter("versewise.patterns.detected",
		metric.WithDescription("Total difficulty patterns detected by type."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("versewise.store.errors",
		metric.WithDescription("Total progress store failures by operation."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("versewise.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("versewise.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen
// with the global provider).
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

// RecordAttempt records one scored attempt with the standard attribute set.
func (m *Metrics) RecordAttempt(ctx context.Context, mode, verdict string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("verdict", verdict),
	)
	m.Attempts.Add(ctx, 1, attrs)
	m.ScoringDuration.Record(ctx, seconds, attrs)
}

// RecordHint records one issued hint.
func (m *Metrics) RecordHint(ctx context.Context, kind string) {
	m.HintsIssued.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSessionCompleted records one finished session.
func (m *Metrics) RecordSessionCompleted(ctx context.Context, mode string) {
	m.SessionsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}

// RecordPattern records one detected difficulty pattern.
func (m *Metrics) RecordPattern(ctx context.Context, patternType string) {
	m.PatternsDetected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", patternType)),
	)
}

// RecordStoreError records one progress store failure.
func (m *Metrics) RecordStoreError(ctx context.Context, operation string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("operation", operation)),
	)
}
