// Package observe holds the OpenTelemetry instruments shared by the command
// pipeline, the reconciliation engine and the transports.
//
// Metrics are recorded through the OTel API and exported in Prometheus format
// by [InitProvider]. Tests should build a [Metrics] with [NewMetrics] over a
// ManualReader-backed provider instead of relying on [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

const meterName = "github.com/rl1809/autoparts-inventory"

// Pipeline stages reported through StageDuration.
const (
	StageTranscription  = "transcription"
	StageExtraction     = "extraction"
	StageParse          = "parse"
	StageReconciliation = "reconciliation"
)

type Metrics struct {
	// StageDuration tracks the latency of each pipeline stage. Attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	StageDuration metric.Float64Histogram

	// ProviderRequests counts outbound calls to transcription and extraction
	// services. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ChangeOutcomes counts reconciled changes. Attributes: action, status, reason.
	ChangeOutcomes metric.Int64Counter

	// ExtractionCache counts extraction cache lookups. Attribute: result (hit, miss).
	ExtractionCache metric.Int64Counter

	// HTTPRequestDuration tracks request latency. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are in seconds; remote model calls dominate the upper range.
var latencyBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("parts.pipeline.stage.duration",
		metric.WithDescription("Latency of command pipeline stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("parts.provider.requests",
		metric.WithDescription("Outbound provider requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ChangeOutcomes, err = m.Int64Counter("parts.reconcile.changes",
		metric.WithDescription("Reconciled changes by action, status and rejection reason."),
	); err != nil {
		return nil, err
	}
	if met.ExtractionCache, err = m.Int64Counter("parts.extraction.cache",
		metric.WithDescription("Extraction cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("parts.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a Metrics built on the global meter provider. It is
// a no-op until InitProvider installs a real provider.
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

// RecordStage observes how long a pipeline stage took and whether it failed.
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time, err error) {
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", statusOf(err)),
		))
}

// RecordProviderCall counts one outbound request.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, err error) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", statusOf(err)),
		))
}

func (m *Metrics) RecordOutcome(ctx context.Context, o domain.Outcome) {
	m.ChangeOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", string(o.Change.Action)),
			attribute.String("status", string(o.Status)),
			attribute.String("reason", string(o.Reason)),
		))
}

func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ExtractionCache.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
