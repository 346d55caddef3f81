// Package observe provides application-wide observability primitives for
// voxdoc: OpenTelemetry metrics, stage-level tracing, and structured logging
// helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. Tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxdoc metrics.
const meterName = "github.com/voxdoc/voxdoc"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CleanDuration tracks per-unit LLM cleaning latency.
	CleanDuration metric.Float64Histogram

	// SynthDuration tracks per-unit TTS synthesis latency.
	SynthDuration metric.Float64Histogram

	// AssembleDuration tracks whole-run assembly latency.
	AssembleDuration metric.Float64Histogram

	// RunDuration tracks end-to-end document conversion latency.
	RunDuration metric.Float64Histogram

	// --- Counters ---

	// UnitsProcessed counts text units by stage outcome. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	UnitsProcessed metric.Int64Counter

	// UnitFailures counts per-unit failures by stage. Use with attribute:
	//   attribute.String("stage", ...)
	UnitFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks the number of document conversions in flight.
	ActiveRuns metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Local
// inference latencies span a wide range: sub-second cleaning on a warm model
// up to minutes of CPU-bound synthesis.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CleanDuration, err = m.Float64Histogram("voxdoc.clean.duration",
		metric.WithDescription("Latency of per-unit LLM text cleaning."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthDuration, err = m.Float64Histogram("voxdoc.synth.duration",
		metric.WithDescription("Latency of per-unit TTS synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssembleDuration, err = m.Float64Histogram("voxdoc.assemble.duration",
		metric.WithDescription("Latency of final audio assembly."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("voxdoc.run.duration",
		metric.WithDescription("End-to-end document conversion latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.UnitsProcessed, err = m.Int64Counter("voxdoc.units.processed",
		metric.WithDescription("Total text units processed by stage and status."),
	); err != nil {
		return nil, err
	}
	if met.UnitFailures, err = m.Int64Counter("voxdoc.units.failures",
		metric.WithDescription("Total per-unit failures by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRuns, err = m.Int64UpDownCounter("voxdoc.active_runs",
		metric.WithDescription("Number of document conversions in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
