// Package observe provides OpenTelemetry metrics for the mixer: play and
// failure counters, scheduling slip, and observable gauges for latency and
// queue depth.
//
// A Prometheus exporter bridge is available via [InitProvider] so metrics can
// be scraped from a /metrics endpoint. Tests should use [NewMetrics] with a
// manual reader to avoid cross-test pollution.
//
// A nil *Metrics is valid and records nothing.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all cuemix metrics.
const meterName = "github.com/Resonate-Protocol/cuemix"

// Metrics holds the metric instruments for the mixer.
type Metrics struct {
	meter metric.Meter

	// Plays counts sounds accepted. Attributes: kind, channel.
	Plays metric.Int64Counter

	// Failures counts rejected requests. Attributes: kind, reason.
	Failures metric.Int64Counter

	// Slip records late starts in seconds.
	Slip metric.Float64Histogram

	// CuesReleased counts cues the scheduler handed to the engine.
	CuesReleased metric.Int64Counter
}

// slipBuckets covers a few samples up to a few buffers at common rates.
var slipBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.Plays, err = m.Int64Counter("cuemix.plays",
		metric.WithDescription("Sounds queued by kind and channel."),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("cuemix.failures",
		metric.WithDescription("Rejected play requests by kind and reason."),
	); err != nil {
		return nil, err
	}
	if met.Slip, err = m.Float64Histogram("cuemix.slip",
		metric.WithDescription("Lateness of sounds that could not start on time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(slipBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CuesReleased, err = m.Int64Counter("cuemix.scheduler.released",
		metric.WithDescription("Cues handed from the scheduler to the engine."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Source is what the observable gauges read from.
type Source interface {
	CurrentLatency() time.Duration
	Pending() int
}

// ObserveSource registers latency and pending gauges backed by src. The
// returned registration should be unregistered before src goes away.
func (m *Metrics) ObserveSource(src Source) (metric.Registration, error) {
	latency, err := m.meter.Float64ObservableGauge("cuemix.latency",
		metric.WithDescription("Last buffer duration plus device output latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	pending, err := m.meter.Int64ObservableGauge("cuemix.pending",
		metric.WithDescription("Sounds queued across all channels."),
	)
	if err != nil {
		return nil, err
	}

	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(latency, src.CurrentLatency().Seconds())
		o.ObserveInt64(pending, int64(src.Pending()))
		return nil
	}, latency, pending)
}

// RecordPlay records an accepted sound.
func (m *Metrics) RecordPlay(ctx context.Context, kind string, channel int) {
	if m == nil {
		return
	}
	m.Plays.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.Int("channel", channel),
		),
	)
}

// RecordFailure records a rejected request.
func (m *Metrics) RecordFailure(ctx context.Context, kind, reason string) {
	if m == nil {
		return
	}
	m.Failures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("reason", reason),
		),
	)
}

// RecordSlip records a late start given in frames. Negative frames are late.
func (m *Metrics) RecordSlip(ctx context.Context, frames, sampleRate int) {
	if m == nil || frames >= 0 || sampleRate <= 0 {
		return
	}
	m.Slip.Record(ctx, float64(-frames)/float64(sampleRate))
}

// RecordRelease records cues released by the scheduler.
func (m *Metrics) RecordRelease(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CuesReleased.Add(ctx, int64(n))
}
