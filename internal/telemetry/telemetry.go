// Package telemetry wires Nayru's OpenTelemetry metric instruments and a
// Prometheus exporter bridge, so /metrics on the HTTP API stays scrapeable
// without committing to any particular metrics backend in the engine or
// pipeline packages themselves.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/hammamikhairi/nayru"

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds every OpenTelemetry instrument the pipeline records
// through. Fields are safe for concurrent use; the underlying OTel types
// handle their own synchronization.
type Metrics struct {
	ChunksSynthesized metric.Int64Counter
	ChunkRetries      metric.Int64Counter
	ChunksFailed      metric.Int64Counter
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	SynthesisDuration metric.Float64Histogram
}

// NewMetrics creates instruments against the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChunksSynthesized, err = m.Int64Counter("nayru.chunks.synthesized",
		metric.WithDescription("Total chunks successfully synthesized."),
	); err != nil {
		return nil, err
	}
	if met.ChunkRetries, err = m.Int64Counter("nayru.chunks.retries",
		metric.WithDescription("Total upstream retry attempts."),
	); err != nil {
		return nil, err
	}
	if met.ChunksFailed, err = m.Int64Counter("nayru.chunks.failed",
		metric.WithDescription("Total chunks that failed after retries."),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("nayru.cache.hits",
		metric.WithDescription("Audio cache hits."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("nayru.cache.misses",
		metric.WithDescription("Audio cache misses."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("nayru.synthesis.duration",
		metric.WithDescription("Latency of one upstream synthesis call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordChunkResult increments the success/failure counters with a voice
// attribute, so dashboards can break down failure rate per voice.
func (m *Metrics) RecordChunkResult(ctx context.Context, voice string, ok bool) {
	attrs := metric.WithAttributes(attribute.String("voice", voice))
	if ok {
		m.ChunksSynthesized.Add(ctx, 1, attrs)
	} else {
		m.ChunksFailed.Add(ctx, 1, attrs)
	}
}

// InitProvider sets up the global OTel MeterProvider with a Prometheus
// exporter bridge and returns the constructed Metrics plus a shutdown
// function to call from main().
func InitProvider(ctx context.Context, serviceName string) (*Metrics, func(context.Context) error, error) {
	if serviceName == "" {
		serviceName = "nayru"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, nil, err
	}

	exp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	otel.SetMeterProvider(mp)

	metrics, err := NewMetrics(mp)
	if err != nil {
		return nil, nil, err
	}

	return metrics, mp.Shutdown, nil
}
