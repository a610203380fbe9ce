package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	m, err := NewMetrics(mp)
	require.NoError(t, err)
	assert.NotNil(t, m.ChunksSynthesized)
	assert.NotNil(t, m.ChunkRetries)
	assert.NotNil(t, m.ChunksFailed)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.CacheMisses)
	assert.NotNil(t, m.SynthesisDuration)
}

func TestRecordChunkResultCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordChunkResult(ctx, "af_heart", true)
	m.RecordChunkResult(ctx, "af_heart", true)
	m.RecordChunkResult(ctx, "af_heart", false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if sum, ok := met.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[met.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), counts["nayru.chunks.synthesized"])
	assert.Equal(t, int64(1), counts["nayru.chunks.failed"])
}
