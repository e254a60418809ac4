package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// sumBy returns the int64 sum points of name keyed by the value of key.
func sumBy(t *testing.T, rm metricdata.ResourceMetrics, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not found", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestCounterAndHistogram(t *testing.T) {
	reader, provider := newTestMeter(t)
	meter := provider.Meter("test")
	ctx := context.Background()

	c, err := NewCounter(meter, "things_total", "Things", "{thing}")
	require.NoError(t, err)
	c.Inc(ctx, AttrRecordKind.String("products"))
	c.Add(ctx, 4, AttrRecordKind.String("products"))

	h, err := NewHistogram(meter, HistogramOpts{Name: "latency", Unit: "s", Boundaries: HTTPDurationBuckets})
	require.NoError(t, err)
	h.RecordDuration(ctx, 250*time.Millisecond)

	rm := collect(t, reader)
	assert.Equal(t, map[string]int64{"products": 5}, sumBy(t, rm, "things_total", AttrRecordKind))

	m, ok := findMetric(rm, "latency")
	require.True(t, ok)
	hist := m.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.25, hist.DataPoints[0].Sum, 1e-9)
}

func TestSyncMetrics_Record(t *testing.T) {
	reader, provider := newTestMeter(t)
	m, err := NewSyncMetrics(provider.Meter("sync"))
	require.NoError(t, err)
	ctx := context.Background()

	m.Record(ctx, SyncSample{Kind: "products", Policy: "newest", Items: 3, Applied: 2, Skipped: 1, Returned: 5, Duration: time.Millisecond})
	m.Record(ctx, SyncSample{Kind: "products", Policy: "newest", Items: 2, Failed: true})

	rm := collect(t, reader)
	assert.Equal(t,
		map[string]int64{SyncOutcomeSuccess: 1, SyncOutcomeError: 1},
		sumBy(t, rm, "sync_requests_total", AttrSyncOutcome))
	assert.Equal(t,
		map[string]int64{SyncResultApplied: 2, SyncResultSkipped: 1},
		sumBy(t, rm, "sync_items_total", AttrSyncResult))

	returned, ok := findMetric(rm, "sync_returned_records")
	require.True(t, ok)
	hist := returned.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count, "failed batches return nothing")
	assert.Equal(t, 5.0, hist.DataPoints[0].Sum)
}
