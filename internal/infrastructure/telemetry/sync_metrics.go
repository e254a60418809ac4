package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sync outcome and item result label values.
const (
	SyncOutcomeSuccess = "success"
	SyncOutcomeError   = "error"

	SyncResultApplied = "applied"
	SyncResultSkipped = "skipped"
)

// SyncSample describes one finished sync batch.
type SyncSample struct {
	Kind     string
	Policy   string
	Items    int
	Applied  int
	Skipped  int
	Returned int
	Duration time.Duration
	Failed   bool
}

// SyncMetrics holds the instruments for batch sync.
type SyncMetrics struct {
	requests *Counter
	items    *Counter
	duration *Histogram
	returned *Histogram
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	requests, err := NewCounter(meter, "sync_requests_total", "Sync batches by kind and outcome", "{batch}")
	if err != nil {
		return nil, err
	}
	items, err := NewCounter(meter, "sync_items_total", "Sync items by kind and whether they were written", "{record}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "sync_duration_seconds",
		Description: "Sync batch latency in seconds",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	returned, err := NewHistogram(meter, HistogramOpts{
		Name:        "sync_returned_records",
		Description: "Records returned to the client after a sync",
		Unit:        "{record}",
		Boundaries:  BatchSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{requests: requests, items: items, duration: duration, returned: returned}, nil
}

// Record records s.
func (m *SyncMetrics) Record(ctx context.Context, s SyncSample) {
	base := []attribute.KeyValue{AttrRecordKind.String(s.Kind), AttrSyncPolicy.String(s.Policy)}

	outcome := SyncOutcomeSuccess
	if s.Failed {
		outcome = SyncOutcomeError
	}
	m.requests.Inc(ctx, append(base, AttrSyncOutcome.String(outcome))...)
	m.duration.RecordDuration(ctx, s.Duration, base...)

	if s.Failed {
		return
	}
	if s.Applied > 0 {
		m.items.Add(ctx, int64(s.Applied), append(base, AttrSyncResult.String(SyncResultApplied))...)
	}
	if s.Skipped > 0 {
		m.items.Add(ctx, int64(s.Skipped), append(base, AttrSyncResult.String(SyncResultSkipped))...)
	}
	m.returned.Record(ctx, float64(s.Returned), base...)
}
