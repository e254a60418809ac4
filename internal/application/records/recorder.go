package records

import (
	"context"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/telemetry"
)

// SyncOutcome summarizes one sync call for metrics.
type SyncOutcome struct {
	Kind     string
	Policy   MergePolicy
	Items    int
	Applied  int
	Skipped  int
	Returned int
	Duration time.Duration
	Err      error
}

// SyncRecorder receives one outcome per sync call.
type SyncRecorder interface {
	RecordSync(ctx context.Context, outcome SyncOutcome)
}

type nopRecorder struct{}

func (nopRecorder) RecordSync(context.Context, SyncOutcome) {}

// MetricsRecorder reports sync outcomes to the OpenTelemetry sync
// instruments. A nil m records nothing.
func MetricsRecorder(m *telemetry.SyncMetrics) SyncRecorder {
	if m == nil {
		return nopRecorder{}
	}
	return metricsRecorder{metrics: m}
}

type metricsRecorder struct {
	metrics *telemetry.SyncMetrics
}

func (r metricsRecorder) RecordSync(ctx context.Context, o SyncOutcome) {
	r.metrics.Record(ctx, telemetry.SyncSample{
		Kind:     o.Kind,
		Policy:   string(o.Policy),
		Items:    o.Items,
		Applied:  o.Applied,
		Skipped:  o.Skipped,
		Returned: o.Returned,
		Duration: o.Duration,
		Failed:   o.Err != nil,
	})
}
