// Package records implements the generic per-kind record operations: single
// record CRUD and batch synchronization of offline client snapshots.
package records

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MergePolicy decides what a sync does when the incoming snapshot is older
// than the stored record.
type MergePolicy string

const (
	// PolicyLastApplied always applies the incoming snapshot. The last merge
	// to land wins, whichever side was edited more recently.
	PolicyLastApplied MergePolicy = "last_applied"
	// PolicyNewest skips incoming snapshots whose updatedAt is older than the
	// stored one.
	PolicyNewest MergePolicy = "newest"
)

// ParseMergePolicy parses a configured policy name. Empty means last_applied.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyLastApplied:
		return PolicyLastApplied, nil
	case PolicyNewest:
		return PolicyNewest, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q (want %s or %s)", s, PolicyLastApplied, PolicyNewest)
	}
}

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the server clock in UTC, truncated to milliseconds so that
// every store round-trips it unchanged.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type options struct {
	clock    Clock
	logger   *zap.Logger
	policy   MergePolicy
	recorder SyncRecorder
}

// Option configures an EntityService or a Reconciler.
type Option func(*options)

// WithClock overrides the server clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMergePolicy sets the sync merge policy.
func WithMergePolicy(p MergePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithRecorder sets the sync metrics recorder.
func WithRecorder(r SyncRecorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:    SystemClock,
		logger:   zap.NewNop(),
		policy:   PolicyLastApplied,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
