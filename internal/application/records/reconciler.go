package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/domain/record"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Reconciler merges a client's offline snapshots of one kind into the store
// and hands back the account's full record set.
type Reconciler struct {
	kind     record.Kind
	coll     record.Collection
	clock    Clock
	policy   MergePolicy
	logger   *zap.Logger
	recorder SyncRecorder
}

// NewReconciler creates a Reconciler over coll.
func NewReconciler(kind record.Kind, coll record.Collection, opts ...Option) *Reconciler {
	o := buildOptions(opts)
	return &Reconciler{
		kind:     kind,
		coll:     coll,
		clock:    o.clock,
		policy:   o.policy,
		logger:   o.logger.With(zap.String("kind", kind.Name)),
		recorder: o.recorder,
	}
}

// Kind returns the kind this reconciler operates on.
func (r *Reconciler) Kind() record.Kind {
	return r.kind
}

// Policy returns the merge policy in effect.
func (r *Reconciler) Policy() MergePolicy {
	return r.policy
}

type snapshot struct {
	op        record.UpsertOp
	updatedAt time.Time
}

// Sync upserts every snapshot in batch under (id, owner) and returns all of
// owner's records, deleted ones included, without the owner field.
//
// The batch is validated as a whole before anything is written. Each upsert
// stamps synced=0, takes updatedAt from the client (or the server clock) and
// sets createdAt only when the record is inserted.
func (r *Reconciler) Sync(ctx context.Context, owner string, batch json.RawMessage) ([]record.Document, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "records", "sync",
		telemetry.WithAttribute(telemetry.SpanAttrRecordKind, r.kind.Name),
		telemetry.WithAttribute(telemetry.SpanAttrSyncPolicy, string(r.policy)),
	)
	defer span.End()

	outcome := SyncOutcome{Kind: r.kind.Name, Policy: r.policy}
	defer func() {
		outcome.Duration = time.Since(start)
		r.recorder.RecordSync(ctx, outcome)
	}()
	fail := func(err error) ([]record.Document, error) {
		outcome.Err = err
		telemetry.RecordError(span, err)
		return nil, err
	}

	if owner == "" {
		return fail(shared.ErrInvalidBatch)
	}
	items, err := record.SplitBatch(batch)
	if err != nil {
		return fail(err)
	}
	outcome.Items = len(items)
	telemetry.SetAttribute(span, telemetry.SpanAttrSyncItems, len(items))

	snapshots, err := r.prepare(owner, items)
	if err != nil {
		return fail(err)
	}

	if r.policy == PolicyNewest {
		snapshots, err = r.dropStale(ctx, owner, snapshots)
		if err != nil {
			return fail(err)
		}
	}
	outcome.Skipped = len(items) - len(snapshots)

	if len(snapshots) > 0 {
		ops := make([]record.UpsertOp, len(snapshots))
		for i := range snapshots {
			ops[i] = snapshots[i].op
		}
		res, err := r.coll.BulkUpsert(ctx, ops)
		if err != nil {
			return fail(r.storageError("bulk upsert", err))
		}
		outcome.Applied = len(ops)
		r.logger.Debug("Sync batch applied",
			zap.String("owner", owner),
			zap.Int("ops", len(ops)),
			zap.Int64("matched", res.MatchedCount),
			zap.Int64("upserted", res.UpsertedCount),
		)
	}

	fresh, err := r.coll.Find(ctx, record.ByOwner(owner), record.WithoutFields(record.FieldOwner))
	if err != nil {
		return fail(r.storageError("read back", err))
	}
	if fresh == nil {
		fresh = []record.Document{}
	}
	outcome.Returned = len(fresh)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSyncApplied, outcome.Applied,
		telemetry.SpanAttrSyncSkipped, outcome.Skipped,
		telemetry.SpanAttrReturned, len(fresh),
	)
	return fresh, nil
}

// prepare validates every item and builds its upsert. Any invalid item
// rejects the whole batch.
func (r *Reconciler) prepare(owner string, items []json.RawMessage) ([]snapshot, error) {
	now := r.clock()
	out := make([]snapshot, 0, len(items))
	for i, item := range items {
		env, err := record.DecodeEnvelope(item)
		if err != nil {
			return nil, itemError(i, err)
		}
		fields, err := r.kind.Extract(item)
		if err != nil {
			return nil, itemError(i, err)
		}

		updatedAt := now
		if env.UpdatedAt != nil {
			updatedAt = env.UpdatedAt.Time
		}
		createdAt := now
		if env.CreatedAt != nil {
			createdAt = env.CreatedAt.Time
		}
		deleted := record.Active
		if env.Deleted != nil && env.Deleted.Bool() {
			deleted = record.Deleted
		}

		set := fields
		set[record.FieldID] = env.ID
		set[record.FieldOwner] = owner
		set[record.FieldUpdatedAt] = updatedAt
		set[record.FieldDeleted] = deleted
		set[record.FieldSynced] = record.NotSynced

		out = append(out, snapshot{
			op: record.UpsertOp{
				Filter:      record.ByKey(env.ID, owner),
				Set:         set,
				SetOnInsert: record.Document{record.FieldCreatedAt: createdAt},
			},
			updatedAt: updatedAt,
		})
	}
	return out, nil
}

// dropStale removes snapshots older than the stored record. Equal timestamps
// are applied.
func (r *Reconciler) dropStale(ctx context.Context, owner string, snapshots []snapshot) ([]snapshot, error) {
	if len(snapshots) == 0 {
		return snapshots, nil
	}
	ids := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		ids = append(ids, s.op.Filter.ID)
	}
	stored, err := r.coll.Find(ctx, record.Filter{Owner: owner, IDs: ids})
	if err != nil {
		return nil, r.storageError("read stored", err)
	}
	latest := make(map[string]time.Time, len(stored))
	for _, doc := range stored {
		if ts, ok := doc.UpdatedAt(); ok {
			latest[doc.ID()] = ts
		}
	}

	kept := snapshots[:0]
	for _, s := range snapshots {
		if ts, ok := latest[s.op.Filter.ID]; ok && s.updatedAt.Before(ts) {
			r.logger.Debug("Skipping stale snapshot",
				zap.String("id", s.op.Filter.ID),
				zap.Time("incoming", s.updatedAt),
				zap.Time("stored", ts),
			)
			continue
		}
		kept = append(kept, s)
	}
	return kept, nil
}

func (r *Reconciler) storageError(op string, err error) error {
	r.logger.Error("Sync store failure", zap.String("op", op), zap.Error(err))
	return shared.NewStorageError(fmt.Sprintf("sync %s: %s", r.kind.Collection, op), err)
}

func itemError(i int, err error) error {
	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		msg = de.Message
	}
	return shared.NewValidationError("item %d: %s", i, msg)
}
