package records

import (
	"context"
	"time"

	"github.com/invoicing/backend/internal/domain/record"
	"github.com/stretchr/testify/mock"
)

// MockCollection is a mock implementation of record.Collection
type MockCollection struct {
	mock.Mock
}

func (m *MockCollection) Find(ctx context.Context, filter record.Filter, opts ...record.FindOption) ([]record.Document, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]record.Document), args.Error(1)
}

func (m *MockCollection) InsertOne(ctx context.Context, doc record.Document) (record.InsertResult, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(record.InsertResult), args.Error(1)
}

func (m *MockCollection) UpdateOne(ctx context.Context, filter record.Filter, set record.Document) (record.UpdateResult, error) {
	args := m.Called(ctx, filter, set)
	return args.Get(0).(record.UpdateResult), args.Error(1)
}

func (m *MockCollection) BulkUpsert(ctx context.Context, ops []record.UpsertOp) (record.BulkResult, error) {
	args := m.Called(ctx, ops)
	return args.Get(0).(record.BulkResult), args.Error(1)
}

// MockRecorder captures sync outcomes
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordSync(ctx context.Context, outcome SyncOutcome) {
	m.Called(ctx, outcome)
}

// fixedClock returns a clock that always reports t.
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// steppingClock returns a clock that advances by step on every call.
func steppingClock(start time.Time, step time.Duration) Clock {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}
