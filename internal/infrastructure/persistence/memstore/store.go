// Package memstore is an in-process record store. It is suitable for
// single-instance development and tests.
package memstore

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/record"
)

// Store holds named in-memory collections.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

// New creates an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Open returns the named collection, creating it on first use.
func (s *Store) Open(_ context.Context, name string) (record.Collection, error) {
	return s.Collection(name), nil
}

// Collection returns the named collection with its concrete type.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{}
		s.collections[name] = c
	}
	return c
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

// Driver returns "memory".
func (s *Store) Driver() string { return "memory" }

// Collection is a mutex-guarded slice of documents in insertion order.
type Collection struct {
	mu   sync.RWMutex
	docs []record.Document
}

// Find returns copies of the matching documents.
func (c *Collection) Find(ctx context.Context, filter record.Filter, opts ...record.FindOption) ([]record.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := record.ApplyFindOptions(opts...)

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]record.Document, 0)
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			out = append(out, doc.Without(o.ExcludeFields...))
		}
	}
	return out, nil
}

// InsertOne appends a copy of doc under a new handle.
func (c *Collection) InsertOne(ctx context.Context, doc record.Document) (record.InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return record.InsertResult{}, err
	}
	stored := doc.Clone()
	handle := uuid.NewString()
	stored[record.FieldHandle] = handle

	c.mu.Lock()
	c.docs = append(c.docs, stored)
	c.mu.Unlock()

	return record.InsertResult{InsertedID: handle}, nil
}

// UpdateOne sets fields on the first matching document.
func (c *Collection) UpdateOne(ctx context.Context, filter record.Filter, set record.Document) (record.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return record.UpdateResult{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range c.docs {
		if filter.Matches(doc) {
			return record.UpdateResult{MatchedCount: 1, ModifiedCount: apply(doc, set)}, nil
		}
	}
	return record.UpdateResult{}, nil
}

// BulkUpsert applies every op under one lock.
func (c *Collection) BulkUpsert(ctx context.Context, ops []record.UpsertOp) (record.BulkResult, error) {
	if err := ctx.Err(); err != nil {
		return record.BulkResult{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var res record.BulkResult
	for _, op := range ops {
		if doc := c.first(op.Filter); doc != nil {
			res.MatchedCount++
			res.ModifiedCount += apply(doc, op.Set)
			continue
		}
		inserted := op.InsertDocument()
		inserted[record.FieldHandle] = uuid.NewString()
		c.docs = append(c.docs, inserted)
		res.UpsertedCount++
	}
	return res, nil
}

// Len returns the number of stored documents, deleted ones included.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *Collection) first(filter record.Filter) record.Document {
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			return doc
		}
	}
	return nil
}

// apply merges set into doc and reports 1 if any field changed.
func apply(doc, set record.Document) int64 {
	var modified int64
	for k, v := range set {
		if old, ok := doc[k]; !ok || !reflect.DeepEqual(old, v) {
			modified = 1
		}
	}
	doc.Merge(set)
	return modified
}

var _ record.Store = (*Store)(nil)
var _ record.Collection = (*Collection)(nil)
