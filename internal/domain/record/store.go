package record

import (
	"context"
	"slices"
)

// Filter selects records within one collection. Owner is always matched,
// the other constraints only when set.
type Filter struct {
	Owner string
	ID    string
	// IDs restricts the match to a set of external ids. A non-nil empty
	// slice matches nothing.
	IDs     []string
	Deleted *bool
}

// ByOwner selects every record of an account.
func ByOwner(owner string) Filter {
	return Filter{Owner: owner}
}

// ByKey selects the record with the merge key (id, owner).
func ByKey(id, owner string) Filter {
	return Filter{Owner: owner, ID: id}
}

// ActiveOnly restricts f to records that are not soft-deleted.
func (f Filter) ActiveOnly() Filter {
	notDeleted := false
	f.Deleted = &notDeleted
	return f
}

// Matches reports whether doc satisfies f.
func (f Filter) Matches(doc Document) bool {
	if doc.Owner() != f.Owner {
		return false
	}
	if f.ID != "" && doc.ID() != f.ID {
		return false
	}
	if f.IDs != nil && !slices.Contains(f.IDs, doc.ID()) {
		return false
	}
	if f.Deleted != nil && doc.IsDeleted() != *f.Deleted {
		return false
	}
	return true
}

// FindOptions shape the result of Find.
type FindOptions struct {
	ExcludeFields []string
}

// FindOption configures FindOptions.
type FindOption func(*FindOptions)

// WithoutFields strips the named fields from every returned record.
func WithoutFields(fields ...string) FindOption {
	return func(o *FindOptions) {
		o.ExcludeFields = append(o.ExcludeFields, fields...)
	}
}

// ApplyFindOptions folds opts into a FindOptions value.
func ApplyFindOptions(opts ...FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// InsertResult is returned by InsertOne.
type InsertResult struct {
	InsertedID string `json:"insertedId"`
}

// UpdateResult is returned by UpdateOne.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// UpsertOp is one item of a bulk upsert. Set is applied on both paths,
// SetOnInsert only when no record matches Filter.
type UpsertOp struct {
	Filter      Filter
	Set         Document
	SetOnInsert Document
}

// BulkResult summarizes a bulk upsert.
type BulkResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
}

// Collection is one named set of records.
type Collection interface {
	Find(ctx context.Context, filter Filter, opts ...FindOption) ([]Document, error)
	InsertOne(ctx context.Context, doc Document) (InsertResult, error)
	// UpdateOne sets the given fields on the first record matching filter.
	UpdateOne(ctx context.Context, filter Filter, set Document) (UpdateResult, error)
	// BulkUpsert applies every op in one batched call. Ops are independent;
	// a failure may leave earlier ops applied.
	BulkUpsert(ctx context.Context, ops []UpsertOp) (BulkResult, error)
}

// Store owns the connection to a backing store.
type Store interface {
	// Open returns the named collection, creating its indexes if needed.
	Open(ctx context.Context, name string) (Collection, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Driver() string
}

// InsertDocument builds the record an upsert inserts when nothing matches op.
func (op UpsertOp) InsertDocument() Document {
	doc := Document{
		FieldID:    op.Filter.ID,
		FieldOwner: op.Filter.Owner,
	}
	doc.Merge(op.Set)
	doc.Merge(op.SetOnInsert)
	return doc
}
