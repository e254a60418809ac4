package records

import (
	"context"
	"encoding/json"

	"github.com/invoicing/backend/internal/domain/record"
	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// EntityService implements create, list, update and soft delete for one kind.
type EntityService struct {
	kind   record.Kind
	coll   record.Collection
	clock  Clock
	logger *zap.Logger
}

// NewEntityService creates an EntityService over coll.
func NewEntityService(kind record.Kind, coll record.Collection, opts ...Option) *EntityService {
	o := buildOptions(opts)
	return &EntityService{
		kind:   kind,
		coll:   coll,
		clock:  o.clock,
		logger: o.logger.With(zap.String("kind", kind.Name)),
	}
}

// Kind returns the kind this service operates on.
func (s *EntityService) Kind() record.Kind {
	return s.kind
}

// Create inserts a new record for owner and returns its storage handle.
func (s *EntityService) Create(ctx context.Context, owner string, data json.RawMessage) (record.InsertResult, error) {
	if owner == "" || record.IsAbsent(data) {
		return record.InsertResult{}, shared.ErrMissingData
	}
	id, err := record.PayloadID(data)
	if err != nil {
		return record.InsertResult{}, err
	}
	fields, err := s.kind.Extract(data)
	if err != nil {
		return record.InsertResult{}, err
	}

	existing, err := s.coll.Find(ctx, record.ByKey(id, owner))
	if err != nil {
		return record.InsertResult{}, s.storageError("find "+s.kind.Name, err)
	}
	if len(existing) > 0 {
		return record.InsertResult{}, shared.ErrAlreadyExists
	}

	now := s.clock()
	doc := fields
	doc[record.FieldID] = id
	doc[record.FieldOwner] = owner
	doc[record.FieldSynced] = record.NotSynced
	doc[record.FieldCreatedAt] = now
	doc[record.FieldUpdatedAt] = now
	doc[record.FieldDeleted] = record.Active

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return record.InsertResult{}, s.storageError("insert "+s.kind.Name, err)
	}

	s.logger.Debug("Record created",
		zap.String("id", id),
		zap.String("owner", owner),
		zap.String("handle", res.InsertedID),
	)
	return res, nil
}

// List returns every non-deleted record of owner.
func (s *EntityService) List(ctx context.Context, owner string) ([]record.Document, error) {
	if owner == "" {
		return nil, shared.ErrMissingOwner
	}
	docs, err := s.coll.Find(ctx, record.ByOwner(owner).ActiveOnly())
	if err != nil {
		return nil, s.storageError("list "+s.kind.Name, err)
	}
	if docs == nil {
		docs = []record.Document{}
	}
	return docs, nil
}

// Update replaces the domain fields of the record (id, owner).
func (s *EntityService) Update(ctx context.Context, id, owner string, data json.RawMessage) error {
	if owner == "" || record.IsAbsent(data) {
		return shared.ErrMissingData
	}
	if id == "" {
		return shared.ErrMissingID
	}
	fields, err := s.kind.Extract(data)
	if err != nil {
		return err
	}

	set := fields
	set[record.FieldUpdatedAt] = s.clock()
	set[record.FieldSynced] = record.NotSynced

	return s.updateOne(ctx, "update", id, owner, set)
}

// SoftDelete flags the record (id, owner) as deleted. The record stays stored.
func (s *EntityService) SoftDelete(ctx context.Context, id, owner string) error {
	if owner == "" {
		return shared.ErrMissingOwner
	}
	if id == "" {
		return shared.ErrMissingID
	}

	set := record.Document{
		record.FieldDeleted:   record.Deleted,
		record.FieldUpdatedAt: s.clock(),
		record.FieldSynced:    record.NotSynced,
	}
	return s.updateOne(ctx, "delete", id, owner, set)
}

func (s *EntityService) updateOne(ctx context.Context, op, id, owner string, set record.Document) error {
	res, err := s.coll.UpdateOne(ctx, record.ByKey(id, owner), set)
	if err != nil {
		return s.storageError(op+" "+s.kind.Name, err)
	}
	// A wrong owner and a missing id look the same to the caller.
	if res.MatchedCount == 0 {
		return shared.ErrNotFoundOrNoPermission
	}

	s.logger.Debug("Record "+op+"d",
		zap.String("id", id),
		zap.String("owner", owner),
		zap.Int64("modified", res.ModifiedCount),
	)
	return nil
}

func (s *EntityService) storageError(op string, err error) error {
	s.logger.Error("Record store failure", zap.String("op", op), zap.Error(err))
	return shared.NewStorageError(op, err)
}
