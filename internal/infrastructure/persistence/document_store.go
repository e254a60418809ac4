package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/record"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentModel is one record row. The full record lives in Body; the
// columns beside it duplicate the fields every query filters on.
type DocumentModel struct {
	ID         string         `gorm:"type:varchar(36);primaryKey"`
	Collection string         `gorm:"type:varchar(64);not null;index:idx_documents_key,priority:1"`
	Owner      string         `gorm:"type:varchar(320);not null;index:idx_documents_key,priority:2"`
	RecordID   string         `gorm:"type:varchar(255);not null;index:idx_documents_key,priority:3"`
	Deleted    bool           `gorm:"not null;default:false"`
	Body       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null;index"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

func newDocumentModel(collection string, doc record.Document) (*DocumentModel, error) {
	body, err := encodeBody(doc)
	if err != nil {
		return nil, err
	}
	return &DocumentModel{
		ID:         uuid.NewString(),
		Collection: collection,
		Owner:      doc.Owner(),
		RecordID:   doc.ID(),
		Deleted:    doc.IsDeleted(),
		Body:       body,
	}, nil
}

// toDocument decodes the body and exposes the row id as the record handle.
func (m *DocumentModel) toDocument() (record.Document, error) {
	doc, err := record.DecodeDocument(m.Body)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", m.ID, err)
	}
	doc[record.FieldHandle] = m.ID
	return doc, nil
}

// merge applies set to the row and reports whether the body changed.
func (m *DocumentModel) merge(set record.Document) (bool, error) {
	doc, err := m.toDocument()
	if err != nil {
		return false, err
	}
	// jsonb does not keep the stored text, so compare canonical encodings.
	before, err := encodeBody(doc)
	if err != nil {
		return false, err
	}
	doc.Merge(set)
	body, err := encodeBody(doc)
	if err != nil {
		return false, err
	}
	changed := !bytes.Equal(before, body)
	m.Body = body
	m.Owner = doc.Owner()
	m.RecordID = doc.ID()
	m.Deleted = doc.IsDeleted()
	return changed, nil
}

func encodeBody(doc record.Document) (datatypes.JSON, error) {
	body, err := json.Marshal(doc.Without(record.FieldHandle))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return body, nil
}

// DocumentStore is a record.Store over a single GORM table. Collections are
// a column, so opening one needs no DDL.
type DocumentStore struct {
	db          *Database
	autoMigrate bool
}

// DocumentStoreOption configures a DocumentStore.
type DocumentStoreOption func(*DocumentStore)

// WithAutoMigrate creates the documents table with GORM on first Open
// instead of relying on the SQL migrations.
func WithAutoMigrate() DocumentStoreOption {
	return func(s *DocumentStore) {
		s.autoMigrate = true
	}
}

// NewDocumentStore creates a DocumentStore on db.
func NewDocumentStore(db *Database, opts ...DocumentStoreOption) *DocumentStore {
	s := &DocumentStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the documents table.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	if err := s.db.DB.WithContext(ctx).AutoMigrate(&DocumentModel{}); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

// Open returns the named collection.
func (s *DocumentStore) Open(ctx context.Context, name string) (record.Collection, error) {
	if s.autoMigrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return &DocumentCollection{db: s.db.DB, name: name}, nil
}

// Ping checks the connection.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the connection pool.
func (s *DocumentStore) Close(context.Context) error {
	return s.db.Close()
}

// Driver returns the SQL dialect.
func (s *DocumentStore) Driver() string {
	return s.db.Driver()
}

// DocumentCollection is the slice of the documents table with one
// collection value.
type DocumentCollection struct {
	db   *gorm.DB
	name string
}

// scope builds the WHERE clause for filter. It reports false when the
// filter cannot match anything.
func (c *DocumentCollection) scope(tx *gorm.DB, filter record.Filter) (*gorm.DB, bool) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return tx, false
	}
	q := tx.Where("collection = ? AND owner = ?", c.name, filter.Owner)
	if filter.ID != "" {
		q = q.Where("record_id = ?", filter.ID)
	}
	if filter.IDs != nil {
		q = q.Where("record_id IN ?", filter.IDs)
	}
	if filter.Deleted != nil {
		q = q.Where("deleted = ?", *filter.Deleted)
	}
	return q, true
}

// Find returns the matching records in insertion order.
func (c *DocumentCollection) Find(ctx context.Context, filter record.Filter, opts ...record.FindOption) ([]record.Document, error) {
	q, ok := c.scope(c.db.WithContext(ctx), filter)
	if !ok {
		return []record.Document{}, nil
	}
	var rows []DocumentModel
	if err := q.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}

	o := record.ApplyFindOptions(opts...)
	out := make([]record.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}
		for _, f := range o.ExcludeFields {
			delete(doc, f)
		}
		out = append(out, doc)
	}
	return out, nil
}

// InsertOne stores doc under a new row id.
func (c *DocumentCollection) InsertOne(ctx context.Context, doc record.Document) (record.InsertResult, error) {
	row, err := newDocumentModel(c.name, doc)
	if err != nil {
		return record.InsertResult{}, err
	}
	if err := c.db.WithContext(ctx).Create(row).Error; err != nil {
		return record.InsertResult{}, fmt.Errorf("insert %s: %w", c.name, err)
	}
	return record.InsertResult{InsertedID: row.ID}, nil
}

// UpdateOne merges set into the first matching record.
func (c *DocumentCollection) UpdateOne(ctx context.Context, filter record.Filter, set record.Document) (record.UpdateResult, error) {
	var res record.UpdateResult
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := c.first(tx, filter)
		if err != nil || row == nil {
			return err
		}
		res.MatchedCount = 1
		changed, err := c.save(tx, row, set)
		if changed {
			res.ModifiedCount = 1
		}
		return err
	})
	if err != nil {
		return record.UpdateResult{}, fmt.Errorf("update %s: %w", c.name, err)
	}
	return res, nil
}

// BulkUpsert applies every op inside one transaction.
func (c *DocumentCollection) BulkUpsert(ctx context.Context, ops []record.UpsertOp) (record.BulkResult, error) {
	var res record.BulkResult
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			row, err := c.first(tx, op.Filter)
			if err != nil {
				return err
			}
			if row != nil {
				res.MatchedCount++
				changed, err := c.save(tx, row, op.Set)
				if err != nil {
					return err
				}
				if changed {
					res.ModifiedCount++
				}
				continue
			}

			inserted, err := newDocumentModel(c.name, op.InsertDocument())
			if err != nil {
				return err
			}
			if err := tx.Create(inserted).Error; err != nil {
				return err
			}
			res.UpsertedCount++
		}
		return nil
	})
	if err != nil {
		return record.BulkResult{}, fmt.Errorf("bulk upsert %s: %w", c.name, err)
	}
	return res, nil
}

func (c *DocumentCollection) first(tx *gorm.DB, filter record.Filter) (*DocumentModel, error) {
	q, ok := c.scope(tx, filter)
	if !ok {
		return nil, nil
	}
	var row DocumentModel
	err := q.Order("created_at ASC").Order("id ASC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *DocumentCollection) save(tx *gorm.DB, row *DocumentModel, set record.Document) (bool, error) {
	changed, err := row.merge(set)
	if err != nil || !changed {
		return changed, err
	}
	err = tx.Model(&DocumentModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"owner":      row.Owner,
			"record_id":  row.RecordID,
			"deleted":    row.Deleted,
			"body":       row.Body,
			"updated_at": time.Now().UTC(),
		}).Error
	return true, err
}

var _ record.Store = (*DocumentStore)(nil)
var _ record.Collection = (*DocumentCollection)(nil)
