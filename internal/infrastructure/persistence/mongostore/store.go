// Package mongostore implements record.Store on MongoDB. Records keep the
// shape clients send; the native _id is the record handle.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/domain/record"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

// Config holds connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Store is a record.Store backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", cfg.Database))
	return &Store{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger,
	}, nil
}

// Open returns the named collection and ensures its (userEmail, id) index.
func (s *Store) Open(ctx context.Context, name string) (record.Collection, error) {
	coll := s.db.Collection(name)
	idx := mongo.IndexModel{
		Keys: bson.D{
			{Key: record.FieldOwner, Value: 1},
			{Key: record.FieldID, Value: 1},
		},
		Options: options.Index().SetName("userEmail_id"),
	}
	if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("create index on %s: %w", name, err)
	}
	s.logger.Debug("Collection ready", zap.String("collection", name))
	return &Collection{coll: coll}, nil
}

// Ping checks the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Driver returns "mongo".
func (s *Store) Driver() string { return "mongo" }

// Collection wraps one MongoDB collection.
type Collection struct {
	coll *mongo.Collection
}

// Find returns the matching records in _id order.
func (c *Collection) Find(ctx context.Context, filter record.Filter, opts ...record.FindOption) ([]record.Document, error) {
	q, ok := FilterDocument(filter)
	if !ok {
		return []record.Document{}, nil
	}

	findOpts := options.Find().SetSort(bson.D{{Key: record.FieldHandle, Value: 1}})
	if p := Projection(record.ApplyFindOptions(opts...)); p != nil {
		findOpts.SetProjection(p)
	}

	cur, err := c.coll.Find(ctx, q, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", c.coll.Name(), err)
	}

	out := make([]record.Document, 0, len(raw))
	for _, m := range raw {
		out = append(out, FromBSON(m))
	}
	return out, nil
}

// InsertOne inserts doc and returns its generated _id.
func (c *Collection) InsertOne(ctx context.Context, doc record.Document) (record.InsertResult, error) {
	res, err := c.coll.InsertOne(ctx, writable(doc))
	if err != nil {
		return record.InsertResult{}, fmt.Errorf("insert %s: %w", c.coll.Name(), err)
	}
	return record.InsertResult{InsertedID: handleString(res.InsertedID)}, nil
}

// UpdateOne applies $set to the first matching record.
func (c *Collection) UpdateOne(ctx context.Context, filter record.Filter, set record.Document) (record.UpdateResult, error) {
	q, ok := FilterDocument(filter)
	if !ok {
		return record.UpdateResult{}, nil
	}
	res, err := c.coll.UpdateOne(ctx, q, bson.M{"$set": writable(set)})
	if err != nil {
		return record.UpdateResult{}, fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	return record.UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

// BulkUpsert sends every op as one ordered bulkWrite of upserting updates.
func (c *Collection) BulkUpsert(ctx context.Context, ops []record.UpsertOp) (record.BulkResult, error) {
	if len(ops) == 0 {
		return record.BulkResult{}, nil
	}
	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		q, ok := FilterDocument(op.Filter)
		if !ok {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(q).
			SetUpdate(UpsertUpdate(op)).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return record.BulkResult{}, nil
	}

	res, err := c.coll.BulkWrite(ctx, models)
	if err != nil {
		return record.BulkResult{}, fmt.Errorf("bulk write %s: %w", c.coll.Name(), err)
	}
	return record.BulkResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
	}, nil
}

var _ record.Store = (*Store)(nil)
var _ record.Collection = (*Collection)(nil)
