package persistence

import (
	"context"
	"fmt"

	"github.com/invoicing/backend/internal/domain/record"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/persistence/memstore"
	"github.com/invoicing/backend/internal/infrastructure/persistence/mongostore"
	"go.uber.org/zap"
)

// NewStore connects the record store selected by cfg.Store.Driver. The
// database options apply to the SQL drivers only.
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, dbOpts ...DatabaseOption) (record.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("Using the in-memory record store, data is lost on restart")
		return memstore.New(), nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
		defer cancel()
		return mongostore.Connect(connectCtx, mongostore.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		}, logger)

	case config.DriverPostgres:
		db, err := NewPostgres(&cfg.Database, dbOpts...)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to PostgreSQL",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.DBName),
		)
		return NewDocumentStore(db), nil

	case config.DriverSQLite:
		db, err := NewSQLite(cfg.Store.SQLitePath, dbOpts...)
		if err != nil {
			return nil, err
		}
		logger.Info("Opened SQLite database", zap.String("path", cfg.Store.SQLitePath))
		return NewDocumentStore(db, WithAutoMigrate()), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// OpenCollections opens every named collection, ensuring indexes on the way.
func OpenCollections(ctx context.Context, store record.Store, names ...string) (map[string]record.Collection, error) {
	out := make(map[string]record.Collection, len(names))
	for _, name := range names {
		c, err := store.Open(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("open collection %s: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}
