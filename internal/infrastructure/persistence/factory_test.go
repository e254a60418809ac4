package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/invoicing/backend/internal/domain/record"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/persistence/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := NewStore(ctx, &config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "memory", s.Driver())
	})

	t.Run("sqlite migrates on open", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "records.db"),
		}}
		s, err := NewStore(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		defer s.Close(ctx)

		colls, err := OpenCollections(ctx, s, "products", "payments")
		require.NoError(t, err)
		require.Len(t, colls, 2)

		_, err = colls["products"].InsertOne(ctx, record.Document{record.FieldID: "p1", record.FieldOwner: "u1"})
		require.NoError(t, err)
		docs, err := colls["payments"].Find(ctx, record.ByOwner("u1"))
		require.NoError(t, err)
		assert.Empty(t, docs, "collections do not share records")
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "couchdb"}}, zap.NewNop())
		assert.ErrorContains(t, err, "couchdb")
	})
}

type failingStore struct{ *memstore.Store }

func (failingStore) Open(context.Context, string) (record.Collection, error) {
	return nil, errors.New("not authorized")
}

func TestOpenCollections_Error(t *testing.T) {
	_, err := OpenCollections(context.Background(), failingStore{memstore.New()}, "associates")
	assert.ErrorContains(t, err, "open collection associates")
	assert.ErrorContains(t, err, "not authorized")
}
