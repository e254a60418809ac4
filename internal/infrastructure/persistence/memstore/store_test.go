package memstore

import (
	"context"
	"testing"

	"github.com/invoicing/backend/internal/domain/record"
	"github.com/invoicing/backend/internal/infrastructure/persistence/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) record.Store {
		return New()
	})
}

func TestCollection_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := New().Collection("products")

	doc := record.Document{record.FieldID: "p1", record.FieldOwner: "u1", "productName": "Widget"}
	_, err := c.InsertOne(ctx, doc)
	require.NoError(t, err)

	doc["productName"] = "mutated after insert"
	docs, err := c.Find(ctx, record.ByOwner("u1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Widget", docs[0]["productName"])

	docs[0]["productName"] = "mutated after find"
	again, err := c.Find(ctx, record.ByOwner("u1"))
	require.NoError(t, err)
	assert.Equal(t, "Widget", again[0]["productName"])
}

func TestCollection_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New().Collection("products")
	_, err := c.Find(ctx, record.ByOwner("u1"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.BulkUpsert(ctx, []record.UpsertOp{{Filter: record.ByKey("p1", "u1")}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.Len())
}

func TestStore_SameCollectionByName(t *testing.T) {
	s := New()
	assert.Same(t, s.Collection("a"), s.Collection("a"))
	assert.NotSame(t, s.Collection("a"), s.Collection("b"))
}
