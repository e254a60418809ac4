// Package storetest is a conformance suite for record.Store implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a record.Store. makeStore must return a usable store; each
// subtest opens its own uniquely named collection so stores may be shared.
func Run(t *testing.T, makeStore func(t *testing.T) record.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	open := func(t *testing.T) record.Collection {
		t.Helper()
		c, err := s.Open(ctx, "storetest_"+uuid.NewString()[:8])
		require.NoError(t, err)
		return c
	}

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
		assert.NotEmpty(t, s.Driver())
	})

	t.Run("insert and find", func(t *testing.T) {
		c := open(t)
		res, err := c.InsertOne(ctx, record.Document{
			record.FieldID:        "p1",
			record.FieldOwner:     "u1",
			record.FieldCreatedAt: now,
			record.FieldDeleted:   record.Active,
			"productName":         "Widget",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.InsertedID)

		docs, err := c.Find(ctx, record.ByOwner("u1"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "p1", docs[0].ID())
		assert.Equal(t, "u1", docs[0].Owner())
		assert.Equal(t, "Widget", docs[0]["productName"])
		assert.Equal(t, res.InsertedID, docs[0][record.FieldHandle])
		created, ok := docs[0].CreatedAt()
		require.True(t, ok)
		assert.True(t, now.Equal(created))
	})

	t.Run("find scopes by owner and id", func(t *testing.T) {
		c := open(t)
		for _, d := range []record.Document{
			{record.FieldID: "p1", record.FieldOwner: "u1", record.FieldDeleted: record.Active},
			{record.FieldID: "p2", record.FieldOwner: "u1", record.FieldDeleted: record.Deleted},
			{record.FieldID: "p1", record.FieldOwner: "u2", record.FieldDeleted: record.Active},
		} {
			_, err := c.InsertOne(ctx, d)
			require.NoError(t, err)
		}

		all, err := c.Find(ctx, record.ByOwner("u1"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p1", "p2"}, ids(all))

		active, err := c.Find(ctx, record.ByOwner("u1").ActiveOnly())
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, ids(active))

		one, err := c.Find(ctx, record.ByKey("p1", "u2"))
		require.NoError(t, err)
		require.Len(t, one, 1)
		assert.Equal(t, "u2", one[0].Owner())

		some, err := c.Find(ctx, record.Filter{Owner: "u1", IDs: []string{"p2", "p9"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"p2"}, ids(some))

		none, err := c.Find(ctx, record.Filter{Owner: "u1", IDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)

		missing, err := c.Find(ctx, record.ByOwner("nobody"))
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("find strips excluded fields", func(t *testing.T) {
		c := open(t)
		_, err := c.InsertOne(ctx, record.Document{record.FieldID: "p1", record.FieldOwner: "u1", "productName": "Widget"})
		require.NoError(t, err)

		docs, err := c.Find(ctx, record.ByOwner("u1"), record.WithoutFields(record.FieldOwner))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.NotContains(t, docs[0], record.FieldOwner)
		assert.Equal(t, "Widget", docs[0]["productName"])
	})

	t.Run("update one", func(t *testing.T) {
		c := open(t)
		_, err := c.InsertOne(ctx, record.Document{record.FieldID: "p1", record.FieldOwner: "u1", "productName": "Widget", "unit": "pcs"})
		require.NoError(t, err)

		res, err := c.UpdateOne(ctx, record.ByKey("p1", "u1"), record.Document{"productName": "Gadget", record.FieldUpdatedAt: now})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.MatchedCount)
		assert.Equal(t, int64(1), res.ModifiedCount)

		docs, err := c.Find(ctx, record.ByKey("p1", "u1"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Gadget", docs[0]["productName"])
		assert.Equal(t, "pcs", docs[0]["unit"])
		updated, ok := docs[0].UpdatedAt()
		require.True(t, ok)
		assert.True(t, now.Equal(updated))

		res, err = c.UpdateOne(ctx, record.ByKey("p1", "u2"), record.Document{"productName": "Stolen"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.MatchedCount)
	})

	t.Run("bulk upsert inserts and updates", func(t *testing.T) {
		c := open(t)
		created := now.Add(-time.Hour)
		_, err := c.BulkUpsert(ctx, []record.UpsertOp{{
			Filter:      record.ByKey("p1", "u1"),
			Set:         record.Document{record.FieldID: "p1", record.FieldOwner: "u1", "productName": "Widget"},
			SetOnInsert: record.Document{record.FieldCreatedAt: created},
		}})
		require.NoError(t, err)

		res, err := c.BulkUpsert(ctx, []record.UpsertOp{
			{
				Filter:      record.ByKey("p1", "u1"),
				Set:         record.Document{record.FieldID: "p1", record.FieldOwner: "u1", "productName": "Widget-v2"},
				SetOnInsert: record.Document{record.FieldCreatedAt: now},
			},
			{
				Filter:      record.ByKey("p2", "u1"),
				Set:         record.Document{record.FieldID: "p2", record.FieldOwner: "u1", "productName": "Gizmo"},
				SetOnInsert: record.Document{record.FieldCreatedAt: now},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.MatchedCount)
		assert.Equal(t, int64(1), res.UpsertedCount)

		docs, err := c.Find(ctx, record.ByOwner("u1"))
		require.NoError(t, err)
		require.Len(t, docs, 2)
		byID := index(docs)

		assert.Equal(t, "Widget-v2", byID["p1"]["productName"])
		got, ok := byID["p1"].CreatedAt()
		require.True(t, ok)
		assert.True(t, created.Equal(got), "createdAt must survive the update path")

		assert.Equal(t, "Gizmo", byID["p2"]["productName"])
		got, ok = byID["p2"].CreatedAt()
		require.True(t, ok)
		assert.True(t, now.Equal(got))
	})

	t.Run("bulk upsert keeps owners apart", func(t *testing.T) {
		c := open(t)
		for _, owner := range []string{"u1", "u2"} {
			_, err := c.BulkUpsert(ctx, []record.UpsertOp{{
				Filter:      record.ByKey("shared-id", owner),
				Set:         record.Document{record.FieldID: "shared-id", record.FieldOwner: owner, "note": owner},
				SetOnInsert: record.Document{record.FieldCreatedAt: now},
			}})
			require.NoError(t, err)
		}

		for _, owner := range []string{"u1", "u2"} {
			docs, err := c.Find(ctx, record.ByOwner(owner))
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, owner, docs[0]["note"])
		}
	})

	t.Run("duplicate keys do not block open", func(t *testing.T) {
		name := "storetest_" + uuid.NewString()[:8]
		c, err := s.Open(ctx, name)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			_, err := c.InsertOne(ctx, record.Document{
				record.FieldID:        "p1",
				record.FieldOwner:     "u1",
				record.FieldCreatedAt: now.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}

		c, err = s.Open(ctx, name)
		require.NoError(t, err)

		docs, err := c.Find(ctx, record.ByKey("p1", "u1"))
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		res, err := c.UpdateOne(ctx, record.ByKey("p1", "u1"), record.Document{"note": "first"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.MatchedCount)
	})

	t.Run("decimals round trip exactly", func(t *testing.T) {
		c := open(t)
		amount, err := record.ParseNumber("12345678901234567.89")
		require.NoError(t, err)
		_, err = c.InsertOne(ctx, record.Document{record.FieldID: "pay1", record.FieldOwner: "u1", "amount": amount})
		require.NoError(t, err)

		docs, err := c.Find(ctx, record.ByKey("pay1", "u1"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		got, ok := docs[0]["amount"].(record.Number)
		require.True(t, ok, "amount is %T", docs[0]["amount"])
		assert.Equal(t, "12345678901234567.89", got.String())
	})
}

func ids(docs []record.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

func index(docs []record.Document) map[string]record.Document {
	out := make(map[string]record.Document, len(docs))
	for _, d := range docs {
		out[d.ID()] = d
	}
	return out
}
