package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/application/records"
	"github.com/invoicing/backend/internal/domain/catalog"
	"github.com/invoicing/backend/internal/infrastructure/persistence/memstore"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "a@b.c"

type productAPI struct {
	engine *gin.Engine
	coll   *memstore.Collection
}

func newProductAPI(t *testing.T, handlers ...gin.HandlerFunc) *productAPI {
	t.Helper()
	store := memstore.New()
	coll := store.Collection(catalog.ProductKind.Collection)
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	h := NewRecordHandler(
		records.NewEntityService(catalog.ProductKind, coll, records.WithClock(clock)),
		records.NewReconciler(catalog.ProductKind, coll, records.WithClock(clock)),
	)

	engine := gin.New()
	engine.Use(handlers...)
	g := engine.Group("/products")
	g.POST("", h.Create)
	g.POST("/sync", h.Sync)
	g.GET("/:userEmail", h.List)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	return &productAPI{engine: engine, coll: coll}
}

func (a *productAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *productAPI) list(t *testing.T) []map[string]any {
	t.Helper()
	w := a.do(http.MethodGet, "/products/"+owner, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &docs))
	return docs
}

func TestRecordHandler_KeepsDecimalsExact(t *testing.T) {
	api := newProductAPI(t)

	w := api.do(http.MethodPost, "/products",
		`{"userEmail":"a@b.c","data":{"id":"p1","saleRate":12345678901234567.89}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/products/sync",
		`{"userEmail":"a@b.c","products":[{"id":"p2","buyRate":0.30000000000000000001}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"buyRate":0.30000000000000000001`)

	w = api.do(http.MethodGet, "/products/"+owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"saleRate":12345678901234567.89`)
	assert.Contains(t, w.Body.String(), `"buyRate":0.30000000000000000001`)
}

func TestRecordHandler_Create(t *testing.T) {
	api := newProductAPI(t)

	w := api.do(http.MethodPost, "/products",
		`{"userEmail":"a@b.c","data":{"id":"p1","productName":"Widget","saleRate":12.5,"color":"red"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created dto.CreatedResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.True(t, created.Acknowledged)
	assert.NotEmpty(t, created.InsertedID)

	docs := api.list(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0]["id"])
	assert.Equal(t, "Widget", docs[0]["productName"])
	assert.Equal(t, owner, docs[0]["userEmail"])
	assert.NotContains(t, docs[0], "color")

	t.Run("duplicate is a conflict", func(t *testing.T) {
		w := api.do(http.MethodPost, "/products", `{"userEmail":"a@b.c","data":{"id":"p1"}}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeAlreadyExists, decode(t, w).Error.Code)
		assert.Equal(t, 1, api.coll.Len())
	})

	t.Run("missing id", func(t *testing.T) {
		w := api.do(http.MethodPost, "/products", `{"userEmail":"a@b.c","data":{"productName":"x"}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Missing id field in data", decode(t, w).Error.Message)
	})

	t.Run("missing owner", func(t *testing.T) {
		w := api.do(http.MethodPost, "/products", `{"data":{"id":"p2"}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		assert.Equal(t, "Missing userEmail or data", env.Error.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := api.do(http.MethodPost, "/products", `{"userEmail"`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, w).Error.Code)
	})
}

func TestRecordHandler_List(t *testing.T) {
	api := newProductAPI(t)

	t.Run("empty account", func(t *testing.T) {
		w := api.do(http.MethodGet, "/products/nobody@b.c", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, string(decode(t, w).Data))
	})

	t.Run("other accounts are not listed", func(t *testing.T) {
		api.do(http.MethodPost, "/products", `{"userEmail":"other@b.c","data":{"id":"p1"}}`)
		assert.Empty(t, api.list(t))
	})
}

func TestRecordHandler_Update(t *testing.T) {
	api := newProductAPI(t)
	api.do(http.MethodPost, "/products", `{"userEmail":"a@b.c","data":{"id":"p1","productName":"Widget","unit":"pcs"}}`)

	w := api.do(http.MethodPut, "/products/p1", `{"userEmail":"a@b.c","data":{"productName":"Gadget"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	docs := api.list(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "Gadget", docs[0]["productName"])
	assert.Nil(t, docs[0]["unit"])

	t.Run("unknown id", func(t *testing.T) {
		w := api.do(http.MethodPut, "/products/nope", `{"userEmail":"a@b.c","data":{"productName":"x"}}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Record not found or no permission", decode(t, w).Error.Message)
	})

	t.Run("another account", func(t *testing.T) {
		w := api.do(http.MethodPut, "/products/p1", `{"userEmail":"other@b.c","data":{"productName":"x"}}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRecordHandler_Delete(t *testing.T) {
	api := newProductAPI(t)
	api.do(http.MethodPost, "/products", `{"userEmail":"a@b.c","data":{"id":"p1"}}`)

	t.Run("requires the owner", func(t *testing.T) {
		w := api.do(http.MethodDelete, "/products/p1", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Missing userEmail", decode(t, w).Error.Message)
	})

	w := api.do(http.MethodDelete, "/products/p1", `{"userEmail":"a@b.c"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, api.list(t))
	assert.Equal(t, 1, api.coll.Len())

	t.Run("unknown id", func(t *testing.T) {
		w := api.do(http.MethodDelete, "/products/nope", `{"userEmail":"a@b.c"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRecordHandler_Sync(t *testing.T) {
	api := newProductAPI(t)
	api.do(http.MethodPost, "/products", `{"userEmail":"a@b.c","data":{"id":"p1","productName":"Old"}}`)

	w := api.do(http.MethodPost, "/products/sync", `{
		"userEmail": "a@b.c",
		"products": [
			{"id": "p1", "productName": "New", "updatedAt": "2024-03-02T00:00:00Z"},
			{"id": "p2", "productName": "Fresh", "deleted": true}
		]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &docs))
	require.Len(t, docs, 2)
	byID := map[string]map[string]any{}
	for _, d := range docs {
		assert.NotContains(t, d, "userEmail")
		byID[d["id"].(string)] = d
	}
	assert.Equal(t, "New", byID["p1"]["productName"])
	assert.EqualValues(t, 1, byID["p2"]["deleted"])

	t.Run("deleted records leave the list", func(t *testing.T) {
		docs := api.list(t)
		require.Len(t, docs, 1)
		assert.Equal(t, "p1", docs[0]["id"])
	})

	t.Run("empty batch returns the account", func(t *testing.T) {
		w := api.do(http.MethodPost, "/products/sync", `{"userEmail":"a@b.c","products":[]}`)
		require.Equal(t, http.StatusOK, w.Code)
		var docs []map[string]any
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &docs))
		assert.Len(t, docs, 2)
	})

	for name, body := range map[string]string{
		"missing owner":     `{"products":[]}`,
		"non-string owner":  `{"userEmail":7,"products":[]}`,
		"missing batch":     `{"userEmail":"a@b.c"}`,
		"batch not array":   `{"userEmail":"a@b.c","products":{}}`,
		"wrong batch key":   `{"userEmail":"a@b.c","associates":[]}`,
		"body not object":   `[]`,
		"item without id":   `{"userEmail":"a@b.c","products":[{"productName":"x"}]}`,
		"item not object":   `{"userEmail":"a@b.c","products":[1]}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/products/sync", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
		})
	}
	assert.Equal(t, 2, api.coll.Len())
}

func TestRecordHandler_BodyLimit(t *testing.T) {
	api := newProductAPI(t, middleware.BodyLimit(32))
	big := `{"userEmail":"a@b.c","products":[{"id":"p1","productName":"` + strings.Repeat("x", 64) + `"}]}`

	w := api.do(http.MethodPost, "/products/sync", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, dto.ErrCodeRequestTooLarge, decode(t, w).Error.Code)

	w = api.do(http.MethodPost, "/products", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, api.coll.Len())
}
