package handler

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/domain/record"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
)

// RecordService is the single-record contract of one kind.
type RecordService interface {
	Kind() record.Kind
	Create(ctx context.Context, owner string, data json.RawMessage) (record.InsertResult, error)
	List(ctx context.Context, owner string) ([]record.Document, error)
	Update(ctx context.Context, id, owner string, data json.RawMessage) error
	SoftDelete(ctx context.Context, id, owner string) error
}

// BatchSyncer merges a sync batch of one kind.
type BatchSyncer interface {
	Sync(ctx context.Context, owner string, batch json.RawMessage) ([]record.Document, error)
}

// RecordHandler serves the CRUD and sync routes of one kind.
type RecordHandler struct {
	BaseHandler
	service RecordService
	syncer  BatchSyncer
}

// NewRecordHandler creates a RecordHandler
func NewRecordHandler(service RecordService, syncer BatchSyncer) *RecordHandler {
	return &RecordHandler{service: service, syncer: syncer}
}

// Kind returns the kind served.
func (h *RecordHandler) Kind() record.Kind {
	return h.service.Kind()
}

// Create godoc
// @Summary      Create a record
// @Description  Create one record for the account. Unknown data fields are dropped.
// @Tags         records
// @Accept       json
// @Produce      json
// @Param        collection path string true "associates, products or payments"
// @Param        request body dto.WriteRequest true "Owner and record data"
// @Success      201 {object} dto.Response{data=dto.CreatedResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /{collection} [post]
func (h *RecordHandler) Create(c *gin.Context) {
	var req dto.WriteRequest
	if !h.bindJSON(c, &req, shared.ErrMissingData) {
		return
	}

	res, err := h.service.Create(c.Request.Context(), req.UserEmail, req.Data)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.CreatedResponse{Acknowledged: true, InsertedID: res.InsertedID})
}

// List godoc
// @Summary      List records
// @Description  List the records of an account that are not deleted
// @Tags         records
// @Produce      json
// @Param        collection path string true "associates, products or payments"
// @Param        userEmail path string true "Account email"
// @Success      200 {object} dto.Response{data=[]object}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /{collection}/{userEmail} [get]
func (h *RecordHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), c.Param("userEmail"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, docs)
}

// Update godoc
// @Summary      Replace a record
// @Description  Replace the data fields of one record of the account
// @Tags         records
// @Accept       json
// @Produce      json
// @Param        collection path string true "associates, products or payments"
// @Param        id path string true "Record id"
// @Param        request body dto.WriteRequest true "Owner and record data"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /{collection}/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	var req dto.WriteRequest
	if !h.bindJSON(c, &req, shared.ErrMissingData) {
		return
	}

	if err := h.service.Update(c.Request.Context(), c.Param("id"), req.UserEmail, req.Data); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nil)
}

// Delete godoc
// @Summary      Delete a record
// @Description  Mark one record of the account deleted
// @Tags         records
// @Accept       json
// @Produce      json
// @Param        collection path string true "associates, products or payments"
// @Param        id path string true "Record id"
// @Param        request body dto.OwnerRequest true "Owner"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /{collection}/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	var req dto.OwnerRequest
	if !h.bindJSON(c, &req, shared.ErrMissingOwner) {
		return
	}

	if err := h.service.SoftDelete(c.Request.Context(), c.Param("id"), req.UserEmail); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nil)
}

// Sync godoc
// @Summary      Sync a batch
// @Description  Upsert a batch of client snapshots and return every record of the account, deleted ones included
// @Tags         records
// @Accept       json
// @Produce      json
// @Param        collection path string true "associates, products or payments"
// @Param        request body object true "{userEmail, <collection>: [...]}"
// @Success      200 {object} dto.Response{data=[]object}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /{collection}/sync [post]
func (h *RecordHandler) Sync(c *gin.Context) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		if middleware.IsBodyTooLarge(err) {
			middleware.AbortBodyTooLarge(c)
			return
		}
		h.HandleError(c, shared.ErrInvalidBatch)
		return
	}

	var owner string
	if raw, ok := body[record.FieldOwner]; ok {
		// A non-string owner is treated as missing.
		_ = json.Unmarshal(raw, &owner)
	}

	docs, err := h.syncer.Sync(c.Request.Context(), owner, body[h.Kind().BatchKey])
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, docs)
}
