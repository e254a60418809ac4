// Package handler holds the thin gin handlers of the invoicing API.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// HandleError converts err to an error response. Domain errors keep their
// message; anything else, and every internal error, is reported without
// its cause, which goes to the request log instead.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		_ = c.Error(err)
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}

	code := dto.NormalizeErrorCode(domainErr.Code)
	statusCode := dto.GetHTTPStatus(code)
	if statusCode >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	h.Error(c, statusCode, code, domainErr.Message)
}

// bindJSON decodes the body into dst. On failure it answers the request
// and returns false: 413 past the body limit, otherwise a validation error
// carrying missing's message.
func (h *BaseHandler) bindJSON(c *gin.Context, dst any, missing *shared.DomainError) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	switch {
	case middleware.IsBodyTooLarge(err):
		middleware.AbortBodyTooLarge(c)
	case errors.Is(err, io.EOF):
		h.HandleError(c, missing)
	default:
		if details := middleware.ValidationDetails(err); details != nil {
			c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(missing.Message, getRequestID(c), details))
			return false
		}
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid JSON body")
	}
	return false
}
