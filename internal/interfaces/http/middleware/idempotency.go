package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Idempotency headers
const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// IdempotencyConfig configures Idempotency-Key replays.
type IdempotencyConfig struct {
	Store cache.ResponseStore
	TTL   time.Duration
	// LockTTL bounds how long a running first request holds its key.
	LockTTL time.Duration
	Logger  *zap.Logger
}

// Idempotency replays the stored response of a write request that repeats
// an Idempotency-Key on the same method and path, without running the
// handler again. The key is reserved before the handler runs, so a repeat
// that arrives meanwhile gets 409, and a repeat with a different body gets
// 422. Responses of 5xx release the key so the client can retry. A store
// failure is logged and the request runs uncached.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.Store == nil {
		return passThrough
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || !isWriteMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", getRequestID(c)))
			return
		}

		fingerprint, err := bodyFingerprint(c)
		if err != nil {
			if IsBodyTooLarge(err) {
				AbortBodyTooLarge(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Failed to read request body", getRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		storeKey := c.Request.Method + " " + c.Request.URL.Path + " " + key

		reserved, err := cfg.Store.Put(ctx, storeKey, cache.StoredResponse{Pending: true, Fingerprint: fingerprint}, lockTTL)
		if err != nil {
			logger.Warn("Idempotency reservation failed", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			stored, err := cfg.Store.Get(ctx, storeKey)
			if err != nil {
				logger.Warn("Idempotency lookup failed", zap.Error(err))
			}
			if stored == nil {
				c.Next()
				return
			}
			replay(c, stored, fingerprint)
			return
		}

		capture := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			if err := cfg.Store.Release(ctx, storeKey); err != nil {
				logger.Warn("Idempotency release failed", zap.Error(err))
			}
			return
		}
		if err := cfg.Store.Complete(ctx, storeKey, cache.StoredResponse{
			Status:      status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        capture.body.Bytes(),
			Fingerprint: fingerprint,
		}, ttl); err != nil {
			logger.Warn("Idempotency store failed", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, stored *cache.StoredResponse, fingerprint string) {
	switch {
	case stored.Fingerprint != fingerprint:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeIdempotencyKeyReused, "Idempotency-Key was used with a different request body", getRequestID(c)))
	case stored.Pending:
		c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeIdempotencyInProgress, "A request with this Idempotency-Key is still in progress", getRequestID(c)))
	default:
		c.Header(IdempotencyReplayedHeader, "true")
		c.Data(stored.Status, stored.ContentType, stored.Body)
		c.Abort()
	}
}

// bodyFingerprint hashes the request body and leaves it readable for the
// handler.
func bodyFingerprint(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		return hashBody(nil), nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return hashBody(body), nil
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// bodyCaptureWriter copies the response body as it is written.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
