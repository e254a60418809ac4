package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// StorePinger reports on the record store.
type StorePinger interface {
	Ping(ctx context.Context) error
	Driver() string
}

// SystemHandler serves the greeting, probe and health endpoints
type SystemHandler struct {
	BaseHandler
	store   StorePinger
	timeout time.Duration
	now     func() time.Time
}

// NewSystemHandler creates a SystemHandler checking store on /health
func NewSystemHandler(store StorePinger) *SystemHandler {
	return &SystemHandler{
		store:   store,
		timeout: 2 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Root godoc
// @Summary      Greeting
// @Tags         system
// @Produce      plain
// @Success      200 {string} string
// @Router       / [get]
func (h *SystemHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Hello world 🌍")
}

// Test godoc
// @Summary      Probe
// @Tags         system
// @Produce      plain
// @Success      200 {string} string
// @Router       /test [get]
func (h *SystemHandler) Test(c *gin.Context) {
	c.String(http.StatusOK, "testing 🌍")
}

// Health godoc
// @Summary      Health check
// @Description  Answers 503 when the store does not answer a ping
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.HealthResponse
// @Failure      503 {object} dto.HealthResponse
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status: "ok",
		Time:   h.now(),
		Store:  h.store.Driver(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
