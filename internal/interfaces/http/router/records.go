package router

import (
	"github.com/invoicing/backend/internal/interfaces/http/handler"
)

// RecordGroup exposes the CRUD and sync routes of one kind under
// /<collection>.
func RecordGroup(h *handler.RecordHandler) *DomainGroup {
	kind := h.Kind()
	return NewDomainGroup(kind.Name, "/"+kind.Collection).
		POST("", h.Create).
		POST("/sync", h.Sync).
		GET("/:userEmail", h.List).
		PUT("/:id", h.Update).
		DELETE("/:id", h.Delete)
}

// SystemGroup exposes the greeting, probe and health routes.
func SystemGroup(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "").
		GET("/", h.Root).
		GET("/test", h.Test).
		GET("/health", h.Health)
}
