package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling labels are added to requests.
	Enabled bool
	// SkipPaths are paths that don't need profiling labels (e.g., health checks).
	SkipPaths []string
	// Kinds are the record collections served, used for the kind label.
	Kinds []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/", "/test", "/health"},
	}
}

// Profiling runs the rest of the chain under Pyroscope labels for the
// route, method and record kind.
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}

	skip := stringSet(cfg.SkipPaths)
	kinds := stringSet(cfg.Kinds)

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		route := c.FullPath()
		labels := telemetry.HTTPRequestLabels(route, c.Request.Method, recordKindFromRoute(route, kinds))
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// recordKindFromRoute returns the first route segment naming one of kinds.
// Example: "/api/products/:userEmail" -> "products"
func recordKindFromRoute(route string, kinds map[string]bool) string {
	for _, part := range strings.Split(route, "/") {
		if kinds[part] {
			return part
		}
	}
	return ""
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
