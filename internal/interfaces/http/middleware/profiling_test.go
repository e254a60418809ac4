package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRecordKindFromRoute(t *testing.T) {
	kinds := stringSet([]string{"associates", "products", "payments"})

	tests := map[string]string{
		"/products":            "products",
		"/products/:userEmail": "products",
		"/api/payments/sync":   "payments",
		"/associates/:id":      "associates",
		"/health":              "",
		"/":                    "",
		"":                     "",
		"/invoices/:userEmail": "",
	}
	for route, want := range tests {
		assert.Equal(t, want, recordKindFromRoute(route, kinds), route)
	}
}

func TestProfiling_RunsChain(t *testing.T) {
	for name, cfg := range map[string]ProfilingConfig{
		"enabled":  {Enabled: true, Kinds: []string{"products"}},
		"disabled": {Enabled: false},
		"skipped":  {Enabled: true, SkipPaths: []string{"/products/u1"}},
	} {
		t.Run(name, func(t *testing.T) {
			ran := false
			router := gin.New()
			router.Use(Profiling(cfg))
			router.GET("/products/:userEmail", func(c *gin.Context) {
				ran = true
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/u1", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, ran)
		})
	}
}
