package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_Validation(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "app"}, zap.NewNop())
	assert.ErrorContains(t, err, "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
	assert.ErrorContains(t, err, "application name")
}

func TestProfileTypes(t *testing.T) {
	p := &Profiler{config: DefaultProfilerConfig("app", "http://localhost:4040")}
	assert.Len(t, p.profileTypes(), 6)

	p = &Profiler{config: ProfilerConfig{ProfileCPU: true}}
	assert.Len(t, p.profileTypes(), 1)
}

func TestSanitizeLabels(t *testing.T) {
	got := sanitizeLabels(map[string]string{
		"route":      "/products/:id",
		"Record-ID":  "p-1",
		"http-verb":  "GET",
		"owner":      "a@example.com",
		"request_id": "abc",
		"empty":      "",
		"!!!":        "x",
		"kind":       strings.Repeat("k", MaxLabelValueLength+10),
	})

	assert.Equal(t, []string{
		"http_verb", "GET",
		"kind", strings.Repeat("k", MaxLabelValueLength),
		"route", "/products/:id",
	}, got)
	assert.Nil(t, sanitizeLabels(nil))
}

func TestHTTPRequestLabels(t *testing.T) {
	assert.Equal(t,
		map[string]string{ProfilingLabelRoute: "/products", ProfilingLabelMethod: "GET", ProfilingLabelKind: "products"},
		HTTPRequestLabels("/products", "GET", "products"))
	assert.Empty(t, HTTPRequestLabels("", "", ""))
}

func TestWithProfilingLabels_RunsFn(t *testing.T) {
	ran := 0
	WithProfilingLabels(context.Background(), nil, func(context.Context) { ran++ })
	WithProfilingLabels(context.Background(), map[string]string{"route": "/x"}, func(context.Context) { ran++ })
	assert.Equal(t, 2, ran)
}
