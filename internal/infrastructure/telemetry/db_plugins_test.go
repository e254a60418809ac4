package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestDBPlugins_DisabledAreNil(t *testing.T) {
	assert.Nil(t, NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zap.NewNop()))
	assert.Nil(t, NewDBMetricsPlugin(nil, DBMetricsConfig{Enabled: true}, zap.NewNop()))

	_, provider := newTestMeter(t)
	assert.Nil(t, NewDBMetricsPlugin(provider.Meter("db"), DBMetricsConfig{Enabled: false}, zap.NewNop()))
}

func TestDBMetricsPlugin_CountsStatements(t *testing.T) {
	reader, provider := newTestMeter(t)
	db := openSQLite(t)

	plugin := NewDBMetricsPlugin(provider.Meter("db"), DBMetricsConfig{Enabled: true}, zap.NewNop())
	require.NotNil(t, plugin)
	require.NoError(t, db.Use(plugin))

	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	require.NoError(t, db.Create(&widget{Name: "b"}).Error)

	var got []widget
	require.NoError(t, db.Find(&got).Error)
	require.Len(t, got, 2)

	rm := collect(t, reader)
	counts := sumBy(t, rm, "db_query_total", AttrDBOperation)
	assert.Equal(t, int64(2), counts["INSERT"])
	assert.GreaterOrEqual(t, counts["SELECT"], int64(1))

	_, ok := findMetric(rm, "db_pool_connections")
	assert.True(t, ok)
}

func TestDBTracingPlugin_EmitsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	db := openSQLite(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())
	require.NotNil(t, plugin)
	require.NoError(t, db.Use(plugin))

	require.NoError(t, db.AutoMigrate(&widget{}))
	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "a"}).Error)
	span.End()

	assert.GreaterOrEqual(t, len(recorder.Ended()), 2)
}

func TestDetectOperationType(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM documents":     "SELECT",
		"  insert into documents ...": "INSERT",
		"UPDATE documents SET":        "UPDATE",
		"delete from documents":       "DELETE",
		"PRAGMA foreign_keys":         "OTHER",
		"":                            "OTHER",
	}
	for sql, want := range cases {
		assert.Equal(t, want, detectOperationType(sql), sql)
	}
}
