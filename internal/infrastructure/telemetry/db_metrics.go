package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // default 200ms
}

// DBMetricsPlugin is a gorm.Plugin recording query counts, latency, slow
// queries and connection pool state.
type DBMetricsPlugin struct {
	meter  metric.Meter
	config DBMetricsConfig
	logger *zap.Logger

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
}

// NewDBMetricsPlugin returns the plugin, or nil when metrics are disabled.
func NewDBMetricsPlugin(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) gorm.Plugin {
	if !cfg.Enabled || meter == nil {
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBMetricsPlugin{meter: meter, config: cfg, logger: logger}
}

// Name implements gorm.Plugin.
func (p *DBMetricsPlugin) Name() string { return "invoicing:db_metrics" }

// Initialize implements gorm.Plugin.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	var err error
	if p.queryTotal, err = NewCounter(p.meter, "db_query_total", "Database statements by operation", "{query}"); err != nil {
		return err
	}
	if p.queryDuration, err = NewHistogram(p.meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return err
	}
	if p.slowQueryTotal, err = NewCounter(p.meter, "db_slow_query_total", "Statements slower than the threshold", "{query}"); err != nil {
		return err
	}
	if err := p.observePool(db); err != nil {
		return err
	}
	if err := registerAround(db, "db_metrics", p.before, p.after); err != nil {
		return err
	}

	p.logger.Info("Database metrics plugin initialized",
		zap.Duration("slow_query_threshold", p.config.SlowQueryThreshold),
	)
	return nil
}

// observePool reports sql.DB pool stats at each collection.
func (p *DBMetricsPlugin) observePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db metrics: %w", err)
	}

	_, err = p.meter.Int64ObservableGauge(
		"db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			stats := sqlDB.Stats()
			o.Observe(int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
			o.Observe(int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
			o.Observe(int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
			o.Observe(int64(stats.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create pool gauge: %w", err)
	}
	return nil
}

type metricsStartKey struct{}

func (p *DBMetricsPlugin) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, metricsStartKey{}, time.Now())
}

func (p *DBMetricsPlugin) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(metricsStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	op := AttrDBOperation.String(detectOperationType(db.Statement.SQL.String()))

	p.queryTotal.Inc(ctx, op)
	p.queryDuration.RecordDuration(ctx, elapsed, op)
	if elapsed > p.config.SlowQueryThreshold {
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		p.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}
