package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/application/records"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const slowQueryThreshold = 200 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	obs, err := startTelemetry(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Rebuild the logger so entries also reach the OTLP log pipeline.
	log, err := logger.New(logCfg, obs.logCore(cfg.Log.Level))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()
	defer obs.shutdown(context.Background(), log)

	log.Info("Starting invoicing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store", cfg.Store.Driver),
	)

	kinds := records.Kinds()
	collections := make([]string, 0, len(kinds))
	for _, k := range kinds {
		collections = append(collections, k.Collection)
	}

	meter := obs.meter.Meter("invoicing-backend")
	store, err := persistence.NewStore(ctx, cfg, log,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), slowQueryThreshold)),
		persistence.WithPlugin(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			SlowQueryThresh: slowQueryThreshold,
			DBSystem:        dbSystem(cfg.Store.Driver),
		}, log)),
		persistence.WithPlugin(telemetry.NewDBMetricsPlugin(meter, telemetry.DBMetricsConfig{
			Enabled:            obs.meter.IsEnabled(),
			SlowQueryThreshold: slowQueryThreshold,
		}, log)),
	)
	if err != nil {
		log.Fatal("Failed to open record store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error("Error closing record store", zap.Error(err))
		}
	}()

	colls, err := persistence.OpenCollections(ctx, store, collections...)
	if err != nil {
		log.Fatal("Failed to open collections", zap.Error(err))
	}
	log.Info("Collections ready", zap.Strings("collections", collections))

	policy, err := records.ParseMergePolicy(cfg.Sync.MergePolicy)
	if err != nil {
		log.Fatal("Invalid sync merge policy", zap.Error(err))
	}
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}
	recordOpts := []records.Option{
		records.WithLogger(log),
		records.WithMergePolicy(policy),
		records.WithRecorder(records.MetricsRecorder(syncMetrics)),
	}

	var replayStore cache.ResponseStore
	if cfg.Idempotency.Enabled {
		replayStore, err = cache.NewResponseStoreFactory(cfg.Idempotency, cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			if err := replayStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	routable := records.Routable()
	routed := make([]string, 0, len(routable))
	for _, k := range routable {
		routed = append(routed, k.Collection)
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	profilingConfig := middleware.DefaultProfilingConfig()
	profilingConfig.Enabled = obs.profiler.IsEnabled()
	profilingConfig.Kinds = routed

	// SpanEnricher must follow Tracing to see the request span.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnricher(routed...))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: obs.meter,
		Enabled:       obs.meter.IsEnabled(),
		Logger:        log,
	}))
	engine.Use(middleware.Profiling(profilingConfig))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORS(corsConfig))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Idempotency(middleware.IdempotencyConfig{
		Store:   replayStore,
		TTL:     cfg.Idempotency.TTL,
		LockTTL: cfg.Idempotency.LockTTL,
		Logger:  log,
	}))

	r := router.NewRouter(engine, router.WithBasePath(cfg.HTTP.BasePath))
	for _, k := range routable {
		coll := colls[k.Collection]
		h := handler.NewRecordHandler(
			records.NewEntityService(k, coll, recordOpts...),
			records.NewReconciler(k, coll, recordOpts...),
		)
		r.Register(router.RecordGroup(h))
	}
	r.Setup()

	// System routes stay at the root whatever the base path.
	router.SystemGroup(handler.NewSystemHandler(store)).RegisterRoutes(&engine.RouterGroup)

	log.Info("Routes registered",
		zap.String("base_path", r.BasePath()),
		zap.Int("routes", len(engine.Routes())),
		zap.String("sync_policy", string(policy)),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

// dbSystem names the SQL dialect for span attributes.
func dbSystem(driver string) string {
	switch driver {
	case config.DriverPostgres:
		return "postgresql"
	case config.DriverSQLite:
		return "sqlite"
	default:
		return driver
	}
}
