package main

import (
	"context"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// observability holds the running telemetry providers.
type observability struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

// startTelemetry brings up tracing, metrics, the log bridge and continuous
// profiling. Every provider is a no-op when telemetry is disabled.
func startTelemetry(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (*observability, error) {
	obs := &observability{}
	var err error

	obs.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	obs.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.MetricsInterval,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		obs.shutdown(ctx, log)
		return nil, err
	}

	obs.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		obs.shutdown(ctx, log)
		return nil, err
	}

	profilerCfg := telemetry.DefaultProfilerConfig(cfg.ServiceName, cfg.ProfilingServerAddress)
	profilerCfg.Enabled = cfg.ProfilingEnabled
	obs.profiler, err = telemetry.NewProfiler(profilerCfg, log)
	if err != nil {
		obs.shutdown(ctx, log)
		return nil, err
	}

	if cfg.ProfilingEnabled && cfg.ProfilingSpanProfiles {
		if err := obs.tracer.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}
	log.Info("Telemetry started",
		zap.Bool("enabled", cfg.Enabled),
		zap.Bool("profiling", cfg.ProfilingEnabled),
		zap.Bool("span_profiles", obs.tracer.IsSpanProfilesEnabled()),
	)
	return obs, nil
}

// logCore returns the core that mirrors log entries to the collector.
func (o *observability) logCore(level string) zapcore.Core {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	return o.logs.ZapCore(lvl)
}

// shutdown flushes and stops whatever was started, in reverse order.
func (o *observability) shutdown(ctx context.Context, log *zap.Logger) {
	if o.profiler != nil {
		if err := o.profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}
	if o.logs != nil {
		if err := o.logs.Shutdown(ctx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}
	if o.meter != nil {
		if err := o.meter.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}
	if o.tracer != nil {
		if err := o.tracer.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}
}
