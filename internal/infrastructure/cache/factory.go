package cache

import (
	"context"
	"fmt"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ResponseStoreFactory creates the replay store selected by configuration.
type ResponseStoreFactory struct {
	cfg                   config.IdempotencyConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ResponseStoreFactoryOption configures the factory.
type ResponseStoreFactoryOption func(*ResponseStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ResponseStoreFactoryOption {
	return func(f *ResponseStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) ResponseStoreFactoryOption {
	return func(f *ResponseStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewResponseStoreFactory creates a new factory
func NewResponseStoreFactory(cfg config.IdempotencyConfig, redisCfg config.RedisConfig, opts ...ResponseStoreFactoryOption) *ResponseStoreFactory {
	f := &ResponseStoreFactory{
		cfg:                   cfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns the configured backend.
func (f *ResponseStoreFactory) CreateStore(ctx context.Context) (ResponseStore, error) {
	switch f.cfg.Backend {
	case "", config.IdempotencyBackendMemory:
		f.logger.Info("Using in-memory idempotency store")
		return NewMemoryResponseStore(), nil
	case config.IdempotencyBackendRedis:
		return f.createRedisStore(ctx)
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", f.cfg.Backend)
	}
}

func (f *ResponseStoreFactory) createRedisStore(ctx context.Context) (ResponseStore, error) {
	store, err := NewRedisResponseStore(ctx, RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Replays will not be shared between instances.",
		zap.Error(err),
	)
	return NewMemoryResponseStore(), nil
}
