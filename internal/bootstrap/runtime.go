// Package bootstrap wires the process-level dependencies shared by the commands:
// configuration, database, Redis, the PII vault and tracing.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"treematch/internal/cache"
	"treematch/internal/config"
	"treematch/internal/database"
	"treematch/internal/middleware"
	"treematch/internal/observability"
	"treematch/internal/secure"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipMigrations leaves the schema untouched (cmd/migrate manages it itself).
	SkipMigrations bool
	// WithRedis connects to Redis; a failed connection degrades to a nil client.
	WithRedis bool
	// WithTracing installs the OpenTelemetry provider described by the config.
	WithTracing bool
}

// Runtime holds the initialized dependencies. Close releases them.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Vault  *secure.Vault

	shutdownTracing func(context.Context) error
}

// InitRuntime loads nothing itself: cfg comes from config.LoadConfig.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	vault, err := secure.NewVault(key, []byte(cfg.FingerprintKey))
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	rt := &Runtime{Config: cfg, Vault: vault}

	if opts.WithTracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "treematch-api",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Env,
			Enabled:        cfg.TracingEnabled,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			SamplerRatio:   cfg.TracingSamplerRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		rt.shutdownTracing = shutdown
	}

	rt.DB, err = database.ConnectWithOptions(ctx, cfg, database.ConnectOptions{ApplyMigrations: !opts.SkipMigrations})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.WithRedis {
		rt.Redis = cache.InitRedis(ctx, cfg.RedisURL)
	}
	return rt, nil
}

// Close releases the database, Redis and tracing resources.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.shutdownTracing != nil {
		errs = append(errs, rt.shutdownTracing(ctx))
	}
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "runtime shutdown incomplete", slog.String("error", err.Error()))
	}
	return err
}
