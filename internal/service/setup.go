package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/pilar/internal/artifact"
	"github.com/crimson-sun/pilar/internal/cache"
	"github.com/crimson-sun/pilar/internal/config"
	"github.com/crimson-sun/pilar/internal/decode"
	"github.com/crimson-sun/pilar/internal/engine/features"
)

// PrimarySource builds the configured primary artifact source.
func PrimarySource(cfg config.ArtifactConfig) (artifact.Source, error) {
	switch cfg.Source {
	case "", "file":
		return artifact.FileSource{Path: cfg.Path}, nil
	case "http":
		return artifact.NewHTTPSource(cfg.URL, cfg.Token), nil
	case "s3":
		return artifact.NewS3Source(artifact.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Key:       cfg.S3.Key,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	default:
		return nil, fmt.Errorf("service: unknown artifact source %q", cfg.Source)
	}
}

// NewLoader builds a loader for the configured sources. desc may be nil
// when no bag-of-visual-words bundle will be served.
func NewLoader(cfg config.Config, desc features.DescriptorSource) (*artifact.Loader, error) {
	primary, err := PrimarySource(cfg.Artifact)
	if err != nil {
		return nil, err
	}
	opts := []artifact.LoaderOption{
		artifact.WithBuildOptions(artifact.BuildOptions{
			ORTLibrary:  cfg.Engine.ORTLibrary,
			Descriptors: desc,
		}),
	}
	if cfg.Artifact.FallbackPath != "" {
		opts = append(opts, artifact.WithFallback(artifact.FileSource{Path: cfg.Artifact.FallbackPath}))
	}
	return artifact.NewLoader(primary, opts...), nil
}

// NewCache connects to Redis when configured and returns the no-op cache
// otherwise. An unreachable Redis is logged and caching is disabled.
func NewCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.Nop{}
	}
	r := cache.NewRedis(cache.Options{
		Address:  cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
	})
	if err := r.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, result cache disabled", "addr", cfg.RedisAddr, "error", err)
		r.Close()
		return cache.Nop{}
	}
	logger.Info("result cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
	return r
}

// FromConfig assembles a Service from configuration.
func FromConfig(ctx context.Context, cfg config.Config, desc features.DescriptorSource, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loader, err := NewLoader(cfg, desc)
	if err != nil {
		return nil, err
	}
	lim := decode.DefaultLimits
	lim.MaxBytes = cfg.Server.MaxUploadBytes
	return New(loader, NewCache(ctx, cfg.Cache, logger), logger,
		WithLimits(lim),
		WithLazyLoad(cfg.Artifact.LazyLoad),
	), nil
}
