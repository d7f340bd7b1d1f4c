package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is the pilar release version.
var Version = "0.3.0"

// Config holds all pilar configuration.
type Config struct {
	Server          ServerConfig
	Artifact        ArtifactConfig
	Engine          EngineConfig
	Cache           CacheConfig
	LogLevel        string
	LogFormat       string // "text" or "json"
	ShutdownTimeout time.Duration
	ShowVersion     bool
}

// ServerConfig holds HTTP surface settings.
type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	DebugEndpoints bool
	AdminToken     string // empty disables the reload endpoint
}

// ArtifactConfig says where the model bundle comes from.
type ArtifactConfig struct {
	Source       string // "file", "http", "s3"
	Path         string
	URL          string
	Token        string
	FallbackPath string
	LazyLoad     bool
	S3           S3Config
}

// S3Config locates the bundle in an S3-compatible store.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	Key       string
	AccessKey string
	SecretKey string
}

// EngineConfig holds runtime settings for pipeline components.
type EngineConfig struct {
	ORTLibrary  string
	ORBFeatures int
}

// CacheConfig holds result cache settings. An empty RedisAddr disables caching.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr:           getenv("PILAR_ADDR", ":8080"),
			RequestTimeout: getenvDuration("PILAR_REQUEST_TIMEOUT", 30*time.Second),
			MaxUploadBytes: int64(getenvInt("PILAR_MAX_UPLOAD_BYTES", 10<<20)),
			DebugEndpoints: getenvBool("PILAR_DEBUG_ENDPOINTS", false),
			AdminToken:     os.Getenv("PILAR_ADMIN_TOKEN"),
		},
		Artifact: ArtifactConfig{
			Source:       getenv("PILAR_ARTIFACT_SOURCE", "file"),
			Path:         getenv("PILAR_ARTIFACT_PATH", "models/artifact.json"),
			URL:          os.Getenv("PILAR_ARTIFACT_URL"),
			Token:        os.Getenv("PILAR_ARTIFACT_TOKEN"),
			FallbackPath: os.Getenv("PILAR_ARTIFACT_FALLBACK_PATH"),
			LazyLoad:     getenvBool("PILAR_LAZY_LOAD", false),
			S3: S3Config{
				Endpoint:  os.Getenv("PILAR_S3_ENDPOINT"),
				Region:    getenv("PILAR_S3_REGION", "us-east-1"),
				Bucket:    os.Getenv("PILAR_S3_BUCKET"),
				Key:       os.Getenv("PILAR_S3_KEY"),
				AccessKey: os.Getenv("PILAR_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("PILAR_S3_SECRET_KEY"),
			},
		},
		Engine: EngineConfig{
			ORTLibrary:  getenv("PILAR_ORT_LIB", "models/libonnxruntime.so"),
			ORBFeatures: getenvInt("PILAR_ORB_FEATURES", 500),
		},
		Cache: CacheConfig{
			RedisAddr:     os.Getenv("PILAR_REDIS_ADDR"),
			RedisPassword: os.Getenv("PILAR_REDIS_PASSWORD"),
			RedisDB:       getenvInt("PILAR_REDIS_DB", 0),
			TTL:           getenvDuration("PILAR_CACHE_TTL", time.Hour),
		},
		LogLevel:        getenv("PILAR_LOG_LEVEL", "info"),
		LogFormat:       getenv("PILAR_LOG_FORMAT", "text"),
		ShutdownTimeout: getenvDuration("PILAR_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("PILAR_ADDR must not be empty"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %v", c.Server.RequestTimeout))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}

	switch c.Artifact.Source {
	case "file":
		if _, err := os.Stat(c.Artifact.Path); err != nil && c.Artifact.FallbackPath == "" {
			errs = append(errs, fmt.Errorf("artifact file: %w", err))
		}
	case "http":
		if u, err := url.Parse(c.Artifact.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("PILAR_ARTIFACT_URL must be an http(s) URL, got %q", c.Artifact.URL))
		}
	case "s3":
		if c.Artifact.S3.Bucket == "" || c.Artifact.S3.Key == "" {
			errs = append(errs, errors.New("PILAR_S3_BUCKET and PILAR_S3_KEY are required for the s3 artifact source"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifact source must be file, http, or s3, got %q", c.Artifact.Source))
	}
	if c.Artifact.FallbackPath != "" {
		if _, err := os.Stat(c.Artifact.FallbackPath); err != nil {
			errs = append(errs, fmt.Errorf("artifact fallback: %w", err))
		}
	}

	if c.Engine.ORBFeatures <= 0 {
		errs = append(errs, fmt.Errorf("ORB feature budget must be positive, got %d", c.Engine.ORBFeatures))
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive, got %v", c.Cache.TTL))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be non-negative, got %v", c.ShutdownTimeout))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
