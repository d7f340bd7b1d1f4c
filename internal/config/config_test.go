package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PILAR_ADDR", "PILAR_REQUEST_TIMEOUT", "PILAR_MAX_UPLOAD_BYTES",
		"PILAR_DEBUG_ENDPOINTS", "PILAR_ADMIN_TOKEN", "PILAR_ARTIFACT_SOURCE",
		"PILAR_ARTIFACT_PATH", "PILAR_LAZY_LOAD", "PILAR_ORB_FEATURES",
		"PILAR_REDIS_ADDR", "PILAR_CACHE_TTL", "PILAR_LOG_FORMAT", "PILAR_SHUTDOWN_TIMEOUT",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr ':8080', got %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("expected default upload limit 10MB, got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Fatalf("expected default request timeout 30s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.DebugEndpoints || cfg.Artifact.LazyLoad {
		t.Fatal("expected debug endpoints and lazy load off by default")
	}
	if cfg.Artifact.Source != "file" || cfg.Artifact.Path != "models/artifact.json" {
		t.Fatalf("unexpected artifact defaults: %+v", cfg.Artifact)
	}
	if cfg.Engine.ORBFeatures != 500 {
		t.Fatalf("expected 500 ORB features, got %d", cfg.Engine.ORBFeatures)
	}
	if cfg.Cache.RedisAddr != "" || cfg.Cache.TTL != time.Hour {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("expected text log format, got %q", cfg.LogFormat)
	}
}

func TestLoad_ShutdownTimeoutDefault(t *testing.T) {
	os.Unsetenv("PILAR_SHUTDOWN_TIMEOUT")
	cfg := Load()
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected default ShutdownTimeout=10s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_ShutdownTimeoutEnv(t *testing.T) {
	os.Setenv("PILAR_SHUTDOWN_TIMEOUT", "5s")
	defer os.Unsetenv("PILAR_SHUTDOWN_TIMEOUT")
	cfg := Load()
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("expected ShutdownTimeout=5s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_S3Env(t *testing.T) {
	t.Setenv("PILAR_ARTIFACT_SOURCE", "s3")
	t.Setenv("PILAR_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("PILAR_S3_BUCKET", "models")
	t.Setenv("PILAR_S3_KEY", "pilar/artifact.json.gz")
	cfg := Load()
	if cfg.Artifact.Source != "s3" || cfg.Artifact.S3.Bucket != "models" || cfg.Artifact.S3.Key != "pilar/artifact.json.gz" {
		t.Fatalf("unexpected s3 config: %+v", cfg.Artifact)
	}
	if cfg.Artifact.S3.Region != "us-east-1" {
		t.Fatalf("expected default region us-east-1, got %q", cfg.Artifact.S3.Region)
	}
}

// --- Validation tests ---

// validConfig returns a Config with a real temp artifact so file-existence checks pass.
func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	return Config{
		Server: ServerConfig{Addr: ":0", RequestTimeout: time.Second, MaxUploadBytes: 1024},
		Artifact: ArtifactConfig{
			Source: "file",
			Path:   path,
		},
		Engine:          EngineConfig{ORBFeatures: 500},
		LogFormat:       "text",
		ShutdownTimeout: time.Second,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected nil error for valid config, got: %v", err)
	}
}

func TestValidate_MissingArtifactFile(t *testing.T) {
	cfg := validConfig(t)
	cfg.Artifact.Path = "/nonexistent/artifact.json"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing artifact file")
	}
	if !strings.Contains(err.Error(), "artifact") {
		t.Fatalf("expected error to mention 'artifact', got: %v", err)
	}
}

func TestValidate_MissingPrimaryWithFallback(t *testing.T) {
	cfg := validConfig(t)
	cfg.Artifact.FallbackPath = cfg.Artifact.Path
	cfg.Artifact.Path = "/nonexistent/artifact.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected fallback to satisfy validation, got: %v", err)
	}
}

func TestValidate_BadSource(t *testing.T) {
	cfg := validConfig(t)
	cfg.Artifact.Source = "ftp"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "artifact source") {
		t.Fatalf("expected artifact source error, got: %v", err)
	}
}

func TestValidate_HTTPSource(t *testing.T) {
	cfg := validConfig(t)
	cfg.Artifact.Source = "http"
	cfg.Artifact.URL = "ftp://example.com/a.json"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "PILAR_ARTIFACT_URL") {
		t.Fatalf("expected URL error, got: %v", err)
	}
	cfg.Artifact.URL = "https://models.example.com/pilar/artifact.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid http config, got: %v", err)
	}
}

func TestValidate_S3Source(t *testing.T) {
	cfg := validConfig(t)
	cfg.Artifact.Source = "s3"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "PILAR_S3_BUCKET") {
		t.Fatalf("expected bucket error, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.RequestTimeout = 0
	cfg.Engine.ORBFeatures = 0
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for multiple bad fields")
	}
	msg := err.Error()
	for _, want := range []string{"request timeout", "ORB", "log format"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %q, got: %v", want, msg)
		}
	}
}

func TestValidate_CacheTTL(t *testing.T) {
	cfg := validConfig(t)
	cfg.Cache.RedisAddr = "localhost:6379"
	cfg.Cache.TTL = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "cache ttl") {
		t.Fatalf("expected cache ttl error, got: %v", err)
	}
}

// --- getenv helper tests ---

func TestGetenvInt(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		set      bool
		fallback int
		want     int
	}{
		{"empty uses fallback", "", false, 1000, 1000},
		{"valid int", "500", true, 1000, 500},
		{"zero", "0", true, 1000, 0},
		{"invalid falls back", "abc", true, 1000, 1000},
		{"negative", "-1", true, 1000, -1},
	}

	const key = "PILAR_TEST_GETENVINT"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				os.Setenv(key, tt.envVal)
				defer os.Unsetenv(key)
			} else {
				os.Unsetenv(key)
			}
			got := getenvInt(key, tt.fallback)
			if got != tt.want {
				t.Errorf("getenvInt(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetenvBool(t *testing.T) {
	const key = "PILAR_TEST_GETENVBOOL"
	t.Setenv(key, "true")
	if !getenvBool(key, false) {
		t.Error("expected true")
	}
	t.Setenv(key, "nope")
	if !getenvBool(key, true) {
		t.Error("expected fallback for invalid value")
	}
}

func TestGetenvDuration(t *testing.T) {
	const key = "PILAR_TEST_GETENVDURATION"
	t.Setenv(key, "250ms")
	if got := getenvDuration(key, time.Second); got != 250*time.Millisecond {
		t.Errorf("getenvDuration = %v, want 250ms", got)
	}
	t.Setenv(key, "soon")
	if got := getenvDuration(key, time.Second); got != time.Second {
		t.Errorf("getenvDuration invalid = %v, want fallback 1s", got)
	}
}

func TestVersion_IsSet(t *testing.T) {
	if Version == "" {
		t.Fatal("expected non-empty Version constant")
	}
}
