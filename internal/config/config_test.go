package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LISTEN_ADDR", "DATABASE_PATH", "STORE_DRIVER", "ANALYSIS_CACHE_TTL", "SESSION_TIMEOUT", "CORS_ALLOWED_ORIGINS", "AI_PROVIDER"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "twinlog.db" {
		t.Fatalf("expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.StoreDriver)
	}
	if cfg.AnalysisCacheTTL != time.Hour || cfg.SessionTimeout != 30*time.Minute {
		t.Fatalf("unexpected analysis defaults: %v %v", cfg.AnalysisCacheTTL, cfg.SessionTimeout)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.AIProvider != "openai" {
		t.Fatalf("expected openai provider, got %q", cfg.AIProvider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("STORE_DRIVER", "MongoDB")
	t.Setenv("ANALYSIS_CACHE_TTL", "15m")
	t.Setenv("SESSION_TIMEOUT", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", " chrome-extension://abc , ,https://app.test ")
	t.Setenv("TIMEZONE", "UTC")

	cfg := Load()
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected listen addr from port, got %q", cfg.ListenAddr)
	}
	if cfg.StoreDriver != StoreDriverMongo {
		t.Fatalf("expected mongo driver, got %q", cfg.StoreDriver)
	}
	if cfg.AnalysisCacheTTL != 15*time.Minute {
		t.Fatalf("expected 15m cache ttl, got %v", cfg.AnalysisCacheTTL)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Fatalf("invalid duration should fall back, got %v", cfg.SessionTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://app.test" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Location().String() != "UTC" {
		t.Fatalf("unexpected location %v", cfg.Location())
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TWINLOG_TEST_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("TWINLOG_TEST_KEY", "")
	os.Unsetenv("TWINLOG_TEST_KEY")

	if !LoadDotEnv(path) {
		t.Fatalf("expected dotenv file to load")
	}
	if got := os.Getenv("TWINLOG_TEST_KEY"); got != "from-dotenv" {
		t.Fatalf("expected value from dotenv, got %q", got)
	}
	if LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")) {
		t.Fatalf("missing file should report false")
	}
}

func TestValidateRequiresJWTSecretInRelease(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "")

	cfg := Load()
	if cfg.JWTSecret != "" {
		t.Fatalf("expected no default jwt secret, got %q", cfg.JWTSecret)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrJWTSecretRequired) {
		t.Fatalf("expected ErrJWTSecretRequired, got %v", err)
	}

	cfg.GinMode = "debug"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("debug mode should not require a secret: %v", err)
	}

	cfg.GinMode = "release"
	cfg.JWTSecret = "configured"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("configured secret should pass: %v", err)
	}
}
