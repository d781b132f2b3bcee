package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"FRIENDZONE_PORT", "ACCESS_TOKEN_SECRET", "ACCESS_TOKEN_TTL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 5000 {
		t.Fatalf("expected default port 5000 got %d", cfg.AppPort)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("expected default access ttl of 1h got %s", cfg.AccessTokenTTL)
	}
	if !slices.Equal(cfg.AllowedOrigins, []string{"http://localhost:5173", "http://localhost:5174"}) {
		t.Fatalf("unexpected default origins: %v", cfg.AllowedOrigins)
	}
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("expected missing secret to fail validation")
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FRIENDZONE_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("FRIENDZONE_RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 9090 || cfg.TokenSecret != "s3cret" || cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !slices.Equal(cfg.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Fatalf("expected invalid burst to fall back to 5 got %d", cfg.RateLimit.Burst)
	}
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("FRIENDZONE_LOG_LEVEL", "")
	os.Unsetenv("FRIENDZONE_LOG_LEVEL")
	t.Setenv("FRIENDZONE_SEEDS", "/already/set")

	contents := "FRIENDZONE_LOG_LEVEL=debug\nFRIENDZONE_SEEDS=/from/dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from .env got %q", cfg.LogLevel)
	}
	if cfg.SeedDir != "/already/set" {
		t.Fatalf("expected environment to win over .env got %q", cfg.SeedDir)
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
