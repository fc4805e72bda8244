package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.App.Port)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.App.Addr())
	}
	if cfg.Upload.MaxFileSizeMB != 10 || cfg.Upload.MaxFilesPerItem != 5 {
		t.Errorf("upload limits = %d MB / %d files, want 10/5",
			cfg.Upload.MaxFileSizeMB, cfg.Upload.MaxFilesPerItem)
	}
	if cfg.RateLimit.Requests != 30 || cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("rate limit = %d/%ds, want 30/60s",
			cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("UPLOAD_MAX_FILE_SIZE_MB", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.App.Port)
	}
	if cfg.Auth.AccessTokenTTLMinutes != 15 {
		t.Errorf("token TTL = %d, want 15", cfg.Auth.AccessTokenTTLMinutes)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limiting still enabled after override")
	}
	if cfg.Upload.MaxFileSizeBytes() != 25*1024*1024 {
		t.Errorf("MaxFileSizeBytes = %d", cfg.Upload.MaxFileSizeBytes())
	}
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("invalid REDIS_DB accepted")
	}
}

func TestRequestTimeout(t *testing.T) {
	app := AppConfig{RequestTimeoutSeconds: 45}
	if got := app.RequestTimeout(); got != 45*time.Second {
		t.Errorf("RequestTimeout = %v", got)
	}
	app.RequestTimeoutSeconds = 0
	if got := app.RequestTimeout(); got != 0 {
		t.Errorf("RequestTimeout with zero seconds = %v, want 0", got)
	}
}

func TestRateLimitWindow(t *testing.T) {
	rl := RateLimitConfig{WindowSeconds: 90}
	if got := rl.Window(); got != 90*time.Second {
		t.Errorf("Window = %v", got)
	}
}
