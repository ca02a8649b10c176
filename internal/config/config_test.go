package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_ADDR", "IDEAS_BACKEND", "AUDIO_URL_TTL_SECONDS", "CORS_ORIGINS", "LOG_LEVEL", "MINIO_USE_SSL", "PUBLIC_BASE_URL"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Addr != ":8787" || cfg.Backend != BackendPostgres {
		t.Fatalf("unexpected defaults: addr=%q backend=%q", cfg.Addr, cfg.Backend)
	}
	if cfg.AudioURLTTL != time.Hour {
		t.Fatalf("AudioURLTTL = %s", cfg.AudioURLTTL)
	}
	if cfg.PublicBaseURL != "http://localhost:8787" {
		t.Fatalf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) || cfg.LogLevel != slog.LevelInfo || cfg.MinioUseSSL {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IDEAS_BACKEND", "Memory")
	t.Setenv("AUDIO_URL_TTL_SECONDS", "120")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MINIO_USE_SSL", "true")
	cfg := Load()
	if cfg.Backend != BackendMemory {
		t.Fatalf("Backend = %q", cfg.Backend)
	}
	if cfg.AudioURLTTL != 2*time.Minute {
		t.Fatalf("AudioURLTTL = %s", cfg.AudioURLTTL)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.LogLevel != slog.LevelDebug || !cfg.MinioUseSSL {
		t.Fatalf("LogLevel=%v MinioUseSSL=%v", cfg.LogLevel, cfg.MinioUseSSL)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("AUDIO_URL_TTL_SECONDS", "soon")
	t.Setenv("MINIO_USE_SSL", "maybe")
	t.Setenv("LOG_LEVEL", "loud")
	cfg := Load()
	if cfg.AudioURLTTL != time.Hour || cfg.MinioUseSSL || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("fallbacks not applied: %+v", cfg)
	}
}
