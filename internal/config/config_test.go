package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", `uptrace-dsn="https://token@api.uptrace.dev/123"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev/123" {
		t.Fatalf("unexpected UptraceDSN: %q", cfg.UptraceDSN)
	}
}

func TestLoad_Big4RequiresAPIKeyWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("BIG4_ENABLED", "true")
	t.Setenv("BIG4_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when BIG4_ENABLED=true without BIG4_API_KEY")
	}
}

func TestLoad_GatewayRequiresURLAndTokenWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("GATEWAY_ENABLED", "true")
	t.Setenv("GATEWAY_BASE_URL", "")
	t.Setenv("GATEWAY_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when GATEWAY_ENABLED=true without base url")
	}

	t.Setenv("GATEWAY_BASE_URL", "https://gateway.internal")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when GATEWAY_ENABLED=true without token")
	}

	t.Setenv("GATEWAY_TOKEN", "token-123")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.GatewayBaseURL != "https://gateway.internal" {
		t.Fatalf("unexpected GatewayBaseURL: %q", cfg.GatewayBaseURL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected HTTPAddr: %q", cfg.HTTPAddr)
	}
	if cfg.WardenTimeout != 3*time.Second {
		t.Fatalf("unexpected WardenTimeout: %s", cfg.WardenTimeout)
	}
	if cfg.Big4FeedUTCOffset != time.Hour {
		t.Fatalf("unexpected Big4FeedUTCOffset: %s", cfg.Big4FeedUTCOffset)
	}
	if cfg.NotificationSweepLimit != 100 {
		t.Fatalf("unexpected NotificationSweepLimit: %d", cfg.NotificationSweepLimit)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected CORSAllowedOrigins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_InvalidDurations(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("BIG4_TIMEOUT", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid BIG4_TIMEOUT")
	}
}
