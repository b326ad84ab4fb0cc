package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.DBPath != "lessons.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Providers.GeminiModel == "" || cfg.Providers.GroqModel == "" {
		t.Fatalf("provider model defaults missing: %+v", cfg.Providers)
	}
	if cfg.Providers.Timeout != 60*time.Second {
		t.Fatalf("provider timeout = %v", cfg.Providers.Timeout)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.Channel != "lessons" {
		t.Fatalf("redis defaults mismatch: %+v", cfg.Redis)
	}
	if cfg.Sweep.Every != 5*time.Minute || cfg.Sweep.After != 15*time.Minute {
		t.Fatalf("sweep defaults mismatch: %+v", cfg.Sweep)
	}
	if cfg.HasPrimaryKey() || cfg.HasSecondaryKey() {
		t.Fatalf("no keys set, both probes must be false")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("GROQ_API_KEY", "q-key")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("API_BASE_PATH", "v2/")
	t.Setenv("LOG_LEVEL", "warning")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if !cfg.HasPrimaryKey() || !cfg.HasSecondaryKey() {
		t.Fatalf("key probes should be true")
	}
	if cfg.Providers.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Providers.Timeout)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.APIBasePath != "/v2" {
		t.Fatalf("base path not normalized: %q", cfg.APIBasePath)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("warning should normalize to warn: %q", cfg.LogLevel)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"zero provider timeout", map[string]string{"PROVIDER_TIMEOUT": "-1s"}, "PROVIDER_TIMEOUT"},
		{"bad sweep", map[string]string{"GEN_SWEEP_AFTER": "-1m"}, "GEN_SWEEP"},
		{"bad rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"bad sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "7"}, "OTEL_TRACES_SAMPLER_ARG"},
		{"bad idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "-1h"}, "IDEMPOTENCY_TTL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestHasPrimaryKey_IgnoresWhitespace(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "   ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HasPrimaryKey() {
		t.Fatalf("whitespace-only key must not count as configured")
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	t.Setenv("LOG_LEVEL", "nope")
	defer func() {
		if recover() == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}
