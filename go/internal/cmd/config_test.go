package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://game.example.com/api
  timeout: 5s
engine:
  fast_interval: 10s
  max_inactive: 5
gateway:
  port: "9090"
  allowed_origins: ["https://app.example.com"]
nats:
  enabled: true
  url: nats://nats:4222
history:
  enabled: true
`)

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if config.API.BaseURL != "https://game.example.com/api" {
		t.Errorf("Expected base URL from file, got %s", config.API.BaseURL)
	}
	if config.API.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %s", config.API.Timeout)
	}
	if config.API.StatusPath != "/world_boss/create_event/" {
		t.Errorf("Expected default status path, got %s", config.API.StatusPath)
	}
	if config.Engine.FastInterval != 10*time.Second {
		t.Errorf("Expected fast interval 10s, got %s", config.Engine.FastInterval)
	}
	if config.Engine.SlowInterval != 60*time.Second {
		t.Errorf("Expected default slow interval 60s, got %s", config.Engine.SlowInterval)
	}
	if config.Engine.MaxInactive != 5 {
		t.Errorf("Expected max inactive 5, got %d", config.Engine.MaxInactive)
	}
	if diff := cmp.Diff([]string{"https://app.example.com"}, config.Gateway.AllowedOrigins); diff != "" {
		t.Errorf("Allowed origins mismatch (-want +got):\n%s", diff)
	}
	if !config.NATS.Enabled || config.NATS.URL != "nats://nats:4222" {
		t.Errorf("Expected NATS enabled at nats://nats:4222, got %v %s", config.NATS.Enabled, config.NATS.URL)
	}
	if config.NATS.StreamName != "BOSSWATCH_EVENTS" {
		t.Errorf("Expected default stream, got %s", config.NATS.StreamName)
	}
	if !config.History.Enabled {
		t.Error("Expected history enabled")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://file.example.com
engine:
  slow_interval: 2m
`)
	t.Setenv("BOSSWATCH_API_URL", "https://env.example.com")
	t.Setenv("BOSSWATCH_SLOW_INTERVAL", "90s")
	t.Setenv("BOSSWATCH_MAX_INACTIVE", "not-a-number")
	t.Setenv("BOSSWATCH_ACCESS_TOKEN", "access-1")
	t.Setenv("BOSSWATCH_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if config.API.BaseURL != "https://env.example.com" {
		t.Errorf("Expected env base URL, got %s", config.API.BaseURL)
	}
	if config.Engine.SlowInterval != 90*time.Second {
		t.Errorf("Expected env slow interval 90s, got %s", config.Engine.SlowInterval)
	}
	if config.Engine.MaxInactive != 3 {
		t.Errorf("Expected invalid env value to keep 3, got %d", config.Engine.MaxInactive)
	}
	if config.Session.Access != "access-1" {
		t.Errorf("Expected access token from env, got %q", config.Session.Access)
	}
	if len(config.Gateway.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 allowed origins, got %v", config.Gateway.AllowedOrigins)
	}
	if !config.NATS.Enabled {
		t.Error("Expected NATS enabled from env")
	}
	if config.Log.Level != "debug" {
		t.Errorf("Expected debug log level, got %s", config.Log.Level)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOSSWATCH_API_URL", "https://env.example.com")

	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if config.Engine.TickInterval != 100*time.Millisecond {
		t.Errorf("Expected default tick 100ms, got %s", config.Engine.TickInterval)
	}
	if config.Gateway.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", config.Gateway.Port)
	}
}

func TestLoadConfig_RequiresBaseURL(t *testing.T) {
	t.Setenv("BOSSWATCH_API_URL", "")

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error without a base URL")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "api: [unterminated")
	if _, err := loadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}
