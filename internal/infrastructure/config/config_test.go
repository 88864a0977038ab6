package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  name: "Jarvis Test"
  default_room: "kitchen"
security:
  whitelist:
    - id: "100200300"
      display_name: "Owner"
      roles: ["admin"]
  session:
    ttl_minutes: 60
  rate_limit:
    limit_count: 10
    window_seconds: 30
  jwt:
    secret: "` + testSecret + `"
devices:
  light:
    rooms:
      kitchen:
        light_id: "light_002"
        default_brightness: 100
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.Name != "Jarvis Test" {
		t.Errorf("Site.Name = %q, want %q", cfg.Site.Name, "Jarvis Test")
	}
	if cfg.Security.RateLimit.LimitCount != 10 {
		t.Errorf("RateLimit.LimitCount = %d, want 10", cfg.Security.RateLimit.LimitCount)
	}
	if cfg.SessionTTL() != time.Hour {
		t.Errorf("SessionTTL() = %v, want 1h", cfg.SessionTTL())
	}
	if cfg.Devices.Light.Rooms["kitchen"].LightID != "light_002" {
		t.Errorf("Light.Rooms[kitchen].LightID = %q, want light_002", cfg.Devices.Light.Rooms["kitchen"].LightID)
	}

	// Defaults should survive partial config
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
	if cfg.Devices.StalenessBoundSeconds != 30 {
		t.Errorf("StalenessBoundSeconds = %d, want default 30", cfg.Devices.StalenessBoundSeconds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_EmptyWhitelistRejected(t *testing.T) {
	content := `
security:
  jwt:
    secret: "` + testSecret + `"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for empty whitelist, got nil")
	}
	if !strings.Contains(err.Error(), "whitelist") {
		t.Errorf("error = %v, want mention of whitelist", err)
	}
}

func TestLoad_ShortJWTSecretRejected(t *testing.T) {
	content := `
security:
  whitelist:
    - id: "1"
  jwt:
    secret: "too-short"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for short JWT secret, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
security:
  whitelist:
    - id: "1"
  jwt:
    secret: "` + testSecret + `"
database:
  path: "/tmp/from-yaml.db"
`
	t.Setenv("JARVIS_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("JARVIS_MQTT_HOST", "broker.local")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
}

func TestValidate_InvalidBrightness(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.Whitelist = []WhitelistEntry{{ID: "1"}}
	cfg.Security.JWT.Secret = testSecret
	cfg.Devices.Light.Rooms = map[string]LightRoomConfig{
		"kitchen": {LightID: "light_002", DefaultBrightness: 150},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for brightness > 100, got nil")
	}
}

func TestValidate_InvalidRateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.Whitelist = []WhitelistEntry{{ID: "1"}}
	cfg.Security.JWT.Secret = testSecret
	cfg.Security.RateLimit.LimitCount = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for zero limit_count, got nil")
	}
}
