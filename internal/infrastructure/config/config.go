package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Jarvis Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Security  SecurityConfig  `yaml:"security"`
	Devices   DevicesConfig   `yaml:"devices"`
	Intent    IntentConfig    `yaml:"intent"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	Name string `yaml:"name"`

	// DefaultRoom is used when a spoken command names no room and exactly
	// one room-capable device kind is configured for fallback.
	DefaultRoom string `yaml:"default_room"`
}

// SecurityConfig contains the whitelist, session, rate-limit and JWT settings.
type SecurityConfig struct {
	Whitelist []WhitelistEntry `yaml:"whitelist"`
	Session   SessionConfig    `yaml:"session"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	JWT       JWTConfig        `yaml:"jwt"`
}

// WhitelistEntry describes a single authorised user.
type WhitelistEntry struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Roles       []string `yaml:"roles"`
}

// SessionConfig contains session lifetime settings.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// RateLimitConfig contains per-user sliding-window rate limit settings.
type RateLimitConfig struct {
	LimitCount    int `yaml:"limit_count"`
	WindowSeconds int `yaml:"window_seconds"`
}

// JWTConfig contains API access token settings.
type JWTConfig struct {
	Secret                string `yaml:"secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
}

// DevicesConfig contains per-device endpoint and policy settings.
type DevicesConfig struct {
	// StalenessBoundSeconds bounds how old a cached status report may be
	// when used for command idempotence decisions. Read-only status queries
	// are not subject to this bound.
	StalenessBoundSeconds int `yaml:"staleness_bound_seconds"`

	Light  LightConfig  `yaml:"light"`
	TV     TVConfig     `yaml:"tv"`
	Vacuum VacuumConfig `yaml:"vacuum"`
}

// LightConfig contains the light gateway endpoint and the room mapping.
type LightConfig struct {
	Gateway GatewayConfig              `yaml:"gateway"`
	Rooms   map[string]LightRoomConfig `yaml:"rooms"`
}

// GatewayConfig contains the light gateway connection details.
type GatewayConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

// LightRoomConfig describes one logical light hosted by the gateway.
type LightRoomConfig struct {
	LightID           string `yaml:"light_id"`
	DefaultBrightness int    `yaml:"default_brightness"`
}

// TVConfig contains the Android TV connection settings.
type TVConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	ADBBinary string `yaml:"adb_binary"`

	// BootGraceSeconds suppresses connection errors into retries while the
	// TV network stack comes up after power-on.
	BootGraceSeconds int `yaml:"boot_grace_seconds"`
}

// VacuumConfig contains the robot vacuum settings.
type VacuumConfig struct {
	DeviceID          string `yaml:"device_id"`
	MinBatteryPercent int    `yaml:"min_battery_percent"`
}

// IntentConfig contains free-text parser settings.
type IntentConfig struct {
	Locales       []string `yaml:"locales"`
	MinConfidence float64  `yaml:"min_confidence"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds/attempts.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: JARVIS_SECTION_KEY
// For example: JARVIS_DATABASE_PATH, JARVIS_JWT_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name:        "Jarvis",
			DefaultRoom: "room",
		},
		Security: SecurityConfig{
			Session: SessionConfig{
				TTLMinutes: 1440,
			},
			RateLimit: RateLimitConfig{
				LimitCount:    30,
				WindowSeconds: 60,
			},
			JWT: JWTConfig{
				AccessTokenTTLMinutes: 15,
			},
		},
		Devices: DevicesConfig{
			StalenessBoundSeconds: 30,
			Light: LightConfig{
				Gateway: GatewayConfig{
					Host: "192.168.1.102",
					Port: 80,
				},
			},
			TV: TVConfig{
				Host:             "192.168.1.100",
				Port:             5555,
				ADBBinary:        "adb",
				BootGraceSeconds: 20,
			},
			Vacuum: VacuumConfig{
				MinBatteryPercent: 10,
			},
		},
		Intent: IntentConfig{
			Locales:       []string{"en", "ru"},
			MinConfidence: 0.6,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "jarvis-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/jarvis.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: JARVIS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JARVIS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("JARVIS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("JARVIS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("JARVIS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("JARVIS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("JARVIS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("JARVIS_LIGHT_GATEWAY_TOKEN"); v != "" {
		cfg.Devices.Light.Gateway.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("JARVIS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// minJWTSecretLength is the minimum accepted JWT secret length.
// A forged token controls physical devices in someone's home, so weak
// secrets are rejected outright.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if len(c.Security.Whitelist) == 0 {
		errs = append(errs, "security.whitelist must contain at least one user")
	}
	for i, u := range c.Security.Whitelist {
		if u.ID == "" {
			errs = append(errs, fmt.Sprintf("security.whitelist[%d].id is required", i))
		}
	}

	if c.Security.Session.TTLMinutes <= 0 {
		errs = append(errs, "security.session.ttl_minutes must be positive")
	}
	if c.Security.RateLimit.LimitCount <= 0 {
		errs = append(errs, "security.rate_limit.limit_count must be positive")
	}
	if c.Security.RateLimit.WindowSeconds <= 0 {
		errs = append(errs, "security.rate_limit.window_seconds must be positive")
	}

	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set JARVIS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Devices.StalenessBoundSeconds <= 0 {
		errs = append(errs, "devices.staleness_bound_seconds must be positive")
	}
	if c.Devices.Vacuum.MinBatteryPercent < 0 || c.Devices.Vacuum.MinBatteryPercent > 100 {
		errs = append(errs, "devices.vacuum.min_battery_percent must be between 0 and 100")
	}
	for room, l := range c.Devices.Light.Rooms {
		if l.LightID == "" {
			errs = append(errs, fmt.Sprintf("devices.light.rooms.%s.light_id is required", room))
		}
		if l.DefaultBrightness < 0 || l.DefaultBrightness > 100 {
			errs = append(errs, fmt.Sprintf("devices.light.rooms.%s.default_brightness must be between 0 and 100", room))
		}
	}

	if c.Intent.MinConfidence < 0 || c.Intent.MinConfidence > 1 {
		errs = append(errs, "intent.min_confidence must be between 0 and 1")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SessionTTL returns the session lifetime as a Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Security.Session.TTLMinutes) * time.Minute
}

// RateWindow returns the rate-limit window as a Duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Security.RateLimit.WindowSeconds) * time.Second
}

// StalenessBound returns the status cache staleness bound as a Duration.
func (c *Config) StalenessBound() time.Duration {
	return time.Duration(c.Devices.StalenessBoundSeconds) * time.Second
}

// BootGrace returns the TV power-on grace period as a Duration.
func (c *Config) BootGrace() time.Duration {
	return time.Duration(c.Devices.TV.BootGraceSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
