// Jarvis Core - Command Interpretation & Device Orchestration Engine
//
// This is the main entry point for the Jarvis Core application.
// Jarvis turns chat messages into device commands:
//   - Free-text (RU/EN) and structured command parsing
//   - Whitelist authorisation with sliding-TTL sessions
//   - Per-user rate limiting
//   - Orchestrated execution against lights, the TV and the vacuum
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/jarvis-core/migrations"

	"github.com/nerrad567/jarvis-core/internal/api"
	"github.com/nerrad567/jarvis-core/internal/audit"
	"github.com/nerrad567/jarvis-core/internal/auth"
	"github.com/nerrad567/jarvis-core/internal/device"
	"github.com/nerrad567/jarvis-core/internal/device/light"
	"github.com/nerrad567/jarvis-core/internal/device/tv"
	"github.com/nerrad567/jarvis-core/internal/device/vacuum"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/config"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/database"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/logging"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/jarvis-core/internal/intent"
	"github.com/nerrad567/jarvis-core/internal/orchestrator"
	"github.com/nerrad567/jarvis-core/internal/ratelimit"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// sweepInterval is how often expired sessions and idle rate-limit windows
// are pruned in the background.
const sweepInterval = time.Minute

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Pick up a local .env if present; real environment variables win.
	_ = godotenv.Load()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Jarvis Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker (vacuum bridge transport)
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to mqtt: %w", err)
	}
	defer func() {
		log.Info("closing mqtt connection")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing mqtt", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("mqtt connected", "broker", cfg.MQTT.Broker.Host)
	})
	mqttClient.SetOnDisconnect(func(dcErr error) {
		log.Warn("mqtt connection lost", "error", dcErr)
	})
	log.Info("mqtt client connected",
		"host", cfg.MQTT.Broker.Host,
		"port", cfg.MQTT.Broker.Port,
	)

	// Connect to InfluxDB for command and device telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to influxdb: %w", err)
		}
		defer func() {
			log.Info("closing influxdb connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing influxdb", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(writeErr error) {
			log.Warn("influxdb write failed", "error", writeErr)
		})
		log.Info("influxdb connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("influxdb disabled")
	}

	// Build the device registry and controllers
	registry := device.NewRegistry(cfg.StalenessBound())
	registry.SetLogger(log)
	defer func() {
		log.Info("closing device registry")
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error closing registry", "error", closeErr)
		}
	}()

	vacuumCtrl, err := registerDevices(cfg, registry, mqttClient, log)
	if err != nil {
		return fmt.Errorf("registering devices: %w", err)
	}

	// The vacuum bridge pushes retained state; keep the cache current and
	// wire the ack/state subscriptions up front.
	vacuumCtrl.SetStateListener(registry.UpdateStatus)
	if connectErr := vacuumCtrl.Connect(ctx); connectErr != nil {
		log.Warn("vacuum bridge not reachable at startup", "error", connectErr)
	}

	// Security: whitelist gate and per-user rate limiter
	gate := auth.NewGate(whitelistUsers(cfg), cfg.SessionTTL())
	limiter := ratelimit.New(cfg.Security.RateLimit.LimitCount, cfg.RateWindow())
	log.Info("security initialised",
		"whitelist_size", len(cfg.Security.Whitelist),
		"session_ttl", cfg.SessionTTL(),
		"rate_limit", cfg.Security.RateLimit.LimitCount,
		"rate_window", cfg.RateWindow(),
	)

	// Intent parser resolves room vocabulary from the live registry
	parser := intent.NewParser(intent.Options{
		MinConfidence: cfg.Intent.MinConfidence,
		DefaultRoom:   cfg.Site.DefaultRoom,
		Rooms:         registry,
	})

	// Command orchestrator with its audit and telemetry hooks
	orch := orchestrator.New(parser, gate, limiter, registry)
	orch.SetLogger(log)

	history := audit.NewSQLiteRepository(db.DB)
	orch.SetRecorder(history)

	if influxClient != nil {
		orch.SetTelemetry(&influxTelemetry{client: influxClient})
	}

	// HTTP/WebSocket surface
	apiServer, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Gate:         gate,
		Limiter:      limiter,
		Registry:     registry,
		Orchestrator: orch,
		History:      history,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	orch.SetNotifier(apiServer)

	// Fan status updates out to WebSocket subscribers and telemetry
	registry.SetStatusListener(func(report *device.StatusReport) {
		apiServer.OnDeviceStatus(report)
		if influxClient != nil {
			influxClient.WriteDeviceStatus(report.DeviceID, report.Online, report.Attributes)
		}
	})

	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting api server: %w", startErr)
	}
	defer func() {
		log.Info("stopping api server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping api server", "error", closeErr)
		}
	}()
	log.Info("api server listening",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
	)

	startSweepers(ctx, gate, limiter, log)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Device registry
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Jarvis Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses JARVIS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("JARVIS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// registerDevices builds one controller per configured device and registers
// the devices with the registry.
//
// The vacuum controller is returned separately so the caller can wire its
// state listener and subscriptions after registration.
//
// Parameters:
//   - cfg: Application configuration
//   - registry: Device registry to populate
//   - broker: MQTT client for the vacuum bridge
//   - log: Logger instance
//
// Returns:
//   - *vacuum.Controller: The vacuum controller, for post-registration wiring
//   - error: If any registration fails
func registerDevices(cfg *config.Config, registry *device.Registry, broker *mqtt.Client, log *logging.Logger) (*vacuum.Controller, error) {
	// One gateway controller serves every light; rooms map to logical
	// lights through the device address.
	lightCtrl := light.New(light.Config{
		Host:  cfg.Devices.Light.Gateway.Host,
		Port:  cfg.Devices.Light.Gateway.Port,
		Token: cfg.Devices.Light.Gateway.Token,
	}, log)

	for room, lr := range cfg.Devices.Light.Rooms {
		dev := device.Device{
			ID:   "light-" + room,
			Kind: device.KindLight,
			Room: room,
			Address: map[string]any{
				"light_id":           lr.LightID,
				"default_brightness": lr.DefaultBrightness,
			},
		}
		if err := registry.Register(dev, lightCtrl); err != nil {
			return nil, fmt.Errorf("registering light %q: %w", room, err)
		}
	}

	tvCtrl := tv.New(tv.Config{
		Host:      cfg.Devices.TV.Host,
		Port:      cfg.Devices.TV.Port,
		ADBBinary: cfg.Devices.TV.ADBBinary,
		BootGrace: cfg.BootGrace(),
	}, log)
	if err := registry.Register(device.Device{
		ID:   "tv-main",
		Kind: device.KindTV,
	}, tvCtrl); err != nil {
		return nil, fmt.Errorf("registering tv: %w", err)
	}

	vacuumCtrl := vacuum.New(vacuum.Config{
		DeviceID:   cfg.Devices.Vacuum.DeviceID,
		MinBattery: cfg.Devices.Vacuum.MinBatteryPercent,
	}, broker, log)
	if err := registry.Register(device.Device{
		ID:   cfg.Devices.Vacuum.DeviceID,
		Kind: device.KindVacuum,
	}, vacuumCtrl); err != nil {
		return nil, fmt.Errorf("registering vacuum: %w", err)
	}

	return vacuumCtrl, nil
}

// whitelistUsers converts configured whitelist entries to auth users.
func whitelistUsers(cfg *config.Config) []auth.User {
	users := make([]auth.User, 0, len(cfg.Security.Whitelist))
	for _, entry := range cfg.Security.Whitelist {
		roles := make([]auth.Role, 0, len(entry.Roles))
		for _, r := range entry.Roles {
			roles = append(roles, auth.Role(r))
		}
		users = append(users, auth.User{
			ID:          entry.ID,
			DisplayName: entry.DisplayName,
			Roles:       roles,
		})
	}
	return users
}

// startSweepers prunes expired sessions and idle rate-limit windows until
// the context is cancelled.
func startSweepers(ctx context.Context, gate *auth.Gate, limiter *ratelimit.Limiter, log *logging.Logger) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := gate.SweepExpired(); n > 0 {
					log.Debug("expired sessions swept", "count", n)
				}
				if n := limiter.Sweep(); n > 0 {
					log.Debug("idle rate-limit windows swept", "count", n)
				}
			}
		}
	}()
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// influxTelemetry adapts the InfluxDB client to the orchestrator's
// telemetry hook.
type influxTelemetry struct {
	client *influxdb.Client
}

func (t *influxTelemetry) WriteCommandMetric(userID string, kind device.Kind, action device.Action, status orchestrator.Status, latency time.Duration) {
	t.client.WriteCommandMetric(userID, string(kind), string(action), string(status), latency)
}
