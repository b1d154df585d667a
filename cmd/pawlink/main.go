// PawLink Core - GPS Pet Tracker Bridge
//
// This is the main entry point for the PawLink Core application.
// PawLink mirrors cloud-hosted GPS pet trackers onto a local
// smart-home platform:
//   - Live push stream with poll fallback
//   - Retained MQTT state for platform resync
//   - Edge-triggered flow events (geofences, safety zones)
//   - Local-first state that survives restarts
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawlink/pawlink-core/internal/api"
	"github.com/pawlink/pawlink-core/internal/bridge"
	"github.com/pawlink/pawlink-core/internal/cloud"
	"github.com/pawlink/pawlink-core/internal/device"
	"github.com/pawlink/pawlink-core/internal/geozone"
	"github.com/pawlink/pawlink-core/internal/infrastructure/config"
	"github.com/pawlink/pawlink-core/internal/infrastructure/influxdb"
	"github.com/pawlink/pawlink-core/internal/infrastructure/logging"
	"github.com/pawlink/pawlink-core/internal/infrastructure/mqtt"
	"github.com/pawlink/pawlink-core/internal/store"
	"github.com/pawlink/pawlink-core/internal/stream"
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

// healthReportInterval is how often the retained bridge health document
// is republished.
const healthReportInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting PawLink Core",
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

	// Open the local state store
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer func() {
		log.Info("closing state store")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing state store", "error", closeErr)
		}
	}()
	log.Info("state store opened", "path", cfg.Database.Path)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var telemetry device.Telemetry
	var streamHealth device.StreamHealthRecorder
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		streamHealth = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Vendor cloud client and push-stream supervisor
	cloudClient := cloud.New(cfg.Cloud)
	cloudClient.SetLogger(log)

	supervisor := stream.NewSupervisor(cloudClient, log)

	// Platform bridge over the broker
	platform := bridge.New(mqttClient, log)

	// Discover trackers on the account and build a device per tracker.
	// Each device gets its own zone resolver backed by the shared store.
	refs, err := cloudClient.Trackers(ctx)
	if err != nil {
		return fmt.Errorf("listing trackers: %w", err)
	}
	if len(refs) == 0 {
		log.Warn("no trackers found on account")
	}

	devices := make([]*device.Device, 0, len(refs))
	for _, ref := range refs {
		resolver := geozone.NewResolver(ref.ID, cloudClient, db, log)
		d := device.New(ref.ID, device.Deps{
			Platform:  platform,
			Enricher:  resolver,
			States:    db,
			Telemetry: telemetry,
			Logger:    log.With("tracker_id", ref.ID),
		})
		devices = append(devices, d)
		log.Info("tracker registered",
			"tracker_id", ref.ID,
			"model", ref.ModelNumber,
		)
	}

	// Device manager drives the poll cycle, stream registration and
	// heartbeat monitoring for every device.
	manager := device.NewManager(
		supervisor,
		cloudClient,
		devices,
		cfg.GetPollInterval(),
		cfg.GetMonitorInterval(),
		streamHealth,
		log,
	)
	manager.Start(ctx)
	defer func() {
		log.Info("stopping device manager")
		manager.Close()
	}()
	log.Info("device manager started",
		"devices", len(devices),
		"poll_interval", cfg.GetPollInterval(),
	)

	// Inbound actuator commands from the platform
	if err := platform.SubscribeCommands(ctx, cloudClient); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	defer func() {
		log.Info("unsubscribing from commands")
		if unsubErr := platform.UnsubscribeCommands(); unsubErr != nil {
			log.Error("error unsubscribing from commands", "error", unsubErr)
		}
	}()

	// Retained bridge health document
	healthReporter := bridge.NewHealthReporter(platform, manager, healthReportInterval)
	healthReporter.Start(ctx)
	defer func() {
		log.Info("stopping health reporter")
		healthReporter.Stop()
	}()

	// Local status API
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Devices: manager,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Health reporter
	// 3. Command subscription
	// 4. Device manager
	// 5. InfluxDB (if enabled)
	// 6. MQTT
	// 7. State store

	log.Info("PawLink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PAWLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PAWLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
