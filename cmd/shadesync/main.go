// shadesync - Overkiz shade and scene synchronisation service
//
// shadesync keeps a local registry of motorized window shades and
// scenes in sync with a Somfy TaHoma (Overkiz) gateway, exposes them
// over MQTT, and records position telemetry to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/sejgit/shadesync/migrations"

	"github.com/sejgit/shadesync/internal/controller"
	"github.com/sejgit/shadesync/internal/device"
	"github.com/sejgit/shadesync/internal/events"
	"github.com/sejgit/shadesync/internal/infrastructure/config"
	"github.com/sejgit/shadesync/internal/infrastructure/database"
	"github.com/sejgit/shadesync/internal/infrastructure/influxdb"
	"github.com/sejgit/shadesync/internal/infrastructure/logging"
	"github.com/sejgit/shadesync/internal/infrastructure/mqtt"
	"github.com/sejgit/shadesync/internal/overkiz"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting shadesync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Open database and bring the schema current
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	applied, pending, statusErr := db.GetMigrationStatus(ctx)
	if statusErr != nil {
		return fmt.Errorf("checking migration status: %w", statusErr)
	}
	schemaVersion := ""
	if len(applied) > 0 {
		schemaVersion = applied[len(applied)-1].Version
	}
	log.Info("database migrations complete",
		"schema_version", schemaVersion,
		"pending", len(pending),
	)

	// Registry warm-starts from the last persisted snapshot so status
	// is served before the gateway answers.
	repo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(repo)
	registry.SetLogger(log)
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading device registry: %w", loadErr)
	}
	stats := registry.GetStats()
	log.Info("device registry initialised",
		"shades", stats.Shades,
		"scenes", stats.Scenes,
	)

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
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to the Overkiz gateway
	gateway := overkiz.NewClient(cfg.Gateway)
	gateway.SetLogger(log)
	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.GetConnectTimeout())
	err = gateway.Connect(connectCtx)
	connectCancel()
	if err != nil {
		// Leave a fixed status for operators watching the system
		// topic; the process is about to exit.
		if pubErr := mqttClient.PublishString(mqtt.Topics{}.SystemStatus(), "gateway-unreachable", byte(cfg.MQTT.QoS), true); pubErr != nil {
			log.Warn("could not publish failure status", "error", pubErr)
		}
		return fmt.Errorf("connecting to gateway: %w", err)
	}
	defer func() {
		log.Info("disconnecting from gateway")
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if closeErr := gateway.Disconnect(disconnectCtx); closeErr != nil {
			log.Error("error disconnecting gateway", "error", closeErr)
		}
		disconnectCancel()
	}()
	log.Info("gateway connected",
		"pin", cfg.Gateway.PIN,
		"local_control", cfg.Gateway.LocalControl,
	)

	// Assemble the sync core
	queue := events.NewQueue()
	bridge := newMQTTBridge(mqttClient, byte(cfg.MQTT.QoS), cfg.GetCommandTimeout(), log)

	ctrl := controller.New(gateway, registry, queue, controller.Options{
		CommandTimeout: cfg.GetCommandTimeout(),
		PollInterval:   cfg.GetPollInterval(),
	})
	ctrl.SetLogger(log)
	ctrl.SetEntityManager(bridge)
	ctrl.SetStatusSink(bridge)
	if influxClient != nil {
		ctrl.SetRecorder(influxClient)
	}

	if subErr := bridge.SubscribeCommands(ctrl); subErr != nil {
		return fmt.Errorf("subscribing to command topics: %w", subErr)
	}
	log.Info("command subscription active", "pattern", mqtt.Topics{}.AllCommands())

	// Initial discovery is bounded by the startup timeout
	startCtx, startCancel := context.WithTimeout(ctx, cfg.GetStartupTimeout())
	err = ctrl.Start(startCtx)
	startCancel()
	if err != nil {
		return fmt.Errorf("starting controller: %w", err)
	}
	defer func() {
		log.Info("stopping controller")
		ctrl.Stop()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case fatalErr := <-ctrl.Fatal():
		log.Error("controller raised fatal error", "error", fatalErr)
		return fmt.Errorf("controller: %w", fatalErr)
	}

	log.Info("shadesync stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SHADESYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SHADESYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
