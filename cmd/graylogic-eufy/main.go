// Gray Logic Eufy Bridge
//
// This is the entry point for the Eufy smart plug, switch and bulb bridge.
// It connects to each configured device over the local encrypted protocol,
// exposes the devices on MQTT and a REST/WebSocket API, records commands
// in SQLite and optionally writes telemetry to InfluxDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-eufy/migrations"

	"github.com/nerrad567/gray-logic-eufy/internal/api"
	"github.com/nerrad567/gray-logic-eufy/internal/audit"
	"github.com/nerrad567/gray-logic-eufy/internal/bridges/eufy"
	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back the most recent database migration and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if *migrateDown {
		err = rollbackMigration(ctx)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rollbackMigration reverts the latest applied migration of the configured
// database and reports what remains.
func rollbackMigration(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("migration rolled back",
		"path", cfg.Database.Path,
		"applied", len(applied),
		"pending", len(pending),
	)
	return nil
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Eufy bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"devices", len(cfg.Eufy.Devices),
		"level", cfg.Logging.Level,
	)

	// Database and audit trail
	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// MQTT, with a retained offline health message as Last Will
	willTopic, willPayload, err := eufy.LastWill()
	if err != nil {
		return fmt.Errorf("encoding LWT: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT,
		mqtt.WithWill(willTopic, willPayload),
		mqtt.WithLogger(log.Component("mqtt")),
	)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
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

	// InfluxDB (optional)
	influxClient, err := connectInfluxDB(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Bridge
	bridge, err := buildBridge(cfg, &mqttBridgeAdapter{client: mqttClient}, influxClient, auditRepo, log)
	if err != nil {
		return err
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
		recordLifecycle(auditRepo, audit.ActionBridgeStop, log)
	}()
	recordLifecycle(auditRepo, audit.ActionBridgeStart, log)

	// API
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Devices: bridge,
		Audit:   auditRepo,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, bridge, InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInfluxDB returns nil without error when InfluxDB is disabled.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// buildBridge creates one device per configured entry and the bridge
// that owns them.
func buildBridge(cfg *config.Config, mqttClient eufy.MQTTClient, influxClient *influxdb.Client, repo audit.Repository, log *logging.Logger) (*eufy.Bridge, error) {
	cipher, err := eufy.NewAESCipherFromHex(cfg.Eufy.Cipher.Key, cfg.Eufy.Cipher.IV)
	if err != nil {
		return nil, fmt.Errorf("building cipher: %w", err)
	}

	entries := make([]eufy.DeviceEntry, 0, len(cfg.Eufy.Devices))
	for _, d := range cfg.Eufy.Devices {
		entries = append(entries, eufy.DeviceEntry{
			ID:    d.ID,
			Model: d.Model,
			Code:  d.Code,
			IP:    d.IP,
			Name:  d.Name,
		})
	}

	opts := eufy.BridgeOptions{
		Devices: entries,
		DeviceDefaults: eufy.DeviceConfig{
			Port:              cfg.Eufy.Port,
			KeepAliveInterval: cfg.Eufy.KeepAliveInterval,
			TransportConfig: eufy.TransportConfig{
				ConnectTimeout: cfg.Eufy.ConnectTimeout,
				ReadTimeout:    cfg.Eufy.ReadTimeout,
				ReplySettle:    cfg.Eufy.ReplySettle,
			},
			Cipher: cipher,
		},
		MQTT:           mqttClient,
		Audit:          audit.NewCommandRecorder(repo),
		Version:        version,
		HealthInterval: cfg.Eufy.HealthInterval,
		Logger:         log.Component("eufy"),
	}
	// A nil *influxdb.Client must not become a non-nil interface.
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	bridge, err := eufy.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	log.Info("bridge created", "devices", len(entries))
	return bridge, nil
}

// recordLifecycle writes a bridge start or stop entry to the audit trail.
func recordLifecycle(repo audit.Repository, action string, log *logging.Logger) {
	entry := &audit.AuditLog{Action: action, Source: "system"}
	if err := repo.Create(context.Background(), entry); err != nil {
		log.Warn("failed to record lifecycle event", "action", action, "error", err)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
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

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The infrastructure handler returns an error; the
// bridge handler does not.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements eufy.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements eufy.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements eufy.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
