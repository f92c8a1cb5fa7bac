package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-eufy/internal/device"
)

// envPrefix prefixes every environment override.
const envPrefix = "GRAYLOGIC_EUFY_"

// Config is the root configuration structure for the Eufy bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Eufy      EufyConfig      `yaml:"eufy"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// EufyConfig contains the device driver settings and the device list.
type EufyConfig struct {
	// Port is the device TCP port. Default: 55556
	Port int `yaml:"port"`

	// KeepAliveInterval is the keep-alive period per device. Default: 10s
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	// ConnectTimeout bounds one TCP dial. Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReadTimeout bounds the wait for the first reply byte. Default: 5s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ReplySettle is the quiet period that ends a reply. Default: 50ms
	ReplySettle time.Duration `yaml:"reply_settle"`

	// HealthInterval is the health publish and reconnect period. Default: 30s
	HealthInterval time.Duration `yaml:"health_interval"`

	// Cipher overrides the protocol key material. Empty means the
	// protocol constants.
	Cipher CipherConfig `yaml:"cipher"`

	Devices []DeviceConfig `yaml:"devices"`
}

// CipherConfig holds hex-encoded AES-128 key material.
type CipherConfig struct {
	Key string `yaml:"key"`
	IV  string `yaml:"iv"`
}

// DeviceConfig is one configured device.
type DeviceConfig struct {
	ID    string `yaml:"id"`
	Model string `yaml:"model"`
	Code  string `yaml:"code"`
	IP    string `yaml:"ip"`
	Name  string `yaml:"name,omitempty"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the config file, if present (never overrides the real environment)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_EUFY_SECTION_KEY
// For example: GRAYLOGIC_EUFY_DATABASE_PATH, GRAYLOGIC_EUFY_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads a .env file into the process environment. A missing
// file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-eufy.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-eufy",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8081,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Eufy: EufyConfig{
			Port:              55556,
			KeepAliveInterval: 10 * time.Second,
			ConnectTimeout:    5 * time.Second,
			ReadTimeout:       5 * time.Second,
			ReplySettle:       50 * time.Millisecond,
			HealthInterval:    30 * time.Second,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := getenv("MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMQTT_PORT: %w", envPrefix, err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := getenv("API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sAPI_PORT: %w", envPrefix, err)
		}
		cfg.API.Port = port
	}

	// InfluxDB
	if v := getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Eufy cipher material
	if v := getenv("CIPHER_KEY"); v != "" {
		cfg.Eufy.Cipher.Key = v
	}
	if v := getenv("CIPHER_IV"); v != "" {
		cfg.Eufy.Cipher.IV = v
	}
	return nil
}

func getenv(key string) string {
	return os.Getenv(envPrefix + key)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.Eufy.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (e *EufyConfig) validate() []string {
	var errs []string

	if e.Port < 1 || e.Port > 65535 {
		errs = append(errs, "eufy.port must be between 1 and 65535")
	}
	if e.KeepAliveInterval <= 0 {
		errs = append(errs, "eufy.keepalive_interval must be positive")
	}

	if msg := validateHexKey("eufy.cipher.key", e.Cipher.Key); msg != "" {
		errs = append(errs, msg)
	}
	if msg := validateHexKey("eufy.cipher.iv", e.Cipher.IV); msg != "" {
		errs = append(errs, msg)
	}

	seen := make(map[string]bool, len(e.Devices))
	for i, d := range e.Devices {
		prefix := fmt.Sprintf("eufy.devices[%d]", i)
		switch {
		case d.ID == "":
			errs = append(errs, prefix+".id is required")
		case seen[d.ID]:
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, d.ID))
		}
		seen[d.ID] = true

		if _, err := device.ParseModel(d.Model); err != nil {
			errs = append(errs, fmt.Sprintf("%s.model %q is not a known model", prefix, d.Model))
		}
		if d.Code == "" {
			errs = append(errs, prefix+".code is required")
		}
		if d.IP == "" {
			errs = append(errs, prefix+".ip is required")
		}
	}
	return errs
}

// validateHexKey checks optional AES-128 key material: empty, or 16 bytes of hex.
func validateHexKey(field, value string) string {
	if value == "" {
		return ""
	}
	b, err := hex.DecodeString(value)
	if err != nil || len(b) != 16 {
		return field + " must be 32 hex characters"
	}
	return ""
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
