package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for shadesync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig contains Overkiz gateway connection settings.
type GatewayConfig struct {
	// PIN is the gateway identifier printed on the unit, format NNNN-NNNN-NNNN.
	PIN string `yaml:"pin"`

	// Token is the bearer token generated for local API access.
	Token string `yaml:"token"`

	// LocalControl selects the local API endpoint on the gateway itself.
	// When false the cloud endpoint is used instead.
	LocalControl bool `yaml:"local_control"`

	// VerifySSL controls TLS certificate verification. The local gateway
	// presents a self-signed certificate, so this is typically false for
	// local control and true for cloud.
	VerifySSL bool `yaml:"verify_ssl"`

	// CloudURL overrides the cloud API base URL. Empty selects the default.
	CloudURL string `yaml:"cloud_url"`

	// CommandTimeout bounds a single command execution, in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// ConnectTimeout bounds the initial gateway handshake, in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// StartupTimeout bounds the full startup sequence including discovery,
	// in seconds.
	StartupTimeout int `yaml:"startup_timeout"`

	// PollInterval is the delay between event fetch cycles, in seconds.
	PollInterval int `yaml:"poll_interval"`
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

// InfluxDBConfig contains InfluxDB connection settings for position telemetry.
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

// pinPattern matches the gateway PIN as printed on the unit.
var pinPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}$`)

// tokenPlaceholders are fragments that indicate the operator pasted
// documentation text instead of a real bearer token.
var tokenPlaceholders = []string{
	"your-bearer-token",
	"abc123",
	"example",
	"token-here",
	"paste-token",
}

// minTokenLength is the shortest bearer token the gateway is known to issue.
const minTokenLength = 20

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHADESYNC_SECTION_KEY
// For example: SHADESYNC_GATEWAY_TOKEN, SHADESYNC_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			LocalControl:   true,
			VerifySSL:      false,
			CommandTimeout: 10,
			ConnectTimeout: 30,
			StartupTimeout: 300,
			PollInterval:   1,
		},
		Database: DatabaseConfig{
			Path:        "./data/shadesync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "shadesync",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHADESYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("SHADESYNC_GATEWAY_PIN"); v != "" {
		cfg.Gateway.PIN = v
	}
	if v := os.Getenv("SHADESYNC_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Token = v
	}

	// Database
	if v := os.Getenv("SHADESYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SHADESYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHADESYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHADESYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SHADESYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Gateway credentials are validated strictly: a malformed PIN or a
// placeholder token would otherwise surface much later as an opaque
// authentication failure against the gateway.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.PIN == "" {
		errs = append(errs, "gateway.pin is required")
	} else if !pinPattern.MatchString(c.Gateway.PIN) {
		errs = append(errs, "gateway.pin must match NNNN-NNNN-NNNN (as printed on the gateway)")
	}
	if err := validateToken(c.Gateway.Token); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Gateway.PollInterval < 1 {
		errs = append(errs, "gateway.poll_interval must be at least 1 second")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateToken checks the gateway bearer token for the failure modes seen
// in the field: missing, truncated, pasted with surrounding whitespace, or
// copied verbatim from documentation.
func validateToken(token string) error {
	if token == "" {
		return fmt.Errorf("gateway.token is required (set SHADESYNC_GATEWAY_TOKEN environment variable)")
	}
	if len(token) < minTokenLength {
		return fmt.Errorf("gateway.token is too short (%d chars, minimum %d)", len(token), minTokenLength)
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("gateway.token must not contain spaces or line breaks")
	}
	lower := strings.ToLower(token)
	for _, p := range tokenPlaceholders {
		if strings.Contains(lower, p) {
			return fmt.Errorf("gateway.token looks like placeholder text (%q)", p)
		}
	}
	return nil
}

// GetCommandTimeout returns the gateway command timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Gateway.CommandTimeout) * time.Second
}

// GetConnectTimeout returns the gateway connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Gateway.ConnectTimeout) * time.Second
}

// GetStartupTimeout returns the startup sequence timeout as a Duration.
func (c *Config) GetStartupTimeout() time.Duration {
	return time.Duration(c.Gateway.StartupTimeout) * time.Second
}

// GetPollInterval returns the event poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Gateway.PollInterval) * time.Second
}
