package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: defaults, then the YAML
// file at path, then GRAYHUB_* environment variables. The result is
// validated.
//
// Parameters:
//   - path: YAML configuration file
//
// Returns:
//   - *Config: Validated configuration
//   - error: Read, parse or validation failure
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return finalise(cfg)
}

// LoadOrDefault is Load without the file layer when path does not exist.
// Device agents usually run that way.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finalise(defaultConfig())
	}
	return cfg, err
}

func finalise(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Site = SiteConfig{ID: "site-001", Name: "Gray Logic Hub"}

	cfg.Gateway = GatewayConfig{
		ListenHost:            "0.0.0.0",
		CommandPort:           6000,
		TelemetryPort:         50002,
		DispatchTimeout:       5 * time.Second,
		MaxConcurrentDispatch: 64,
		Discovery: DiscoveryConfig{
			Group:            "224.0.0.1",
			Port:             50000,
			ReplyPort:        50001,
			TTL:              2,
			Interval:         15 * time.Second,
			Eviction:         EvictionTTL,
			StaleAfterCycles: 3,
		},
	}
	cfg.Agent = AgentConfig{DeviceType: "smart_lamp", ListenHost: "0.0.0.0"}

	cfg.Database = DatabaseConfig{
		Path:             "./data/grayhub.db",
		WALMode:          true,
		BusyTimeout:      5,
		HistoryRetention: 7 * 24 * time.Hour,
	}
	cfg.MQTT = MQTTConfig{
		Broker:      MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "grayhub-gateway"},
		QoS:         1,
		TopicPrefix: "grayhub",
		Reconnect:   MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
	}
	cfg.NATS = NATSConfig{URL: "nats://127.0.0.1:4222", SubjectPrefix: "grayhub", Name: "grayhub-gateway"}
	cfg.InfluxDB = InfluxDBConfig{BatchSize: 100, FlushInterval: 10}

	cfg.API = APIConfig{
		Enabled:  true,
		Host:     "0.0.0.0",
		Port:     8080,
		Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
	}
	cfg.WebSocket = WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}
	return cfg
}
