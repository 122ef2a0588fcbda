package config

import "time"

// Eviction modes for the discovery cycle.
const (
	// EvictionTTL drops a record once it has gone StaleAfterCycles
	// discovery periods without being heard from.
	EvictionTTL = "ttl"

	// EvictionReset empties the registry at the start of every cycle.
	EvictionReset = "reset"
)

// Config is the whole of config.yaml after defaults and GRAYHUB_*
// overrides have been applied.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Agent     AgentConfig     `yaml:"agent"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	NATS      NATSConfig      `yaml:"nats"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// GatewayConfig holds the gateway's listeners and dispatch limits.
type GatewayConfig struct {
	// ListenHost is bound by the TCP command port and both UDP listeners.
	ListenHost string `yaml:"listen_host"`

	CommandPort   int `yaml:"command_port"`   // TCP, default 6000
	TelemetryPort int `yaml:"telemetry_port"` // UDP, default 50002

	Discovery DiscoveryConfig `yaml:"discovery"`

	// DispatchTimeout bounds one session with an agent. Default 5s.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`

	// MaxConcurrentDispatch caps simultaneous agent sessions. Default 64.
	MaxConcurrentDispatch int `yaml:"max_concurrent_dispatch"`
}

// DiscoveryConfig is shared by the gateway (sender) and agents
// (responders).
type DiscoveryConfig struct {
	Group     string `yaml:"group"`      // default 224.0.0.1
	Port      int    `yaml:"port"`       // agents listen here, default 50000
	ReplyPort int    `yaml:"reply_port"` // gateway listens here, default 50001
	TTL       int    `yaml:"ttl"`        // multicast hop limit, default 2

	// Interface names the NIC for multicast. Empty lets the kernel choose.
	Interface string `yaml:"interface,omitempty"`

	Interval time.Duration `yaml:"interval"` // default 15s
	Eviction string        `yaml:"eviction"` // EvictionTTL or EvictionReset

	// StaleAfterCycles applies to EvictionTTL only. Default 3.
	StaleAfterCycles int `yaml:"stale_after_cycles"`
}

// StaleAfter is the record age at which EvictionTTL removes a device.
func (d DiscoveryConfig) StaleAfter() time.Duration {
	return d.Interval * time.Duration(d.StaleAfterCycles)
}

// AgentConfig configures grayhub-agent.
type AgentConfig struct {
	// DeviceType selects the simulated appliance ("smart_lamp").
	DeviceType string `yaml:"device_type"`

	ListenHost string `yaml:"listen_host"`

	// CommandPort 0 picks an ephemeral port.
	CommandPort int `yaml:"command_port"`

	// AdvertiseIP replaces the auto-detected address in discovery replies
	// and in the device ID.
	AdvertiseIP string `yaml:"advertise_ip,omitempty"`

	// TelemetryInterval replaces the appliance's own push period when set.
	TelemetryInterval time.Duration `yaml:"telemetry_interval,omitempty"`
}

// DatabaseConfig configures the SQLite telemetry history store.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds

	// HistoryRetention is the age at which rows are pruned. Default 168h.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig configures registry event publishing over MQTT.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig delays are in seconds. MaxAttempts 0 retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// NATSConfig configures registry event publishing over NATS.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Name          string `yaml:"name"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig values are in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

func (t APITimeoutConfig) ReadTimeout() time.Duration  { return seconds(t.Read) }
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }
func (t APITimeoutConfig) IdleTimeout() time.Duration  { return seconds(t.Idle) }

// CORSConfig lists permitted origins. Empty permits all.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig configures the event stream. Intervals are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

func (w WebSocketConfig) PingEvery() time.Duration { return seconds(w.PingInterval) }
func (w WebSocketConfig) PongWait() time.Duration  { return seconds(w.PongTimeout) }

// InfluxDBConfig configures the time-series telemetry sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
