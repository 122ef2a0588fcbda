package config

import (
	"os"
	"strconv"
)

// envVar binds one GRAYHUB_* variable to a field.
type envVar struct {
	name string
	set  func(c *Config, v string)
}

func text(field func(*Config) *string) func(*Config, string) {
	return func(c *Config, v string) { *field(c) = v }
}

// number ignores values that do not parse.
func number(field func(*Config) *int) func(*Config, string) {
	return func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*field(c) = n
		}
	}
}

// envVars lists every supported override. Secrets belong here rather than
// in the YAML file.
var envVars = []envVar{
	{"GRAYHUB_GATEWAY_LISTEN_HOST", text(func(c *Config) *string { return &c.Gateway.ListenHost })},
	{"GRAYHUB_GATEWAY_COMMAND_PORT", number(func(c *Config) *int { return &c.Gateway.CommandPort })},
	{"GRAYHUB_GATEWAY_TELEMETRY_PORT", number(func(c *Config) *int { return &c.Gateway.TelemetryPort })},
	{"GRAYHUB_DISCOVERY_GROUP", text(func(c *Config) *string { return &c.Gateway.Discovery.Group })},
	{"GRAYHUB_DISCOVERY_PORT", number(func(c *Config) *int { return &c.Gateway.Discovery.Port })},
	{"GRAYHUB_DISCOVERY_REPLY_PORT", number(func(c *Config) *int { return &c.Gateway.Discovery.ReplyPort })},
	{"GRAYHUB_DISCOVERY_EVICTION", text(func(c *Config) *string { return &c.Gateway.Discovery.Eviction })},

	{"GRAYHUB_AGENT_DEVICE_TYPE", text(func(c *Config) *string { return &c.Agent.DeviceType })},
	{"GRAYHUB_AGENT_COMMAND_PORT", number(func(c *Config) *int { return &c.Agent.CommandPort })},
	{"GRAYHUB_AGENT_ADVERTISE_IP", text(func(c *Config) *string { return &c.Agent.AdvertiseIP })},

	{"GRAYHUB_DATABASE_PATH", text(func(c *Config) *string { return &c.Database.Path })},
	{"GRAYHUB_MQTT_HOST", text(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"GRAYHUB_MQTT_USERNAME", text(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"GRAYHUB_MQTT_PASSWORD", text(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"GRAYHUB_NATS_URL", text(func(c *Config) *string { return &c.NATS.URL })},
	{"GRAYHUB_API_HOST", text(func(c *Config) *string { return &c.API.Host })},
	{"GRAYHUB_INFLUXDB_TOKEN", text(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"GRAYHUB_LOG_LEVEL", text(func(c *Config) *string { return &c.Logging.Level })},
}

// applyEnvOverrides copies every non-empty GRAYHUB_* variable in envVars
// onto cfg.
func applyEnvOverrides(cfg *Config) {
	for _, ev := range envVars {
		if v := os.Getenv(ev.name); v != "" {
			ev.set(cfg, v)
		}
	}
}
