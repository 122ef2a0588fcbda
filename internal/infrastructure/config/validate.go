package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate reports every problem in the configuration at once. Sections
// for optional subsystems are checked only when enabled.
func (c *Config) Validate() error {
	var v validator

	v.require(c.Site.ID != "", "site.id is required")

	v.port("gateway.command_port", c.Gateway.CommandPort)
	v.port("gateway.telemetry_port", c.Gateway.TelemetryPort)
	v.port("gateway.discovery.port", c.Gateway.Discovery.Port)
	v.port("gateway.discovery.reply_port", c.Gateway.Discovery.ReplyPort)
	if c.Agent.CommandPort != 0 {
		v.port("agent.command_port", c.Agent.CommandPort)
	}

	d := c.Gateway.Discovery
	group := net.ParseIP(d.Group)
	v.require(group != nil && group.To4() != nil && group.IsMulticast(),
		"gateway.discovery.group must be an IPv4 multicast address")
	v.require(d.TTL >= 1 && d.TTL <= 255, "gateway.discovery.ttl must be between 1 and 255")
	v.require(d.Interval > 0, "gateway.discovery.interval must be positive")
	switch d.Eviction {
	case EvictionTTL:
		v.require(d.StaleAfterCycles >= 1, "gateway.discovery.stale_after_cycles must be at least 1")
	case EvictionReset:
	default:
		v.fail(`gateway.discovery.eviction must be "ttl" or "reset"`)
	}
	v.require(c.Gateway.DispatchTimeout > 0, "gateway.dispatch_timeout must be positive")
	v.require(c.Gateway.MaxConcurrentDispatch >= 1, "gateway.max_concurrent_dispatch must be at least 1")

	v.require(c.Agent.AdvertiseIP == "" || net.ParseIP(c.Agent.AdvertiseIP) != nil,
		"agent.advertise_ip must be an IP address")

	v.require(!c.Database.Enabled || c.Database.Path != "", "database.path is required")
	v.require(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	v.require(!c.NATS.Enabled || c.NATS.URL != "", "nats.url is required when nats is enabled")
	v.require(!c.InfluxDB.Enabled || (c.InfluxDB.URL != "" && c.InfluxDB.Bucket != ""),
		"influxdb.url and influxdb.bucket are required when influxdb is enabled")
	if c.API.Enabled {
		v.port("api.port", c.API.Port)
	}

	return v.err()
}

// validator collects failures so Validate can report them together.
type validator struct {
	problems []error
}

func (v *validator) fail(msg string) {
	v.problems = append(v.problems, errors.New(msg))
}

func (v *validator) require(ok bool, msg string) {
	if !ok {
		v.fail(msg)
	}
}

func (v *validator) port(name string, p int) {
	v.require(p >= 1 && p <= 65535, name+" must be between 1 and 65535")
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("%d configuration errors: %w", len(v.problems), errors.Join(v.problems...))
}
