// Package config loads config.yaml for grayhub and grayhub-agent.
//
// Values come from three layers, each overriding the one before: built-in
// defaults, the YAML file, then GRAYHUB_* environment variables (see
// envVars in env.go). Validate reports every problem at once.
//
// Both binaries share one file. The gateway reads the gateway, database,
// mqtt, nats, influxdb, api and websocket sections; an agent reads agent
// plus gateway.discovery and can run with no file at all via LoadOrDefault.
//
// Broker passwords and tokens should come from the environment. The
// device-facing ports are unauthenticated and belong on a trusted LAN.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
