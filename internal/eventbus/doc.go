// Package eventbus fans registry changes out to MQTT and NATS and accepts
// device commands over MQTT.
//
// The bridge registers as a registry observer. Observe only enqueues, so
// discovery and telemetry never wait on a broker; Run publishes from the
// queue.
//
// MQTT layout (prefix "grayhub"):
//
//	grayhub/device/{id}/state        retained Record JSON, cleared on removal
//	grayhub/device/{id}/removed      removal notice
//	grayhub/system/registry          registry.cleared notices
//	grayhub/command/{id}             inbound {"action": ..., "parameters": ...}
//	grayhub/command/{id}/result      command outcome
//
// NATS subjects are "{prefix}.{event kind}", e.g. grayhub.device.updated.
package eventbus
