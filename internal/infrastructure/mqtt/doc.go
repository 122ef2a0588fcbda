// Package mqtt connects the gateway to an MQTT broker.
//
// The client reconnects on its own, replays subscriptions after each
// reconnect and keeps a retained presence message on the system status
// topic; the broker publishes the offline variant as the gateway's will.
//
// # Topics
//
// All topics live under a configurable prefix (default "grayhub"):
//
//	grayhub/system/status              gateway presence (retained)
//	grayhub/system/registry            registry-wide events
//	grayhub/device/{id}/state          device record (retained)
//	grayhub/device/{id}/removed        eviction notice
//	grayhub/command/{id}               inbound {action, parameters}
//	grayhub/command/{id}/result        outcome of an inbound command
//
// The event bridge in internal/eventbus is the only producer and consumer.
package mqtt
