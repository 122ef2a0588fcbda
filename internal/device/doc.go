// Package device provides the Device Registry for the Gray Logic hub.
//
// The registry is the single authoritative in-memory table of every device
// currently known to the gateway. It is written by the discovery listener,
// the telemetry ingester and the command router, and read by the router, the
// HTTP API and the event publishers.
//
// # Architecture
//
//	discovery reply ──┐
//	telemetry sample ─┼──▶ Registry.Upsert ──▶ map[id]*Record ──▶ Snapshot / Get
//	command response ─┘         │
//	                            └──▶ observers (MQTT, NATS, WebSocket, metrics)
//
// # Identity
//
// A device is identified by "{type}_{ip}_{port}". The identifier is the
// primary key and is never rewritten once a record exists. Type may itself
// contain underscores, so ParseID splits from the right.
//
// A record with Port 0 was created from telemetry alone and has no known
// command endpoint; the router refuses to dial it.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Records handed out are
// deep copies, so no caller ever observes a half-written record. Observers
// are notified after the lock is released.
//
// # Telemetry History
//
// SQLiteTelemetryHistory keeps a bounded local log of accepted samples for
// the HTTP API. It is not a registry store; the registry itself is never
// persisted.
package device
