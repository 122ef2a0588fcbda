// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic hub.
//
// This package provides:
//   - REST endpoints for the device registry and telemetry history
//   - Device commands over HTTP, sharing the dispatch path of the binary
//     CONTROL_DEVICE request
//   - WebSocket hub broadcasting registry events
//   - Prometheus exposition at /metrics
//   - Middleware: request IDs, access logging, panic recovery, CORS and a body limit
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/metrics
//	GET  /api/v1/devices
//	GET  /api/v1/devices/stats
//	GET  /api/v1/devices/{id}
//	POST /api/v1/devices/{id}/commands
//	GET  /api/v1/devices/{id}/history
//	GET  /api/v1/ws
//	GET  /metrics
//
// # Graceful Degradation
//
// History returns 503 when the SQLite store is disabled, and commands
// return 503 when no commander is configured. Everything else works from
// the in-memory registry alone.
package api
