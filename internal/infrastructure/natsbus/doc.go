// Package natsbus publishes registry events to a NATS server.
//
// Subjects are built from the configured prefix:
//
//	grayhub.device.created
//	grayhub.device.updated
//	grayhub.device.removed
//	grayhub.registry.cleared
//
// Payloads are JSON. Delivery is core NATS (at most once); consumers that
// need the full picture should start from GET /api/v1/devices and follow
// the subjects from there.
package natsbus
