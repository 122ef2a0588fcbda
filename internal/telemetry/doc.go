// Package telemetry receives sensor samples pushed by device agents.
//
// Agents send one serialized SensorSample per UDP datagram to the gateway's
// telemetry port. The Ingester decodes each datagram, creates a telemetry-only
// placeholder record when the device has not been discovered yet, refreshes
// the record's last sample, and forwards accepted samples to optional sinks
// (SQLite history, InfluxDB).
//
// Thread Safety:
//
// Ingester.Run is safe to call once. Sinks are called from the receive
// goroutine and must not block for long.
package telemetry
