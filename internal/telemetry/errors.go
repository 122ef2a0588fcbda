package telemetry

import "errors"

// Domain errors for the telemetry package.
var (
	// ErrMalformedSample is returned when a datagram is not a decodable
	// SensorSample or lacks a device ID.
	ErrMalformedSample = errors.New("telemetry: malformed sample")
)
