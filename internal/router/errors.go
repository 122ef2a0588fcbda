package router

import "errors"

// Domain errors for the router package.
var (
	// ErrMissingDeviceID is returned when a device command names no device.
	ErrMissingDeviceID = errors.New("router: missing device_id")

	// ErrNoEndpoint is returned when the target device has no command
	// endpoint (telemetry-only placeholder). No connection is attempted.
	ErrNoEndpoint = errors.New("router: no command endpoint")

	// ErrNoResponse is returned when the agent closed the session without
	// sending a response.
	ErrNoResponse = errors.New("router: no response from device")
)

// ErrInvalidCommand is returned when a JSON command body cannot be decoded
// or names no action.
var ErrInvalidCommand = errors.New("router: invalid command body")
