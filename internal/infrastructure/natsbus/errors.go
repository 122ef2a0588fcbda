package natsbus

import "errors"

var (
	// ErrDisabled indicates NATS integration is disabled in config.
	ErrDisabled = errors.New("natsbus: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("natsbus: connection failed")

	// ErrNotConnected is returned when publishing on a closed or disconnected client.
	ErrNotConnected = errors.New("natsbus: not connected")

	// ErrInvalidSubject is returned for an empty subject.
	ErrInvalidSubject = errors.New("natsbus: subject cannot be empty")
)
