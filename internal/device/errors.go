package device

import "errors"

var (
	// ErrDeviceNotFound means no registry record has the requested ID.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidID means an ID is empty or is not "{type}_{ip}_{port}".
	ErrInvalidID = errors.New("device: invalid id")
)
