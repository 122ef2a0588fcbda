package discovery

import "errors"

// Domain errors for the discovery package.
var (
	// ErrNotProbe is returned when a datagram on the discovery group is not
	// a GATEWAY_DISCOVERY probe.
	ErrNotProbe = errors.New("discovery: not a discovery probe")

	// ErrInvalidReply is returned when a discovery reply cannot be decoded
	// or lacks a device type.
	ErrInvalidReply = errors.New("discovery: invalid reply")

	// ErrInvalidGroup is returned when the configured group is not an IPv4
	// multicast address.
	ErrInvalidGroup = errors.New("discovery: invalid multicast group")
)
