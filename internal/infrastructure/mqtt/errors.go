package mqtt

import "errors"

// Errors returned by the MQTT client. Broker-side failures wrap the paho
// error; check with errors.Is.
var (
	// ErrConnectionFailed is returned by Connect when the broker cannot be
	// reached within the connect timeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while the client is between reconnects.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed wraps publish timeouts, broker errors and oversized
	// payloads.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps subscribe timeouts, broker errors and nil
	// handlers.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
