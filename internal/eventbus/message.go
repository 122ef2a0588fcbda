package eventbus

import (
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Message is the JSON body published for every registry event. The
// WebSocket hub sends the same shape.
type Message struct {
	Event     device.EventKind `json:"event"`
	DeviceID  string           `json:"device_id,omitempty"`
	Device    *device.Record   `json:"device,omitempty"`
	Count     int              `json:"count,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewMessage converts a registry event. Removal notices carry only the ID.
func NewMessage(e device.Event, at time.Time) Message {
	msg := Message{Event: e.Kind, Timestamp: at.UTC()}
	switch e.Kind {
	case device.EventCleared:
		msg.Count = e.Count
	case device.EventRemoved:
		msg.DeviceID = e.Record.ID
	default:
		rec := e.Record
		msg.DeviceID = rec.ID
		msg.Device = &rec
	}
	return msg
}
