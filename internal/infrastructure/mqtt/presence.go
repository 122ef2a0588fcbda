package mqtt

import (
	"encoding/json"
	"time"
)

// Presence states published on Topics.SystemStatus.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Reasons attached to offline presence messages.
const (
	reasonShutdown   = "graceful_shutdown"
	reasonConnection = "unexpected_disconnect"
)

// Presence is the retained gateway status message. The broker publishes the
// offline variant as the gateway's will when the connection drops.
type Presence struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func presencePayload(status, clientID, reason string, at time.Time) []byte {
	b, _ := json.Marshal(Presence{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: at.UTC().Truncate(time.Second),
	})
	return b
}
