package device

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// EmptyStatus is the status assigned when a device reports none.
const EmptyStatus = "{}"

// Record is one entry in the registry.
//
// Status is an opaque JSON document owned by the device; the gateway stores
// and relays it without interpreting it.
type Record struct {
	// Identity
	ID   string `json:"id"`
	Type string `json:"type"`

	// Command endpoint. Port 0 means telemetry-only.
	IP   string `json:"ip"`
	Port int    `json:"port"`

	// Current state
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`

	// Telemetry is the most recent sample, nil until one arrives.
	Telemetry *Telemetry `json:"last_telemetry,omitempty"`
}

// Telemetry is the last sensor sample received for a device.
type Telemetry struct {
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  int64     `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// DeepCopy creates a complete independent copy of the Record.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}
	cpy := *r
	if r.Telemetry != nil {
		t := *r.Telemetry
		cpy.Telemetry = &t
	}
	return &cpy
}

// Routable reports whether the record has a command endpoint.
func (r *Record) Routable() bool {
	return r.Port > 0 && r.IP != ""
}

// Address returns the "ip:port" command endpoint.
func (r *Record) Address() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// Freshness returns the most recent time the device was heard from, by
// discovery reply or telemetry.
func (r *Record) Freshness() time.Time {
	if r.Telemetry != nil && r.Telemetry.ReceivedAt.After(r.LastSeen) {
		return r.Telemetry.ReceivedAt
	}
	return r.LastSeen
}

// SensorDataJSON renders the last sample as {"value":…,"timestamp":…}, the
// shape clients expect under the "sensor_data" attribute. Returns "" when no
// sample has been received.
func (r *Record) SensorDataJSON() string {
	if r.Telemetry == nil {
		return ""
	}
	b, err := json.Marshal(struct {
		Value     float64 `json:"value"`
		Timestamp int64   `json:"timestamp"`
	}{r.Telemetry.Value, r.Telemetry.Timestamp})
	if err != nil {
		return ""
	}
	return string(b)
}

// Endpoint is the type/ip/port triple a device is addressed by.
type Endpoint struct {
	Type string
	IP   string
	Port int
}

// FormatID builds the canonical device identifier "{type}_{ip}_{port}".
func FormatID(deviceType, ip string, port int) string {
	return deviceType + "_" + ip + "_" + strconv.Itoa(port)
}

// ParseID splits a device identifier into its endpoint.
//
// The identifier is split from the right so device types containing
// underscores ("air_conditioner") survive.
func ParseID(id string) (Endpoint, error) {
	portSep := strings.LastIndexByte(id, '_')
	if portSep <= 0 {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	port, err := strconv.Atoi(id[portSep+1:])
	if err != nil || port < 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: %q has no valid port", ErrInvalidID, id)
	}

	rest := id[:portSep]
	ipSep := strings.LastIndexByte(rest, '_')
	if ipSep <= 0 || ipSep == len(rest)-1 {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return Endpoint{Type: rest[:ipSep], IP: rest[ipSep+1:], Port: port}, nil
}

// Update describes a partial change to a record. Nil or zero fields leave
// the stored value untouched.
type Update struct {
	// Endpoint, when set, is authoritative for type/ip/port. Discovery
	// replies set it so a telemetry-created record becomes routable.
	Endpoint *Endpoint

	// Defaults supplies type/ip/port only when this update creates the
	// record. Telemetry uses it for placeholders.
	Defaults *Endpoint

	Status    *string
	LastSeen  time.Time
	Telemetry *Telemetry
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// EventKind identifies a registry change.
type EventKind string

// Registry event kinds.
const (
	EventCreated EventKind = "device.created"
	EventUpdated EventKind = "device.updated"
	EventRemoved EventKind = "device.removed"
	EventCleared EventKind = "registry.cleared"
)

// Event is delivered to registry observers after each change.
// For EventCleared, Record is zero, Count holds the number removed and
// Removed lists those records ordered by ID.
type Event struct {
	Kind    EventKind
	Record  Record
	Count   int
	Removed []Record
}

// Stats holds registry counters.
type Stats struct {
	Total         int `json:"total"`
	Routable      int `json:"routable"`
	TelemetryOnly int `json:"telemetry_only"`
}
