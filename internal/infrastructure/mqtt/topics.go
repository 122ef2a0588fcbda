package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "grayhub"

// Topics builds grayhub MQTT topics under a common prefix.
//
//	topics := mqtt.NewTopics("grayhub")
//	topics.DeviceState("smart_lamp_10.0.0.5_41000")
//	// Returns: "grayhub/device/smart_lamp_10.0.0.5_41000/state"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders for prefix. An empty prefix uses
// DefaultTopicPrefix; surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus returns the gateway online/offline topic.
//
// Example: grayhub/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// RegistryEvents returns the topic registry-wide events (clears) are
// published on.
//
// Example: grayhub/system/registry
func (t Topics) RegistryEvents() string {
	return t.Prefix() + "/system/registry"
}

// DeviceState returns the retained state topic for a device.
//
// Example: grayhub/device/smart_lamp_10.0.0.5_41000/state
func (t Topics) DeviceState(deviceID string) string {
	return t.Prefix() + "/device/" + deviceID + "/state"
}

// DeviceRemoved returns the eviction notice topic for a device.
func (t Topics) DeviceRemoved(deviceID string) string {
	return t.Prefix() + "/device/" + deviceID + "/removed"
}

// Command returns the inbound command topic for a device.
//
// Example: grayhub/command/smart_lamp_10.0.0.5_41000
func (t Topics) Command(deviceID string) string {
	return t.Prefix() + "/command/" + deviceID
}

// AllCommands returns the wildcard matching every device command topic.
//
// Example: grayhub/command/+
func (t Topics) AllCommands() string {
	return t.Prefix() + "/command/+"
}

// CommandResult returns the topic command outcomes are published on.
func (t Topics) CommandResult(deviceID string) string {
	return t.Command(deviceID) + "/result"
}

// ParseCommand extracts the device ID from a command topic.
//
// Returns:
//   - string: The device ID
//   - bool: false if topic is not a command topic under this prefix
func (t Topics) ParseCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix()+"/command/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
