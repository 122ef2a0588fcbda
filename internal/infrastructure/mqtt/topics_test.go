package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("grayhub")
	id := "smart_lamp_10.0.0.5_41000"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"system status", topics.SystemStatus(), "grayhub/system/status"},
		{"registry events", topics.RegistryEvents(), "grayhub/system/registry"},
		{"device state", topics.DeviceState(id), "grayhub/device/smart_lamp_10.0.0.5_41000/state"},
		{"device removed", topics.DeviceRemoved(id), "grayhub/device/smart_lamp_10.0.0.5_41000/removed"},
		{"command", topics.Command(id), "grayhub/command/smart_lamp_10.0.0.5_41000"},
		{"all commands", topics.AllCommands(), "grayhub/command/+"},
		{"command result", topics.CommandResult(id), "grayhub/command/smart_lamp_10.0.0.5_41000/result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewTopicsPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "grayhub/system/status"},
		{"/site-a/hub/", "site-a/hub/system/status"},
		{"lab", "lab/system/status"},
	}
	for _, tt := range tests {
		if got := NewTopics(tt.prefix).SystemStatus(); got != tt.want {
			t.Errorf("NewTopics(%q).SystemStatus() = %q, want %q", tt.prefix, got, tt.want)
		}
	}

	var zero Topics
	if zero.SystemStatus() != "grayhub/system/status" {
		t.Errorf("zero Topics uses prefix %q", zero.Prefix())
	}
}

func TestParseCommand(t *testing.T) {
	topics := NewTopics("grayhub")

	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"grayhub/command/air_conditioner_10.0.0.2_4000", "air_conditioner_10.0.0.2_4000", true},
		{"grayhub/command/lamp/result", "", false},
		{"grayhub/command/", "", false},
		{"other/command/lamp", "", false},
		{"grayhub/device/lamp/state", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := topics.ParseCommand(tt.topic)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("ParseCommand() = %q, %v; want %q, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
