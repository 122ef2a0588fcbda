package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/appliance"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("GRAYHUB_CONFIG", "")

	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			args: nil,
			want: options{configPath: defaultConfigPath, port: -1},
		},
		{
			name: "all flags",
			args: []string{"-config", "/tmp/a.yaml", "-type", "air_conditioner", "-port", "7001"},
			want: options{configPath: "/tmp/a.yaml", deviceType: "air_conditioner", port: 7001},
		},
		{
			name:    "unknown flag",
			args:    []string{"-bogus"},
			wantErr: true,
		},
		{
			name:    "stray argument",
			args:    []string{"lamp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFlags_Help(t *testing.T) {
	_, err := parseFlags([]string{"-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("parseFlags(-h) error = %v, want flag.ErrHelp", err)
	}
}

func TestAgentConfig(t *testing.T) {
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	applyOptions(cfg, options{deviceType: "temperature_sensor", port: 0})
	cfg.Agent.AdvertiseIP = "192.168.1.20"
	cfg.Agent.TelemetryInterval = 5 * time.Second

	ac := agentConfig(cfg)

	if cfg.Agent.DeviceType != "temperature_sensor" {
		t.Errorf("DeviceType = %q, want temperature_sensor", cfg.Agent.DeviceType)
	}
	if ac.ListenAddr != "0.0.0.0:0" {
		t.Errorf("ListenAddr = %q, want 0.0.0.0:0", ac.ListenAddr)
	}
	if ac.AdvertiseIP != "192.168.1.20" {
		t.Errorf("AdvertiseIP = %q", ac.AdvertiseIP)
	}
	if ac.Discovery.Group != cfg.Gateway.Discovery.Group ||
		ac.Discovery.Port != cfg.Gateway.Discovery.Port ||
		ac.Discovery.ReplyPort != cfg.Gateway.Discovery.ReplyPort {
		t.Errorf("Discovery = %+v, want gateway discovery settings", ac.Discovery)
	}
	if ac.TelemetryPort != cfg.Gateway.TelemetryPort {
		t.Errorf("TelemetryPort = %d, want %d", ac.TelemetryPort, cfg.Gateway.TelemetryPort)
	}
	if ac.TelemetryInterval != 5*time.Second {
		t.Errorf("TelemetryInterval = %v, want 5s", ac.TelemetryInterval)
	}
}

func TestApplyOptions_KeepsConfigWhenUnset(t *testing.T) {
	cfg := &config.Config{Agent: config.AgentConfig{DeviceType: "smart_lamp", CommandPort: 7000}}
	applyOptions(cfg, options{port: -1})

	if cfg.Agent.DeviceType != "smart_lamp" || cfg.Agent.CommandPort != 7000 {
		t.Errorf("Agent = %+v, want config values untouched", cfg.Agent)
	}
}

func TestRun_UnknownDeviceType(t *testing.T) {
	opts := options{
		configPath: filepath.Join(t.TempDir(), "missing.yaml"),
		deviceType: "toaster",
		port:       0,
	}

	err := run(context.Background(), opts)
	if !errors.Is(err, appliance.ErrUnknownType) {
		t.Errorf("run() error = %v, want ErrUnknownType", err)
	}
}
