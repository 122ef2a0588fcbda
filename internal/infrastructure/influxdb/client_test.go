package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "grayhub-dev-token",
		Org:           "grayhub",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the local InfluxDB or skips the test.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Connect(ctx, testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	c, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if c != nil {
		t.Error("Connect() returned a client while disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Connect(ctx, cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	c.Flush()
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name      string
		batch     int
		flush     int
		wantBatch uint
		wantFlush uint
	}{
		{"configured", 500, 2, 500, 2000},
		{"defaults", 0, 0, 100, 10000},
		{"negative", -1, -5, 100, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := clientOptions(config.InfluxDBConfig{BatchSize: tt.batch, FlushInterval: tt.flush})
			if opts.BatchSize() != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", opts.BatchSize(), tt.wantBatch)
			}
			if opts.FlushInterval() != tt.wantFlush {
				t.Errorf("FlushInterval() = %d, want %d", opts.FlushInterval(), tt.wantFlush)
			}
		})
	}
}

func TestRecordSample_NotConnected(t *testing.T) {
	c := &Client{}
	err := c.RecordSample(context.Background(), "lamp", device.Telemetry{Value: 1})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("RecordSample() error = %v, want ErrNotConnected", err)
	}
}

func TestTelemetryPoint(t *testing.T) {
	received := time.Unix(1700000500, 0)

	tests := []struct {
		name     string
		sample   device.Telemetry
		wantUnit string
		hasUnit  bool
		wantTime time.Time
	}{
		{
			name:     "plain unit",
			sample:   device.Telemetry{SensorType: "temperature", Value: 21.5, Unit: "°C", Timestamp: 1700000000, ReceivedAt: received},
			wantUnit: "°C",
			hasUnit:  true,
			wantTime: time.Unix(1700000000, 0),
		},
		{
			name:     "json state unit is not a tag",
			sample:   device.Telemetry{SensorType: "lamp_state", Value: 80, Unit: `{"power":"ON"}`, Timestamp: 1700000001, ReceivedAt: received},
			wantTime: time.Unix(1700000001, 0),
		},
		{
			name:     "missing timestamp uses receive time",
			sample:   device.Telemetry{SensorType: "brightness", Value: 3, Unit: "%", ReceivedAt: received},
			wantUnit: "%",
			hasUnit:  true,
			wantTime: received,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := telemetryPoint("dev-1", tt.sample)

			if p.Name() != TelemetryMeasurement {
				t.Errorf("Name() = %q", p.Name())
			}
			tags := map[string]string{}
			for _, tag := range p.TagList() {
				tags[tag.Key] = tag.Value
			}
			if tags["device_id"] != "dev-1" || tags["sensor_type"] != tt.sample.SensorType {
				t.Errorf("tags = %v", tags)
			}
			unit, ok := tags["unit"]
			if ok != tt.hasUnit || unit != tt.wantUnit {
				t.Errorf("unit tag = %q (present %v), want %q (present %v)", unit, ok, tt.wantUnit, tt.hasUnit)
			}
			fields := p.FieldList()
			if len(fields) != 1 || fields[0].Key != "value" || fields[0].Value != tt.sample.Value {
				t.Errorf("fields = %+v", fields)
			}
			if !p.Time().Equal(tt.wantTime) {
				t.Errorf("Time() = %v, want %v", p.Time(), tt.wantTime)
			}
		})
	}
}

func TestRecordSample_Integration(t *testing.T) {
	c := connectOrSkip(t)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	c.SetOnError(func(err error) {
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	})

	err := c.RecordSample(context.Background(), "temperature_sensor_127.0.0.1_41000", device.Telemetry{
		SensorType: "temperature", Value: 20.25, Unit: "°C", Timestamp: time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("RecordSample() error = %v", err)
	}
	c.Flush()
	if n := c.WriteFailures(); n != 0 {
		t.Errorf("WriteFailures() = %d, want 0", n)
	}
}
