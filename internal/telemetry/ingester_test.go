package telemetry

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

type recordingSink struct {
	mu      sync.Mutex
	samples map[string][]device.Telemetry
	err     error
}

func (s *recordingSink) RecordSample(_ context.Context, deviceID string, t device.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == nil {
		s.samples = make(map[string][]device.Telemetry)
	}
	s.samples[deviceID] = append(s.samples[deviceID], t)
	return s.err
}

func (s *recordingSink) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples[id])
}

func mustSample(t *testing.T, s *wire.SensorSample) []byte {
	t.Helper()
	b, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	return b
}

var sensorSrc = &net.UDPAddr{IP: net.IPv4(192, 168, 1, 40), Port: 51234}

func TestHandleDatagram_CreatesPlaceholder(t *testing.T) {
	tests := []struct {
		name     string
		sample   wire.SensorSample
		wantType string
	}{
		{
			name:     "type from id",
			sample:   wire.SensorSample{DeviceID: "temperature_sensor_192.168.1.40_41000", SensorType: "temperature", Value: 21.5, Unit: "°C", Timestamp: 1700000000},
			wantType: "temperature_sensor",
		},
		{
			name:     "unparseable id falls back to sensor type",
			sample:   wire.SensorSample{DeviceID: "sensor7", SensorType: "brightness", Value: 40, Unit: "%", Timestamp: 1700000001},
			wantType: "brightness",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := device.NewRegistry()
			ing := NewIngester("127.0.0.1:0", reg)

			rec, err := ing.HandleDatagram(context.Background(), mustSample(t, &tt.sample), sensorSrc)
			if err != nil {
				t.Fatalf("HandleDatagram() error = %v", err)
			}
			if rec.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", rec.Type, tt.wantType)
			}
			if rec.IP != "192.168.1.40" {
				t.Errorf("IP = %q, want datagram source", rec.IP)
			}
			if rec.Port != 0 || rec.Routable() {
				t.Errorf("placeholder must be telemetry-only, got port %d", rec.Port)
			}
			if rec.Status != device.EmptyStatus {
				t.Errorf("Status = %q, want %q", rec.Status, device.EmptyStatus)
			}
			if rec.Telemetry == nil || rec.Telemetry.Value != tt.sample.Value {
				t.Errorf("Telemetry = %+v, want value %v", rec.Telemetry, tt.sample.Value)
			}
		})
	}
}

func TestHandleDatagram_JSONUnitBecomesStatus(t *testing.T) {
	reg := device.NewRegistry()
	ing := NewIngester("127.0.0.1:0", reg)

	state := `{"power":"ON","brightness":80}`
	sample := wire.SensorSample{DeviceID: "smart_lamp_192.168.1.40_41000", SensorType: "lamp_state", Value: 80, Unit: state, Timestamp: 1}

	rec, err := ing.HandleDatagram(context.Background(), mustSample(t, &sample), sensorSrc)
	if err != nil {
		t.Fatalf("HandleDatagram() error = %v", err)
	}
	if rec.Status != state {
		t.Errorf("Status = %q, want %q", rec.Status, state)
	}
}

func TestHandleDatagram_KeepsDiscoveredEndpoint(t *testing.T) {
	reg := device.NewRegistry()
	id := "air_conditioner_10.0.0.9_42000"
	if _, _, err := reg.Upsert(id, device.Update{
		Endpoint: &device.Endpoint{Type: "air_conditioner", IP: "10.0.0.9", Port: 42000},
		Status:   device.StringPtr(`{"power":"OFF"}`),
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	ing := NewIngester("127.0.0.1:0", reg)
	fixed := time.Unix(1700000100, 0)
	ing.now = func() time.Time { return fixed }

	sample := wire.SensorSample{DeviceID: id, SensorType: "ac_state", Value: 22, Unit: "°C", Timestamp: 5}
	rec, err := ing.HandleDatagram(context.Background(), mustSample(t, &sample), sensorSrc)
	if err != nil {
		t.Fatalf("HandleDatagram() error = %v", err)
	}

	if rec.Port != 42000 || rec.IP != "10.0.0.9" {
		t.Errorf("endpoint changed to %s:%d", rec.IP, rec.Port)
	}
	if rec.Status != `{"power":"OFF"}` {
		t.Errorf("non-JSON unit replaced status: %q", rec.Status)
	}
	if !rec.LastSeen.Equal(fixed) {
		t.Errorf("LastSeen = %v, want %v", rec.LastSeen, fixed)
	}
}

func TestHandleDatagram_Malformed(t *testing.T) {
	reg := device.NewRegistry()
	ing := NewIngester("127.0.0.1:0", reg)

	inputs := map[string][]byte{
		"garbage":    {0x0a, 0xff},
		"missing id": mustSample(t, &wire.SensorSample{SensorType: "temperature", Value: 1}),
	}
	for name, payload := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := ing.HandleDatagram(context.Background(), payload, sensorSrc)
			if !errors.Is(err, ErrMalformedSample) {
				t.Errorf("HandleDatagram() error = %v, want ErrMalformedSample", err)
			}
		})
	}
	if reg.Count() != 0 {
		t.Errorf("registry has %d records after malformed input", reg.Count())
	}
}

func TestHandleDatagram_ForwardsToSinks(t *testing.T) {
	reg := device.NewRegistry()
	ing := NewIngester("127.0.0.1:0", reg)

	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}
	ing.AddSink(failing)
	ing.AddSink(ok)

	id := "temperature_sensor_192.168.1.40_41000"
	sample := wire.SensorSample{DeviceID: id, SensorType: "temperature", Value: 19, Unit: "°C", Timestamp: 9}
	if _, err := ing.HandleDatagram(context.Background(), mustSample(t, &sample), sensorSrc); err != nil {
		t.Fatalf("HandleDatagram() error = %v", err)
	}

	if ok.count(id) != 1 {
		t.Errorf("sink after failing sink received %d samples, want 1", ok.count(id))
	}
	if failing.count(id) != 1 {
		t.Errorf("failing sink received %d samples, want 1", failing.count(id))
	}
}

func TestIngester_RunOverLoopback(t *testing.T) {
	reg := device.NewRegistry()
	ing := NewIngester("127.0.0.1:0", reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ing.Listen(ctx); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	conn, err := net.DialUDP("udp4", nil, ing.Addr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("DialUDP() error = %v", err)
	}
	defer conn.Close()

	id := "brightness_sensor_127.0.0.1_43000"
	payload := mustSample(t, &wire.SensorSample{DeviceID: id, SensorType: "brightness", Value: 55, Unit: "%", Timestamp: 3})
	if _, err := conn.Write([]byte{0xff, 0xff}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for reg.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	rec, err := reg.Get(id)
	if err != nil {
		t.Fatalf("sample not applied: %v", err)
	}
	if rec.IP != "127.0.0.1" {
		t.Errorf("IP = %q, want 127.0.0.1", rec.IP)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

type countingPruner struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPruner) PruneHistory(context.Context, time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 1, nil
}

func TestRunRetention(t *testing.T) {
	p := &countingPruner{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := RunRetention(ctx, p, time.Hour, 10*time.Millisecond, nil); err != nil {
		t.Fatalf("RunRetention() error = %v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == 0 {
		t.Error("PruneHistory never called")
	}
}

func TestRunRetention_Disabled(t *testing.T) {
	p := &countingPruner{}
	if err := RunRetention(context.Background(), p, 0, time.Millisecond, nil); err != nil {
		t.Fatalf("RunRetention() error = %v", err)
	}
	if p.calls != 0 {
		t.Errorf("PruneHistory called %d times with retention disabled", p.calls)
	}
}
