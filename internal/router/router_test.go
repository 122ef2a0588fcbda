package router

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// mockAgent is a loopback device agent answering each session with reply.
type mockAgent struct {
	t  *testing.T
	ln net.Listener

	mu       sync.Mutex
	received []wire.DeviceCommand

	// handle decides what to do with a session; nil replies with reply.
	handle func(conn net.Conn, cmd wire.DeviceCommand)
	reply  wire.DeviceResponse
}

func newMockAgent(t *testing.T, reply wire.DeviceResponse) *mockAgent {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	a := &mockAgent{t: t, ln: ln, reply: reply}
	t.Cleanup(func() { ln.Close() })
	go a.serve()
	return a
}

func (a *mockAgent) serve() {
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			var cmd wire.DeviceCommand
			if err := wire.ReadMessage(conn, &cmd); err != nil {
				return
			}
			a.mu.Lock()
			a.received = append(a.received, cmd)
			handle := a.handle
			a.mu.Unlock()

			if handle != nil {
				handle(conn, cmd)
				return
			}
			_ = wire.WriteMessage(conn, &a.reply)
		}()
	}
}

func (a *mockAgent) setHandle(fn func(conn net.Conn, cmd wire.DeviceCommand)) {
	a.mu.Lock()
	a.handle = fn
	a.mu.Unlock()
}

func (a *mockAgent) port() int {
	return a.ln.Addr().(*net.TCPAddr).Port
}

func (a *mockAgent) commands() []wire.DeviceCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]wire.DeviceCommand(nil), a.received...)
}

// register adds a routable record pointing at the agent.
func (a *mockAgent) register(t *testing.T, reg *device.Registry, deviceType string) string {
	t.Helper()
	id := device.FormatID(deviceType, "127.0.0.1", a.port())
	if _, _, err := reg.Upsert(id, device.Update{
		Endpoint: &device.Endpoint{Type: deviceType, IP: "127.0.0.1", Port: a.port()},
		Status:   device.StringPtr(`{"power":"OFF"}`),
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	return id
}

func newTestRouter(timeout time.Duration, max int) (*Router, *device.Registry) {
	reg := device.NewRegistry()
	return New(reg, NewDispatcher(timeout, max)), reg
}

func TestHandle_ListDevices(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)

	for _, id := range []string{"smart_lamp_10.0.0.3_3", "air_conditioner_10.0.0.1_1", "temperature_sensor_10.0.0.2_0"} {
		if _, _, err := reg.Upsert(id, device.Update{}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	_, _, _ = reg.Upsert("temperature_sensor_10.0.0.2_0", device.Update{
		Telemetry: &device.Telemetry{SensorType: "temperature", Value: 21.5, Unit: "°C", Timestamp: 1700000000},
	})

	resp := r.Handle(context.Background(), &wire.ClientRequest{Command: wire.CmdListDevices})
	if !resp.Success || resp.Message != MsgDevicesRetrieved {
		t.Fatalf("response = %+v", resp)
	}
	if len(resp.Devices) != 3 {
		t.Fatalf("len(Devices) = %d, want 3", len(resp.Devices))
	}
	for i := 1; i < len(resp.Devices); i++ {
		if resp.Devices[i-1].DeviceID >= resp.Devices[i].DeviceID {
			t.Errorf("devices not sorted: %q before %q", resp.Devices[i-1].DeviceID, resp.Devices[i].DeviceID)
		}
	}

	sensor := resp.Devices[2]
	if got := sensor.Attributes[SensorDataAttribute]; got != `{"value":21.5,"timestamp":1700000000}` {
		t.Errorf("sensor_data = %q", got)
	}
	if _, ok := resp.Devices[0].Attributes[SensorDataAttribute]; ok {
		t.Error("sensor_data present on device without telemetry")
	}
}

func TestHandle_ListDevicesEmpty(t *testing.T) {
	r, _ := newTestRouter(time.Second, 4)
	resp := r.Handle(context.Background(), &wire.ClientRequest{Command: wire.CmdListDevices})
	if !resp.Success || len(resp.Devices) != 0 {
		t.Errorf("response = %+v, want success with no devices", resp)
	}
}

func TestHandle_Rejections(t *testing.T) {
	r, _ := newTestRouter(time.Second, 4)

	tests := []struct {
		name string
		req  wire.ClientRequest
		want string
	}{
		{"control without id", wire.ClientRequest{Command: wire.CmdControlDevice, Action: "ON"}, MsgMissingDeviceID},
		{"status without id", wire.ClientRequest{Command: wire.CmdGetStatus}, MsgMissingDeviceID},
		{"control unknown device", wire.ClientRequest{Command: wire.CmdControlDevice, DeviceID: "smart_lamp_10.9.9.9_1", Action: "ON"}, MsgDeviceNotFound},
		{"set status unknown device", wire.ClientRequest{Command: wire.CmdSetStatus, DeviceID: "ghost"}, MsgDeviceNotFound},
		{"unknown command", wire.ClientRequest{Command: "REBOOT_EVERYTHING"}, MsgUnknownCommand},
		{"empty command", wire.ClientRequest{}, MsgUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := r.Handle(context.Background(), &tt.req)
			if resp.Success {
				t.Error("Success = true, want false")
			}
			if resp.Message != tt.want {
				t.Errorf("Message = %q, want %q", resp.Message, tt.want)
			}
		})
	}
}

func TestHandle_ControlDevice(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)
	agent := newMockAgent(t, wire.DeviceResponse{
		Success:    true,
		Message:    "Lamp turned on",
		Status:     `{"power":"ON","brightness":50}`,
		Attributes: map[string]string{"power": "ON", "brightness": "50"},
	})
	id := agent.register(t, reg, "smart_lamp")

	resp := r.Handle(context.Background(), &wire.ClientRequest{
		Command:    wire.CmdControlDevice,
		DeviceID:   id,
		Action:     "ON",
		Parameters: `{}`,
	})
	if !resp.Success || resp.Message != "Lamp turned on" {
		t.Fatalf("response = %+v", resp)
	}

	cmds := agent.commands()
	if len(cmds) != 1 || cmds[0].Command != "ON" || cmds[0].Parameters != "{}" {
		t.Errorf("agent received %+v", cmds)
	}

	rec, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Status != `{"power":"ON","brightness":50}` {
		t.Errorf("registry status = %q, want agent status", rec.Status)
	}
}

func TestHandle_SetTemperatureRelaysAgentReply(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)
	agent := newMockAgent(t, wire.DeviceResponse{
		Success: true,
		Message: "Temperature set to 22°C",
		Status:  `{"power":"ON","temperature":22}`,
	})
	id := device.FormatID("air_conditioner", "127.0.0.1", agent.port())
	if _, _, err := reg.Upsert(id, device.Update{
		Endpoint: &device.Endpoint{Type: "air_conditioner", IP: "127.0.0.1", Port: agent.port()},
		Status:   device.StringPtr("{}"),
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	resp := r.Handle(context.Background(), &wire.ClientRequest{
		Command:    wire.CmdControlDevice,
		DeviceID:   id,
		Action:     "SET_TEMPERATURE",
		Parameters: `{"temperature":22}`,
	})
	if !resp.Success || resp.Message != "Temperature set to 22°C" {
		t.Fatalf("response = %+v, want agent reply unchanged", resp)
	}

	cmds := agent.commands()
	if len(cmds) != 1 || cmds[0].Command != "SET_TEMPERATURE" || cmds[0].Parameters != `{"temperature":22}` {
		t.Errorf("agent received %+v", cmds)
	}
	rec, _ := reg.Get(id)
	if rec.Status != `{"power":"ON","temperature":22}` {
		t.Errorf("registry status = %q, want agent status", rec.Status)
	}
}

func TestHandle_ControlDeviceNegativeReply(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)
	agent := newMockAgent(t, wire.DeviceResponse{
		Success: false,
		Message: "Brightness must be between 0 and 100",
	})
	id := agent.register(t, reg, "smart_lamp")

	resp := r.Handle(context.Background(), &wire.ClientRequest{
		Command: wire.CmdControlDevice, DeviceID: id, Action: "SET_BRIGHTNESS", Parameters: `{"brightness":150}`,
	})
	if resp.Success || resp.Message != "Brightness must be between 0 and 100" {
		t.Errorf("response = %+v", resp)
	}

	rec, _ := reg.Get(id)
	if rec.Status != `{"power":"OFF"}` {
		t.Errorf("empty reply status overwrote registry: %q", rec.Status)
	}
}

func TestHandle_StatusCommandsSendGetStatus(t *testing.T) {
	for _, command := range []string{wire.CmdGetStatus, wire.CmdSetStatus} {
		t.Run(command, func(t *testing.T) {
			r, reg := newTestRouter(time.Second, 4)
			agent := newMockAgent(t, wire.DeviceResponse{Success: true, Message: "Status retrieved", Status: `{"power":"OFF"}`})
			id := agent.register(t, reg, "air_conditioner")

			resp := r.Handle(context.Background(), &wire.ClientRequest{Command: command, DeviceID: id, Action: "IGNORED"})
			if !resp.Success || resp.Message != "Status retrieved" {
				t.Fatalf("response = %+v", resp)
			}
			cmds := agent.commands()
			if len(cmds) != 1 || cmds[0].Command != wire.CmdGetStatus {
				t.Errorf("agent received %+v, want one GET_STATUS", cmds)
			}
		})
	}
}

func TestCommand_TelemetryOnlyDevice(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)
	id := "temperature_sensor_10.0.0.2_41000"
	if _, _, err := reg.Upsert(id, device.Update{
		Defaults: &device.Endpoint{Type: "temperature_sensor", IP: "10.0.0.2"},
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	res, err := r.Command(context.Background(), id, wire.CmdGetStatus, "")
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("Command() error = %v, want ErrNoEndpoint", err)
	}
	if res.Success || !strings.HasPrefix(res.Message, "Error communicating with device: ") {
		t.Errorf("result = %+v", res)
	}
}

func TestHandle_TelemetryPlaceholderNotRoutable(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)
	id := "lamp_10.0.0.9_5500"
	if _, _, err := reg.Upsert(id, device.Update{
		Defaults:  &device.Endpoint{Type: "lamp", IP: "10.0.0.9"},
		Status:    device.StringPtr("{}"),
		Telemetry: &device.Telemetry{SensorType: "lamp_state", Value: 50, ReceivedAt: time.Now()},
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rec, _ := reg.Get(id)
	if rec.Port != 0 {
		t.Fatalf("placeholder port = %d, want 0", rec.Port)
	}

	resp := r.Handle(context.Background(), &wire.ClientRequest{
		Command: wire.CmdControlDevice, DeviceID: id, Action: "ON",
	})
	if resp.Success || !strings.HasPrefix(resp.Message, "Error communicating with device: ") {
		t.Errorf("response = %+v, want dial error", resp)
	}
}

func TestCommand_AgentClosesWithoutReply(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)
	agent := newMockAgent(t, wire.DeviceResponse{})
	agent.setHandle(func(net.Conn, wire.DeviceCommand) {})
	id := agent.register(t, reg, "smart_lamp")

	res, err := r.Command(context.Background(), id, "ON", "")
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Command() error = %v, want ErrNoResponse", err)
	}
	if res.Message != MsgNoResponse {
		t.Errorf("Message = %q, want %q", res.Message, MsgNoResponse)
	}
}

func TestCommand_AgentUnreachable(t *testing.T) {
	r, reg := newTestRouter(time.Second, 4)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	id := "smart_lamp_127.0.0.1_" + strconv.Itoa(port)
	_, _, _ = reg.Upsert(id, device.Update{Endpoint: &device.Endpoint{Type: "smart_lamp", IP: "127.0.0.1", Port: port}})

	resp := r.Handle(context.Background(), &wire.ClientRequest{Command: wire.CmdControlDevice, DeviceID: id, Action: "ON"})
	if resp.Success || !strings.HasPrefix(resp.Message, "Error communicating with device: ") {
		t.Errorf("response = %+v", resp)
	}
}

func TestCommand_Timeout(t *testing.T) {
	r, reg := newTestRouter(100*time.Millisecond, 4)
	agent := newMockAgent(t, wire.DeviceResponse{})
	release := make(chan struct{})
	defer close(release)
	agent.setHandle(func(net.Conn, wire.DeviceCommand) { <-release })
	id := agent.register(t, reg, "smart_lamp")

	start := time.Now()
	_, err := r.Command(context.Background(), id, "ON", "")
	if err == nil {
		t.Fatal("Command() error = nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Command() took %v, deadline not enforced", elapsed)
	}
}

func TestDispatcher_ConcurrencyCap(t *testing.T) {
	r, reg := newTestRouter(5*time.Second, 1)
	agent := newMockAgent(t, wire.DeviceResponse{Success: true})
	release := make(chan struct{})
	agent.setHandle(func(conn net.Conn, _ wire.DeviceCommand) {
		<-release
		_ = wire.WriteMessage(conn, &wire.DeviceResponse{Success: true, Message: "done"})
	})
	id := agent.register(t, reg, "smart_lamp")

	first := make(chan error, 1)
	go func() {
		_, err := r.Command(context.Background(), id, "ON", "")
		first <- err
	}()

	// Wait until the first session holds the only slot.
	deadline := time.Now().Add(2 * time.Second)
	for len(agent.commands()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Command(ctx, id, "OFF", ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Command() error = %v, want context.DeadlineExceeded", err)
	}

	close(release)
	if err := <-first; err != nil {
		t.Errorf("first Command() error = %v", err)
	}
}
