package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/appliance"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// Fixed agent responses.
const (
	MsgStatusRetrieved = "Status retrieved"
	MsgUnknownCommand  = "Unknown command"
)

// probeTarget is only used to pick the outbound interface; nothing is sent.
const probeTarget = "8.8.8.8:80"

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds agent settings.
type Config struct {
	// ListenAddr is the command server address; port 0 picks one.
	ListenAddr string

	// AdvertiseIP is reported in discovery and used in the device ID.
	// Empty means the outbound interface address.
	AdvertiseIP string

	// Discovery configures the probe responder.
	Discovery discovery.ResponderConfig

	// TelemetryPort is the gateway's telemetry UDP port.
	TelemetryPort int

	// TelemetryInterval overrides the appliance interval when non-zero.
	TelemetryInterval time.Duration
}

// Agent exposes one appliance to the gateway.
type Agent struct {
	cfg    Config
	dev    appliance.Device
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	ln      net.Listener
	ip      string
	port    int
	gateway net.IP
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup

	telemetryConn net.PacketConn
}

// New creates an agent for dev.
func New(cfg Config, dev appliance.Device) *Agent {
	return &Agent{
		cfg:    cfg,
		dev:    dev,
		logger: noopLogger{},
		now:    time.Now,
		conns:  make(map[net.Conn]struct{}),
	}
}

// SetLogger sets the logger for the agent.
func (a *Agent) SetLogger(logger Logger) {
	a.logger = logger
}

// Device returns the hosted appliance.
func (a *Agent) Device() appliance.Device {
	return a.dev
}

// Listen binds the command server and fixes the device identity.
func (a *Agent) Listen(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ln != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp4", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("binding agent command port: %w", err)
	}

	a.ln = ln
	a.port = ln.Addr().(*net.TCPAddr).Port
	a.ip = a.cfg.AdvertiseIP
	if a.ip == "" {
		a.ip = outboundIP()
	}
	return nil
}

// outboundIP returns the local address of the default route, or loopback
// when there is none.
func outboundIP() string {
	conn, err := net.Dial("udp4", probeTarget)
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// Addr returns the bound command address, or nil before Listen.
func (a *Agent) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// DeviceID returns the agent's identifier. Empty before Listen.
func (a *Agent) DeviceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return ""
	}
	return device.FormatID(a.dev.Type(), a.ip, a.port)
}

// SetGateway records the gateway address learned from a probe.
func (a *Agent) SetGateway(ip net.IP) {
	a.mu.Lock()
	changed := !a.gateway.Equal(ip)
	a.gateway = ip
	a.mu.Unlock()

	if changed {
		a.logger.Info("gateway located", "gateway", ip.String())
	}
}

// Gateway returns the last known gateway address, or nil.
func (a *Agent) Gateway() net.IP {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gateway
}

// Announce builds the discovery reply for the current state.
func (a *Agent) Announce() *wire.DeviceDiscovery {
	a.mu.Lock()
	ip, port := a.ip, a.port
	a.mu.Unlock()

	return &wire.DeviceDiscovery{
		DeviceType: a.dev.Type(),
		IP:         ip,
		Port:       uint32(port), //nolint:gosec // bound TCP port
		Status:     a.dev.Status(),
	}
}

// HandleCommand executes one command and always returns a response carrying
// the current status document and attributes.
func (a *Agent) HandleCommand(cmd *wire.DeviceCommand) *wire.DeviceResponse {
	resp := &wire.DeviceResponse{}

	res, err := a.execute(cmd)
	if err != nil {
		resp.Message = "Error: " + err.Error()
	} else {
		resp.Success = res.Success
		resp.Message = res.Message
	}

	resp.Status = a.dev.Status()
	resp.Attributes = a.dev.Attributes()
	return resp
}

func (a *Agent) execute(cmd *wire.DeviceCommand) (appliance.Result, error) {
	params, err := appliance.ParseParams(cmd.Parameters)
	if err != nil {
		return appliance.Result{}, err
	}
	if cmd.Command == wire.CmdGetStatus {
		return appliance.Result{Success: true, Message: MsgStatusRetrieved}, nil
	}

	res, known, err := a.dev.Handle(cmd.Command, params)
	if err != nil {
		return appliance.Result{}, err
	}
	if !known {
		return appliance.Result{Success: false, Message: MsgUnknownCommand}, nil
	}
	return res, nil
}

// Run serves commands, answers discovery probes and pushes telemetry until
// ctx is done or one of the loops fails.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Listen(ctx); err != nil {
		return err
	}

	responder := discovery.NewResponder(a.cfg.Discovery, a.Announce)
	responder.SetLogger(a.logger)
	responder.OnGateway(a.SetGateway)

	a.logger.Info("agent started",
		"device_id", a.DeviceID(),
		"type", a.dev.Type(),
		"addr", a.Addr().String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.serve(gctx) })
	g.Go(func() error { return responder.Run(gctx) })
	g.Go(func() error { return a.pushLoop(gctx) })

	err := g.Wait()
	a.closeTelemetryConn()
	a.logger.Info("agent stopped", "device_id", a.DeviceID())
	return err
}

func (a *Agent) serve(ctx context.Context) error {
	a.mu.Lock()
	ln := a.ln
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck // unblocks Accept
		a.closeConns()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				a.wg.Wait()
				return nil
			}
			a.logger.Warn("accept failed", "error", err)
			continue
		}

		if !a.track(conn) {
			conn.Close() //nolint:errcheck // shutting down
			continue
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer a.untrack(conn)
			a.serveConn(conn)
		}()
	}
}

func (a *Agent) serveConn(conn net.Conn) {
	for {
		var cmd wire.DeviceCommand
		if err := wire.ReadMessage(conn, &cmd); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				a.logger.Debug("command session ended", "peer", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		resp := a.HandleCommand(&cmd)
		a.logger.Debug("command handled", "command", cmd.Command, "success", resp.Success)

		if err := wire.WriteMessage(conn, resp); err != nil {
			a.logger.Debug("writing command response failed", "error", err)
			return
		}
	}
}

func (a *Agent) track(conn net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns == nil {
		return false
	}
	a.conns[conn] = struct{}{}
	return true
}

func (a *Agent) untrack(conn net.Conn) {
	conn.Close() //nolint:errcheck // already finished
	a.mu.Lock()
	delete(a.conns, conn)
	a.mu.Unlock()
}

func (a *Agent) closeConns() {
	a.mu.Lock()
	conns := a.conns
	a.conns = nil
	a.mu.Unlock()

	for c := range conns {
		c.Close() //nolint:errcheck // shutting down
	}
}

func (a *Agent) interval() time.Duration {
	if a.cfg.TelemetryInterval > 0 {
		return a.cfg.TelemetryInterval
	}
	return a.dev.Interval()
}

// pushLoop sends a sample every interval. The interval is re-read each
// round so SET_INTERVAL takes effect on the next push.
func (a *Agent) pushLoop(ctx context.Context) error {
	timer := time.NewTimer(a.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := a.PushTelemetry(); err != nil {
				a.logger.Warn("telemetry push failed", "error", err)
			}
			timer.Reset(a.interval())
		}
	}
}

// PushTelemetry sends one sample to the gateway. It is a no-op until a
// gateway has been learned from a discovery probe.
func (a *Agent) PushTelemetry() error {
	gw := a.Gateway()
	if gw == nil {
		return nil
	}

	s := a.dev.Sample()
	payload, err := (&wire.SensorSample{
		DeviceID:   a.DeviceID(),
		SensorType: s.SensorType,
		Value:      s.Value,
		Unit:       s.Unit,
		Timestamp:  a.now().Unix(),
	}).MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}

	conn, err := a.ensureTelemetryConn()
	if err != nil {
		return err
	}
	dst := &net.UDPAddr{IP: gw, Port: a.cfg.TelemetryPort}
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return fmt.Errorf("sending sample to %s: %w", dst, err)
	}
	return nil
}

func (a *Agent) ensureTelemetryConn() (net.PacketConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.telemetryConn == nil {
		conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
		if err != nil {
			return nil, fmt.Errorf("opening telemetry socket: %w", err)
		}
		a.telemetryConn = conn
	}
	return a.telemetryConn, nil
}

func (a *Agent) closeTelemetryConn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.telemetryConn != nil {
		a.telemetryConn.Close() //nolint:errcheck // shutting down
		a.telemetryConn = nil
	}
}
