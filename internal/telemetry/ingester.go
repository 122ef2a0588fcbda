package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// maxDatagram bounds a single telemetry datagram.
const maxDatagram = 2048

// sinkTimeout bounds one sink write so a slow backend cannot stall ingest.
const sinkTimeout = 2 * time.Second

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

// Sink receives every accepted sample. *device.SQLiteTelemetryHistory and
// *influxdb.Client implement it.
type Sink interface {
	RecordSample(ctx context.Context, deviceID string, t device.Telemetry) error
}

// Ingester listens for SensorSample datagrams and applies them to the
// registry.
type Ingester struct {
	addr     string
	registry *device.Registry
	metrics  *metrics.Metrics
	logger   Logger
	now      func() time.Time

	sinks []Sink

	mu   sync.Mutex
	conn net.PacketConn
}

// NewIngester creates an ingester bound to addr (e.g. "0.0.0.0:50002").
func NewIngester(addr string, registry *device.Registry) *Ingester {
	return &Ingester{
		addr:     addr,
		registry: registry,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the ingester.
func (i *Ingester) SetLogger(logger Logger) {
	i.logger = logger
}

// SetMetrics attaches Prometheus counters.
func (i *Ingester) SetMetrics(m *metrics.Metrics) {
	i.metrics = m
}

// AddSink registers s to receive accepted samples. Must be called before Run.
func (i *Ingester) AddSink(s Sink) {
	i.sinks = append(i.sinks, s)
}

// Listen binds the telemetry socket. Run calls it when needed.
func (i *Ingester) Listen(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.conn != nil {
		return nil
	}
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", i.addr)
	if err != nil {
		return fmt.Errorf("binding telemetry listener: %w", err)
	}
	i.conn = conn
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (i *Ingester) Addr() net.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conn == nil {
		return nil
	}
	return i.conn.LocalAddr()
}

// Run receives samples until ctx is done.
func (i *Ingester) Run(ctx context.Context) error {
	if err := i.Listen(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	conn := i.conn
	i.mu.Unlock()

	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck // unblocks ReadFrom
	}()

	i.logger.Info("telemetry listener started", "addr", conn.LocalAddr().String(), "sinks", len(i.sinks))

	buf := make([]byte, maxDatagram)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				i.logger.Info("telemetry listener stopped")
				return nil
			}
			i.logger.Warn("telemetry read failed", "error", err)
			continue
		}

		if _, err := i.HandleDatagram(ctx, buf[:n], src); err != nil {
			i.metrics.IncTelemetry(metrics.OutcomeDropped)
			i.logger.Debug("telemetry sample dropped", "from", src.String(), "error", err)
			continue
		}
		i.metrics.IncTelemetry(metrics.OutcomeAccepted)
	}
}

// HandleDatagram applies one telemetry datagram to the registry.
//
// An unknown device ID creates a telemetry-only placeholder: port 0, empty
// status, type taken from the ID (or the sensor type when the ID does not
// parse) and IP taken from the datagram source. A unit that is itself a JSON
// document replaces the device status.
//
// Parameters:
//   - ctx: Bounds sink writes
//   - payload: Serialized SensorSample
//   - src: Datagram source address
//
// Returns:
//   - device.Record: The record after the update
//   - error: ErrMalformedSample if the datagram is unusable
func (i *Ingester) HandleDatagram(ctx context.Context, payload []byte, src net.Addr) (device.Record, error) {
	var sample wire.SensorSample
	if err := sample.UnmarshalBinary(payload); err != nil {
		return device.Record{}, fmt.Errorf("%w: %w", ErrMalformedSample, err)
	}
	if sample.DeviceID == "" {
		return device.Record{}, fmt.Errorf("%w: missing device id", ErrMalformedSample)
	}

	now := i.now()
	tel := device.Telemetry{
		SensorType: sample.SensorType,
		Value:      sample.Value,
		Unit:       sample.Unit,
		Timestamp:  sample.Timestamp,
		ReceivedAt: now,
	}

	u := device.Update{
		Defaults:  placeholderEndpoint(sample, src),
		LastSeen:  now,
		Telemetry: &tel,
	}
	if sample.Unit != "" && json.Valid([]byte(sample.Unit)) {
		u.Status = device.StringPtr(sample.Unit)
	}

	rec, created, err := i.registry.Upsert(sample.DeviceID, u)
	if err != nil {
		return device.Record{}, fmt.Errorf("%w: %w", ErrMalformedSample, err)
	}
	if created {
		i.logger.Info("telemetry-only device registered", "device_id", rec.ID, "type", rec.Type, "ip", rec.IP)
	}

	i.forward(ctx, rec.ID, tel)
	return rec, nil
}

func (i *Ingester) forward(ctx context.Context, deviceID string, tel device.Telemetry) {
	for _, s := range i.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := s.RecordSample(sctx, deviceID, tel); err != nil {
			i.logger.Warn("telemetry sink write failed", "device_id", deviceID, "error", err)
		}
		cancel()
	}
}

func placeholderEndpoint(sample wire.SensorSample, src net.Addr) *device.Endpoint {
	ep := &device.Endpoint{Type: sample.SensorType}
	if parsed, err := device.ParseID(sample.DeviceID); err == nil && parsed.Type != "" {
		ep.Type = parsed.Type
	}
	if udp, ok := src.(*net.UDPAddr); ok {
		ep.IP = udp.IP.String()
	}
	return ep
}
