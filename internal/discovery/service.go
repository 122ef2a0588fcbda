package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

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

// Broadcaster sends one datagram to every agent. *Sender implements it.
type Broadcaster interface {
	Send(payload []byte) error
}

// Config holds the gateway-side discovery settings.
type Config struct {
	// ReplyAddr is the UDP address replies are received on, e.g. "0.0.0.0:50001".
	ReplyAddr string

	// Interval is the discovery period.
	Interval time.Duration

	// Eviction is config.EvictionTTL or config.EvictionReset.
	Eviction string

	// StaleAfter is the ttl-mode eviction age.
	StaleAfter time.Duration
}

// Service runs the gateway side of discovery.
type Service struct {
	cfg         Config
	registry    *device.Registry
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	logger      Logger
	now         func() time.Time

	probe []byte

	mu   sync.Mutex
	conn net.PacketConn
}

// NewService creates a discovery service.
//
// Parameters:
//   - cfg: Reply address, interval and eviction policy
//   - registry: Registry written by replies and evictions
//   - b: Multicast transmitter for probes
//
// Returns:
//   - *Service: Ready to Run
func NewService(cfg Config, registry *device.Registry, b Broadcaster) *Service {
	probe, _ := (&wire.DeviceCommand{Command: wire.CmdGatewayDiscovery}).MarshalBinary() //nolint:errcheck // static message

	return &Service{
		cfg:         cfg,
		registry:    registry,
		broadcaster: b,
		logger:      noopLogger{},
		now:         time.Now,
		probe:       probe,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMetrics attaches Prometheus counters.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Listen binds the reply socket. Run calls it when needed; calling it
// first lets the caller learn the bound address.
func (s *Service) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", s.cfg.ReplyAddr)
	if err != nil {
		return fmt.Errorf("binding discovery reply listener: %w", err)
	}
	s.conn = conn
	return nil
}

// Addr returns the bound reply address, or nil before Listen.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run receives replies and drives the discovery cycle until ctx is done.
// The first cycle runs immediately.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.receiveLoop(ctx, conn)
	}()

	s.logger.Info("discovery started",
		"reply_addr", conn.LocalAddr().String(),
		"interval", s.cfg.Interval.String(),
		"eviction", s.cfg.Eviction,
	)

	s.Cycle()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close() //nolint:errcheck // unblocks receiveLoop
			wg.Wait()
			s.logger.Info("discovery stopped")
			return nil
		case <-ticker.C:
			s.Cycle()
		}
	}
}

// Cycle performs one eviction pass followed by one probe broadcast.
func (s *Service) Cycle() {
	switch s.cfg.Eviction {
	case config.EvictionReset:
		n := s.registry.Clear()
		s.metrics.AddEvictions(n)
	default:
		removed := s.registry.Expire(s.now().Add(-s.cfg.StaleAfter))
		s.metrics.AddEvictions(len(removed))
	}
	s.metrics.IncDiscoveryCycle(s.cfg.Eviction)

	if err := s.broadcaster.Send(s.probe); err != nil {
		s.logger.Warn("discovery probe failed", "error", err)
		return
	}
	s.logger.Debug("discovery probe sent")
}

func (s *Service) receiveLoop(ctx context.Context, conn net.PacketConn) {
	buf := make([]byte, maxDatagram)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("discovery reply read failed", "error", err)
			continue
		}

		if _, err := s.HandleReply(buf[:n], src); err != nil {
			s.metrics.IncDiscoveryReply(metrics.OutcomeDropped)
			s.logger.Debug("discovery reply dropped", "from", src.String(), "error", err)
			continue
		}
		s.metrics.IncDiscoveryReply(metrics.OutcomeAccepted)
	}
}

// HandleReply decodes one discovery reply and upserts the device.
//
// An empty IP in the reply falls back to the datagram source address.
//
// Returns:
//   - device.Record: The record after the upsert
//   - error: ErrInvalidReply if the datagram is not a usable reply
func (s *Service) HandleReply(payload []byte, src net.Addr) (device.Record, error) {
	var msg wire.DeviceDiscovery
	if err := msg.UnmarshalBinary(payload); err != nil {
		return device.Record{}, fmt.Errorf("%w: %w", ErrInvalidReply, err)
	}
	if msg.DeviceType == "" {
		return device.Record{}, fmt.Errorf("%w: missing device type", ErrInvalidReply)
	}

	ip := msg.IP
	if ip == "" {
		if udp, ok := src.(*net.UDPAddr); ok {
			ip = udp.IP.String()
		}
	}

	status := msg.Status
	if status == "" {
		status = device.EmptyStatus
	}

	port := int(msg.Port)
	id := device.FormatID(msg.DeviceType, ip, port)
	rec, created, err := s.registry.Upsert(id, device.Update{
		Endpoint: &device.Endpoint{Type: msg.DeviceType, IP: ip, Port: port},
		Status:   &status,
		LastSeen: s.now(),
	})
	if err != nil {
		return device.Record{}, err
	}

	if created {
		s.logger.Info("device discovered", "device_id", id)
	} else {
		s.logger.Debug("device refreshed", "device_id", id)
	}
	return rec, nil
}
