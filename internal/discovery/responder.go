package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// ResponderConfig holds the agent-side discovery settings.
type ResponderConfig struct {
	Group     string
	Port      int
	ReplyPort int
	Interface string
}

// Announcer returns the agent's current discovery reply.
type Announcer func() *wire.DeviceDiscovery

// Responder answers gateway probes on behalf of one agent.
type Responder struct {
	cfg       ResponderConfig
	announce  Announcer
	onGateway func(net.IP)
	logger    Logger

	mu        sync.Mutex
	replyConn net.PacketConn
}

// NewResponder creates a responder that replies with announce().
func NewResponder(cfg ResponderConfig, announce Announcer) *Responder {
	return &Responder{
		cfg:      cfg,
		announce: announce,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the responder.
func (r *Responder) SetLogger(logger Logger) {
	r.logger = logger
}

// OnGateway registers fn to be told the gateway address on every probe.
// Must be called before Run.
func (r *Responder) OnGateway(fn func(net.IP)) {
	r.onGateway = fn
}

// IsProbe reports whether payload is a discovery probe: either a serialized
// DeviceCommand carrying GATEWAY_DISCOVERY or the bare command text some
// older firmware compares against.
func IsProbe(payload []byte) bool {
	if bytes.Equal(payload, []byte(wire.CmdGatewayDiscovery)) {
		return true
	}
	var cmd wire.DeviceCommand
	if err := cmd.UnmarshalBinary(payload); err != nil {
		return false
	}
	return cmd.Command == wire.CmdGatewayDiscovery
}

// Run joins the discovery group and answers probes until ctx is done.
func (r *Responder) Run(ctx context.Context) error {
	gc, err := listenGroup(ctx, r.cfg.Group, r.cfg.Port, r.cfg.Interface)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		gc.Close() //nolint:errcheck // unblocks ReadFrom
	}()

	r.logger.Info("discovery responder listening", "group", r.cfg.Group, "port", r.cfg.Port)

	buf := make([]byte, maxDatagram)
	for {
		n, src, err := gc.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				r.closeReplyConn()
				return nil
			}
			r.logger.Warn("discovery read failed", "error", err)
			continue
		}

		if err := r.HandleProbe(buf[:n], src); err != nil && !errors.Is(err, ErrNotProbe) {
			r.logger.Warn("discovery reply failed", "error", err)
		}
	}
}

// HandleProbe answers a single datagram received on the discovery group.
//
// Returns:
//   - error: ErrNotProbe for unrelated traffic, or the send error
func (r *Responder) HandleProbe(payload []byte, src net.Addr) error {
	if !IsProbe(payload) {
		return ErrNotProbe
	}
	udp, ok := src.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("unexpected probe source %T", src)
	}

	if r.onGateway != nil {
		r.onGateway(udp.IP)
	}

	reply, err := r.announce().MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding discovery reply: %w", err)
	}

	conn, err := r.ensureReplyConn()
	if err != nil {
		return err
	}
	dst := &net.UDPAddr{IP: udp.IP, Port: r.cfg.ReplyPort}
	if _, err := conn.WriteTo(reply, dst); err != nil {
		return fmt.Errorf("sending discovery reply to %s: %w", dst, err)
	}

	r.logger.Debug("discovery probe answered", "gateway", udp.IP.String())
	return nil
}

func (r *Responder) ensureReplyConn() (net.PacketConn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.replyConn == nil {
		conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
		if err != nil {
			return nil, fmt.Errorf("opening reply socket: %w", err)
		}
		r.replyConn = conn
	}
	return r.replyConn, nil
}

func (r *Responder) closeReplyConn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replyConn != nil {
		r.replyConn.Close() //nolint:errcheck // shutdown
		r.replyConn = nil
	}
}
