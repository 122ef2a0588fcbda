package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv4"
)

// maxDatagram bounds every discovery and telemetry datagram read.
const maxDatagram = 2048

// parseGroup validates an IPv4 multicast group address.
func parseGroup(group string) (net.IP, error) {
	ip := net.ParseIP(group).To4()
	if ip == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	return ip, nil
}

// lookupInterface resolves an optional interface name. Empty means let the
// kernel choose.
func lookupInterface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("multicast interface %q: %w", name, err)
	}
	return ifi, nil
}

// Sender multicasts datagrams to one group.
type Sender struct {
	conn net.PacketConn
	pc   *ipv4.PacketConn
	dst  *net.UDPAddr
}

// NewSender opens a UDP socket configured for multicast transmission.
//
// Parameters:
//   - group: IPv4 multicast group, e.g. "224.0.0.1"
//   - port: Destination port on the group
//   - ttl: Multicast hop limit; small values keep probes on the local segment
//   - ifaceName: Optional outgoing interface
//
// Returns:
//   - *Sender: Ready to Send
//   - error: If the group is invalid or the socket cannot be configured
func NewSender(group string, port, ttl int, ifaceName string) (*Sender, error) {
	ip, err := parseGroup(group)
	if err != nil {
		return nil, err
	}
	ifi, err := lookupInterface(ifaceName)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("opening multicast sender: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(ttl); err != nil {
		conn.Close() //nolint:errcheck // error path cleanup
		return nil, fmt.Errorf("setting multicast ttl: %w", err)
	}
	// Agents running on the gateway host must see probes too.
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close() //nolint:errcheck // error path cleanup
		return nil, fmt.Errorf("enabling multicast loopback: %w", err)
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			conn.Close() //nolint:errcheck // error path cleanup
			return nil, fmt.Errorf("setting multicast interface: %w", err)
		}
	}

	return &Sender{
		conn: conn,
		pc:   pc,
		dst:  &net.UDPAddr{IP: ip, Port: port},
	}, nil
}

// Send writes one datagram to the group.
func (s *Sender) Send(payload []byte) error {
	if _, err := s.pc.WriteTo(payload, nil, s.dst); err != nil {
		return fmt.Errorf("multicast send to %s: %w", s.dst, err)
	}
	return nil
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// groupConn is a UDP socket joined to a multicast group.
type groupConn struct {
	conn  net.PacketConn
	pc    *ipv4.PacketConn
	ifi   *net.Interface
	group *net.UDPAddr
}

// listenGroup binds port with address reuse and joins group on ifi.
func listenGroup(ctx context.Context, group string, port int, ifaceName string) (*groupConn, error) {
	ip, err := parseGroup(group)
	if err != nil {
		return nil, err
	}
	ifi, err := lookupInterface(ifaceName)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("binding discovery port %d: %w", port, err)
	}

	pc := ipv4.NewPacketConn(conn)
	gaddr := &net.UDPAddr{IP: ip}
	if err := pc.JoinGroup(ifi, gaddr); err != nil {
		conn.Close() //nolint:errcheck // error path cleanup
		return nil, fmt.Errorf("joining group %s: %w", ip, err)
	}

	return &groupConn{conn: conn, pc: pc, ifi: ifi, group: gaddr}, nil
}

func (g *groupConn) Close() error {
	_ = g.pc.LeaveGroup(g.ifi, g.group) //nolint:errcheck // socket is closing anyway
	return g.conn.Close()
}
