// Package client talks to a grayhub gateway over its TCP command port.
//
// A Client keeps one connection open and reuses it for every request. When an
// exchange fails the connection is dropped and the next call dials again;
// failed requests are not retried.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// DefaultTimeout bounds one request/response exchange.
const DefaultTimeout = 10 * time.Second

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client: closed")

// Client is a gateway client. It is safe for concurrent use; requests are
// serialized on the single connection.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// New creates a client for the gateway at addr ("host:port"). No connection
// is made until the first request.
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{addr: addr, timeout: timeout}
}

// ListDevices returns every device the gateway knows about.
func (c *Client) ListDevices(ctx context.Context) (*wire.ClientResponse, error) {
	return c.Do(ctx, &wire.ClientRequest{Command: wire.CmdListDevices})
}

// ControlDevice sends action with JSON parameters to a device.
func (c *Client) ControlDevice(ctx context.Context, deviceID, action, params string) (*wire.ClientResponse, error) {
	return c.Do(ctx, &wire.ClientRequest{
		Command:    wire.CmdControlDevice,
		DeviceID:   deviceID,
		Action:     action,
		Parameters: params,
	})
}

// GetStatus asks a device for its current status.
func (c *Client) GetStatus(ctx context.Context, deviceID string) (*wire.ClientResponse, error) {
	return c.Do(ctx, &wire.ClientRequest{Command: wire.CmdGetStatus, DeviceID: deviceID})
}

// Do performs one raw request/response exchange.
//
// Returns:
//   - *wire.ClientResponse: The gateway's answer (Success may be false)
//   - error: Transport failure; the connection is discarded
func (c *Client) Do(ctx context.Context, req *wire.ClientRequest) (*wire.ClientResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	conn, err := c.connLocked(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	if err := wire.WriteMessage(conn, req); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("sending request: %w", err)
	}

	var resp wire.ClientResponse
	if err := wire.ReadMessage(conn, &resp); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &resp, nil
}

func (c *Client) connLocked(ctx context.Context) (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to gateway %s: %w", c.addr, err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close() //nolint:errcheck // already failed
		c.conn = nil
	}
}

// Close closes the connection. Further calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
