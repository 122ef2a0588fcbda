package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultReconnectWait  = 2 * time.Second
	defaultSubjectPrefix  = "grayhub"
)

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is a thin publisher over a NATS connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	conn   *nats.Conn
	prefix string

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect dials the NATS server named in cfg.
//
// The connection reconnects forever in the background; connection state
// changes are reported through the logger set with SetLogger.
//
// Parameters:
//   - cfg: NATS configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the dial error
func Connect(cfg config.NATSConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	prefix := strings.Trim(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	c := &Client{prefix: prefix}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(defaultConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(defaultReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if l := c.getLogger(); l != nil && err != nil {
				l.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if l := c.getLogger(); l != nil {
				l.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.conn = nc
	return c, nil
}

// SetLogger sets a logger for connection state changes.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// Subject joins parts under the configured prefix with dots.
//
// Example: Subject("device", "created") → "grayhub.device.created"
func (c *Client) Subject(parts ...string) string {
	return subject(c.prefix, parts...)
}

func subject(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	all = append(all, prefix)
	for _, p := range parts {
		if p = strings.Trim(p, "."); p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, ".")
}

// Publish sends raw bytes on subject.
func (c *Client) Publish(subject string, data []byte) error {
	if subject == "" {
		return ErrInvalidSubject
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("natsbus: publish %s: %w", subject, err)
	}
	return nil
}

// PublishJSON marshals v and publishes it on subject.
func (c *Client) PublishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("natsbus: encoding payload for %s: %w", subject, err)
	}
	return c.Publish(subject, data)
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// HealthCheck round-trips a PING to the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("natsbus health check: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection. Safe on a
// nil or already-closed client.
func (c *Client) Close() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return fmt.Errorf("natsbus: drain: %w", err)
	}
	return nil
}
