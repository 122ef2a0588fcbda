package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// Dispatch defaults.
const (
	DefaultDispatchTimeout = 5 * time.Second
	DefaultMaxConcurrent   = 64
)

// Dispatcher runs one-shot command sessions against device agents.
type Dispatcher struct {
	timeout time.Duration
	sem     *semaphore.Weighted
	dialer  net.Dialer
	metrics *metrics.Metrics
	logger  Logger
}

// NewDispatcher creates a dispatcher.
//
// Parameters:
//   - timeout: Deadline for one session (dial, send, receive); <= 0 uses 5s
//   - maxConcurrent: Simultaneous sessions allowed; <= 0 uses 64
func NewDispatcher(timeout time.Duration, maxConcurrent int) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Dispatcher{
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetMetrics attaches Prometheus histograms.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Send opens a new connection to rec's command endpoint, writes cmd, reads
// one DeviceResponse and closes the connection.
//
// Returns:
//   - *wire.DeviceResponse: The agent's reply
//   - error: ErrNoEndpoint, ErrNoResponse, a context error while waiting
//     for a slot, or the transport error
func (d *Dispatcher) Send(ctx context.Context, rec device.Record, cmd *wire.DeviceCommand) (*wire.DeviceResponse, error) {
	if !rec.Routable() {
		return nil, fmt.Errorf("dial %s: %w", rec.ID, ErrNoEndpoint)
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for dispatch slot: %w", err)
	}
	defer d.sem.Release(1)

	session := uuid.NewString()
	start := time.Now()

	resp, err := d.exchange(ctx, rec.Address(), cmd)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	d.metrics.ObserveDispatch(outcome, time.Since(start))
	d.logger.Debug("device session finished",
		"session", session,
		"device_id", rec.ID,
		"command", cmd.Command,
		"duration", time.Since(start).String(),
		"error", err,
	)
	return resp, err
}

func (d *Dispatcher) exchange(ctx context.Context, addr string, cmd *wire.DeviceCommand) (*wire.DeviceResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, err := d.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	if err := wire.WriteMessage(conn, cmd); err != nil {
		return nil, err
	}

	var resp wire.DeviceResponse
	if err := wire.ReadMessage(conn, &resp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoResponse
		}
		return nil, err
	}
	return &resp, nil
}
