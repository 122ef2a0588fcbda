package router

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// Fixed client-facing messages.
const (
	MsgDevicesRetrieved = "Devices retrieved successfully"
	MsgMissingDeviceID  = "Missing device_id"
	MsgDeviceNotFound   = "Device not found"
	MsgNoResponse       = "No response from device"
	MsgUnknownCommand   = "Unknown command"

	msgCommErrorPrefix = "Error communicating with device: "
)

// SensorDataAttribute is the DeviceInfo attribute carrying the last sample.
const SensorDataAttribute = "sensor_data"

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

// Result is the outcome of one device command.
type Result struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Status     string            `json:"status,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Router answers client requests against the registry and the agents.
type Router struct {
	registry   *device.Registry
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     Logger
}

// New creates a router.
func New(registry *device.Registry, dispatcher *Dispatcher) *Router {
	return &Router{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetMetrics attaches Prometheus counters.
func (r *Router) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Handle answers one client request. It never fails: every problem becomes
// a negative response.
func (r *Router) Handle(ctx context.Context, req *wire.ClientRequest) *wire.ClientResponse {
	switch req.Command {
	case wire.CmdListDevices:
		r.metrics.IncRouterRequest(req.Command, metrics.OutcomeSuccess)
		return &wire.ClientResponse{
			Success: true,
			Message: MsgDevicesRetrieved,
			Devices: r.ListDevices(),
		}

	case wire.CmdControlDevice:
		return r.commandResponse(ctx, req.Command, req.DeviceID, req.Action, req.Parameters)

	case wire.CmdGetStatus, wire.CmdSetStatus:
		return r.commandResponse(ctx, req.Command, req.DeviceID, wire.CmdGetStatus, "")

	default:
		r.metrics.IncRouterRequest("unknown", metrics.OutcomeRejected)
		return &wire.ClientResponse{Success: false, Message: MsgUnknownCommand}
	}
}

func (r *Router) commandResponse(ctx context.Context, command, id, action, params string) *wire.ClientResponse {
	res, err := r.Command(ctx, id, action, params)

	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, ErrMissingDeviceID), errors.Is(err, device.ErrDeviceNotFound):
		outcome = metrics.OutcomeRejected
	case err != nil:
		outcome = metrics.OutcomeError
	}
	r.metrics.IncRouterRequest(command, outcome)

	return &wire.ClientResponse{Success: res.Success, Message: res.Message}
}

// ListDevices renders the registry snapshot as DeviceInfo, sorted by ID.
func (r *Router) ListDevices() []wire.DeviceInfo {
	snap := r.registry.Snapshot()
	out := make([]wire.DeviceInfo, 0, len(snap))
	for i := range snap {
		out = append(out, toDeviceInfo(&snap[i]))
	}
	return out
}

func toDeviceInfo(rec *device.Record) wire.DeviceInfo {
	info := wire.DeviceInfo{
		DeviceID:   rec.ID,
		DeviceType: rec.Type,
		IP:         rec.IP,
		Port:       uint32(rec.Port), //nolint:gosec // ports are 0-65535
		Status:     rec.Status,
	}
	if data := rec.SensorDataJSON(); data != "" {
		info.Attributes = map[string]string{SensorDataAttribute: data}
	}
	return info
}

// Command sends action to a device and relays the agent's reply. A
// non-empty status in the reply replaces the registry status.
//
// Parameters:
//   - ctx: Cancels waiting for a dispatch slot
//   - id: Target device ID
//   - action: Command name forwarded to the agent
//   - params: JSON parameters forwarded verbatim
//
// Returns:
//   - Result: Always populated with the client-facing message
//   - error: ErrMissingDeviceID, device.ErrDeviceNotFound, or the dispatch
//     failure; nil when the agent answered (even with success=false)
func (r *Router) Command(ctx context.Context, id, action, params string) (Result, error) {
	if id == "" {
		return Result{Message: MsgMissingDeviceID}, ErrMissingDeviceID
	}

	rec, err := r.registry.Get(id)
	if err != nil {
		return Result{Message: MsgDeviceNotFound}, err
	}

	resp, err := r.dispatcher.Send(ctx, *rec, &wire.DeviceCommand{Command: action, Parameters: params})
	if err != nil {
		r.logger.Warn("device command failed", "device_id", id, "action", action, "error", err)
		if errors.Is(err, ErrNoResponse) {
			return Result{Message: MsgNoResponse}, err
		}
		return Result{Message: msgCommErrorPrefix + err.Error()}, err
	}

	if resp.Status != "" {
		if err := r.registry.SetStatus(id, resp.Status); err != nil {
			r.logger.Debug("status update skipped", "device_id", id, "error", err)
		}
	}

	r.logger.Debug("device command relayed",
		"device_id", id,
		"action", action,
		"success", resp.Success,
	)
	return Result{
		Success:    resp.Success,
		Message:    resp.Message,
		Status:     resp.Status,
		Attributes: resp.Attributes,
	}, nil
}
