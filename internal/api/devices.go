package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/router"
)

// maxQueryParamLen limits path and query parameter length.
const maxQueryParamLen = 128

// handleListDevices returns every registry record, ordered by ID.
//
// Query parameters:
//   - type: only records of this device type
//   - routable: "true" for records with a command endpoint, "false" for
//     telemetry-only placeholders
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typeFilter := q.Get("type")

	var routable *bool
	if raw := q.Get("routable"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "routable must be true or false")
			return
		}
		routable = &v
	}

	snap := s.registry.Snapshot()
	devices := make([]device.Record, 0, len(snap))
	for i := range snap {
		if typeFilter != "" && snap[i].Type != typeFilter {
			continue
		}
		if routable != nil && snap[i].Routable() != *routable {
			continue
		}
		devices = append(devices, snap[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleDeviceStats returns registry counters.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}

	rec, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeviceCommand sends a command to a device and returns the agent's
// reply. Agent-level failures (success=false) are still 200; transport
// failures map to 4xx/5xx with the same Result body the binary protocol
// would carry.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	if s.commander == nil {
		writeError(w, http.StatusServiceUnavailable, "device commands unavailable")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large")
		return
	}
	req, err := router.DecodeCommandRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params, _ := req.ParamsJSON()

	res, err := s.commander.Command(r.Context(), id, req.Action, params)
	writeJSON(w, commandStatus(err), res)
}

// commandStatus maps a dispatch error to an HTTP status.
func commandStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, device.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, router.ErrMissingDeviceID):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrNoEndpoint):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// handleGetDeviceHistory returns stored telemetry samples, newest first.
//
// History outlives registry eviction, so the device does not need to be
// present in the registry.
//
// Query parameters:
//   - limit: 1-200, default 50
//   - since: RFC3339 timestamp; only samples stored after it
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDParam(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid since timestamp")
		return
	}

	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "telemetry history unavailable")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), device.HistoryQuery{
		DeviceID: deviceID,
		Limit:    limit,
		Since:    since,
	})
	if err != nil {
		s.logger.Error("loading telemetry history failed", "device_id", deviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load device history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"history":   entries,
		"count":     len(entries),
	})
}

// deviceIDParam reads and bounds the {id} path parameter, writing a 400
// when it is unusable.
func deviceIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeError(w, http.StatusBadRequest, "invalid device ID")
		return "", false
	}
	return id, true
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return device.DefaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > device.MaxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}
	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
