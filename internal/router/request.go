package router

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CommandRequest is the JSON command body accepted over HTTP and MQTT:
//
//	{"action": "SET_BRIGHTNESS", "parameters": {"brightness": 80}}
//
// Parameters may also be given as a JSON-encoded string, the form the
// binary protocol carries them in.
type CommandRequest struct {
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// DecodeCommandRequest parses a command body.
//
// Returns:
//   - CommandRequest: The decoded request
//   - error: ErrInvalidCommand if the body is not JSON or has no action
func DecodeCommandRequest(data []byte) (CommandRequest, error) {
	var req CommandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return CommandRequest{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if req.Action == "" {
		return CommandRequest{}, fmt.Errorf("%w: missing action", ErrInvalidCommand)
	}
	if _, err := req.ParamsJSON(); err != nil {
		return CommandRequest{}, err
	}
	return req, nil
}

// ParamsJSON returns the parameters as the JSON text forwarded to agents.
// Absent or null parameters yield "".
func (c CommandRequest) ParamsJSON() (string, error) {
	raw := bytes.TrimSpace(c.Parameters)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return s, nil
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: parameters must be an object", ErrInvalidCommand)
	}
}
