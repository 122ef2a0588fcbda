package appliance

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Device types.
const (
	TypeAirConditioner    = "air_conditioner"
	TypeSmartLamp         = "smart_lamp"
	TypeTemperatureSensor = "temperature_sensor"
	TypeBrightnessSensor  = "brightness_sensor"
)

// Device is one simulated appliance.
type Device interface {
	// Type returns the device type string advertised in discovery.
	Type() string

	// Handle applies a device-specific command. known is false when the
	// command is not supported by this device. A non-nil error means the
	// parameters could not be interpreted at all.
	Handle(command string, p Params) (res Result, known bool, err error)

	// Status renders the current state as a JSON object.
	Status() string

	// Attributes returns the current state values as strings.
	Attributes() map[string]string

	// Sample returns the telemetry reading pushed to the gateway.
	Sample() Sample

	// Interval returns the telemetry push period.
	Interval() time.Duration
}

// Result is the outcome of a device command.
type Result struct {
	Success bool
	Message string
}

func succeed(format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func reject(msg string) Result {
	return Result{Success: false, Message: msg}
}

// Sample is one telemetry reading.
type Sample struct {
	SensorType string
	Value      float64
	Unit       string
}

// New creates a device of the given type in its default state.
func New(deviceType string) (Device, error) {
	switch deviceType {
	case TypeAirConditioner:
		return NewAirConditioner(), nil
	case TypeSmartLamp:
		return NewSmartLamp(), nil
	case TypeTemperatureSensor:
		return NewTemperatureSensor(), nil
	case TypeBrightnessSensor:
		return NewBrightnessSensor(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, deviceType)
	}
}

// Types lists the supported device types in sorted order.
func Types() []string {
	t := []string{TypeAirConditioner, TypeSmartLamp, TypeTemperatureSensor, TypeBrightnessSensor}
	sort.Strings(t)
	return t
}

// Params are a command's decoded JSON parameters.
type Params map[string]any

// ParseParams decodes raw as a JSON object. An empty string yields no
// parameters.
func ParseParams(raw string) (Params, error) {
	p := Params{}
	if strings.TrimSpace(raw) == "" {
		return p, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return p, nil
}

// Int returns key as an integer. JSON numbers are truncated toward zero and
// numeric strings are accepted.
//
// Returns:
//   - int: The value
//   - bool: false if key is absent
//   - error: ErrInvalidParameter if the value is not numeric
func (p Params) Int(key string) (int, bool, error) {
	v, ok := p[key]
	if !ok {
		return 0, false, nil
	}

	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, true, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, key)
	}

	if n, err := strconv.Atoi(s); err == nil {
		return n, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, true, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidParameter, key, s)
	}
	return int(f), true, nil
}

// String returns key as a string.
func (p Params) String(key string) (string, bool, error) {
	v, ok := p[key]
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", true, fmt.Errorf("%w: %s must be a string", ErrInvalidParameter, key)
	}
	return s, true, nil
}

// marshalState renders a state struct; state types only hold strings and
// numbers so encoding cannot fail.
func marshalState(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
