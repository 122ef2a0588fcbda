package appliance

import (
	"strconv"
	"sync"
	"time"
)

const (
	defaultBrightness     = 50
	lampTelemetryInterval = 15 * time.Second
)

// SmartLampState is the lamp's status document.
type SmartLampState struct {
	Power      string `json:"power"`
	Brightness int    `json:"brightness"`
}

// SmartLamp is a dimmable lamp.
type SmartLamp struct {
	mu    sync.Mutex
	state SmartLampState
}

// NewSmartLamp returns a lamp that is off at 50% brightness.
func NewSmartLamp() *SmartLamp {
	return &SmartLamp{state: SmartLampState{Power: "OFF", Brightness: defaultBrightness}}
}

// Type implements Device.
func (l *SmartLamp) Type() string { return TypeSmartLamp }

// Interval implements Device.
func (l *SmartLamp) Interval() time.Duration { return lampTelemetryInterval }

// State returns a copy of the current state.
func (l *SmartLamp) State() SmartLampState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Handle implements Device.
func (l *SmartLamp) Handle(command string, p Params) (Result, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch command {
	case "ON":
		l.state.Power = "ON"
		return succeed("Lamp turned on"), true, nil

	case "OFF":
		l.state.Power = "OFF"
		return succeed("Lamp turned off"), true, nil

	case "SET_BRIGHTNESS":
		b, ok, err := p.Int("brightness")
		if err != nil {
			return Result{}, true, err
		}
		if !ok {
			return reject("Missing brightness parameter"), true, nil
		}
		if b < 0 || b > 100 {
			return reject("Brightness must be between 0 and 100"), true, nil
		}
		l.state.Brightness = b
		return succeed("Brightness set to %d%%", b), true, nil
	}
	return Result{}, false, nil
}

// Status implements Device.
func (l *SmartLamp) Status() string {
	return marshalState(l.State())
}

// Attributes implements Device.
func (l *SmartLamp) Attributes() map[string]string {
	s := l.State()
	return map[string]string{
		"power":      s.Power,
		"brightness": strconv.Itoa(s.Brightness),
	}
}

// Sample implements Device.
func (l *SmartLamp) Sample() Sample {
	s := l.State()
	return Sample{SensorType: "lamp_state", Value: float64(s.Brightness), Unit: marshalState(s)}
}
