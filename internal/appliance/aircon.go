package appliance

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Air conditioner limits and defaults.
const (
	MinTemperature     = 16
	MaxTemperature     = 30
	DefaultTemperature = 25

	acTelemetryInterval = 15 * time.Second
)

var (
	acModes     = []string{"COOL", "HEAT", "FAN"}
	acFanSpeeds = []string{"LOW", "MEDIUM", "HIGH", "AUTO"}
)

// AirConditionerState is the air conditioner's status document.
type AirConditionerState struct {
	Power       string `json:"power"`
	Temperature int    `json:"temperature"`
	Mode        string `json:"mode"`
	FanSpeed    string `json:"fan_speed"`
}

// AirConditioner is a split-unit air conditioner.
type AirConditioner struct {
	mu    sync.Mutex
	state AirConditionerState
}

// NewAirConditioner returns an air conditioner that is off, cooling, at
// 25°C with automatic fan speed.
func NewAirConditioner() *AirConditioner {
	return &AirConditioner{state: AirConditionerState{
		Power:       "OFF",
		Temperature: DefaultTemperature,
		Mode:        "COOL",
		FanSpeed:    "AUTO",
	}}
}

// Type implements Device.
func (a *AirConditioner) Type() string { return TypeAirConditioner }

// Interval implements Device.
func (a *AirConditioner) Interval() time.Duration { return acTelemetryInterval }

// State returns a copy of the current state.
func (a *AirConditioner) State() AirConditionerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Handle implements Device.
//
// ON and OFF both reset the target temperature to the default. A successful
// SET_TEMPERATURE also switches the unit on.
func (a *AirConditioner) Handle(command string, p Params) (Result, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch command {
	case "ON":
		a.state.Power = "ON"
		a.state.Temperature = DefaultTemperature
		return succeed("Air conditioner turned on"), true, nil

	case "OFF":
		a.state.Power = "OFF"
		a.state.Temperature = DefaultTemperature
		return succeed("Air conditioner turned off"), true, nil

	case "SET_TEMPERATURE":
		temp, ok, err := p.Int("temperature")
		if err != nil {
			return Result{}, true, err
		}
		if !ok {
			return reject("Missing temperature parameter"), true, nil
		}
		if temp < MinTemperature || temp > MaxTemperature {
			return reject("Temperature must be between 16 and 30°C"), true, nil
		}
		a.state.Power = "ON"
		a.state.Temperature = temp
		return succeed("Temperature set to %d°C", temp), true, nil

	case "SET_MODE":
		mode, ok, err := p.String("mode")
		if err != nil {
			return Result{}, true, err
		}
		if !ok {
			return reject("Missing mode parameter"), true, nil
		}
		mode = strings.ToUpper(mode)
		if !slices.Contains(acModes, mode) {
			return reject("Invalid mode"), true, nil
		}
		a.state.Mode = mode
		return succeed("Mode set to %s", mode), true, nil

	case "SET_FAN_SPEED":
		speed, ok, err := p.String("fan_speed")
		if err != nil {
			return Result{}, true, err
		}
		if !ok {
			return reject("Missing fan_speed parameter"), true, nil
		}
		speed = strings.ToUpper(speed)
		if !slices.Contains(acFanSpeeds, speed) {
			return reject("Invalid fan speed"), true, nil
		}
		a.state.FanSpeed = speed
		return succeed("Fan speed set to %s", speed), true, nil
	}
	return Result{}, false, nil
}

// Status implements Device.
func (a *AirConditioner) Status() string {
	return marshalState(a.State())
}

// Attributes implements Device.
func (a *AirConditioner) Attributes() map[string]string {
	s := a.State()
	return map[string]string{
		"power":       s.Power,
		"temperature": strconv.Itoa(s.Temperature),
		"mode":        s.Mode,
		"fan_speed":   s.FanSpeed,
	}
}

// Sample implements Device. The value is the target temperature and the
// unit carries the full status document.
func (a *AirConditioner) Sample() Sample {
	s := a.State()
	return Sample{SensorType: "ac_state", Value: float64(s.Temperature), Unit: marshalState(s)}
}
