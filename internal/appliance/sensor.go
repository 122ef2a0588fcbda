package appliance

import (
	"strconv"
	"sync"
	"time"
)

// Sensor update interval bounds, in seconds.
const (
	MinUpdateInterval     = 1
	MaxUpdateInterval     = 3600
	defaultUpdateInterval = 2
)

// SensorState is a sensor's status document. The reading is published
// under a type-specific key.
type SensorState struct {
	Reading        float64
	Unit           string
	UpdateInterval int
}

// Sensor is a read-only device that periodically reports one reading.
// SET_INTERVAL changes the reporting period.
type Sensor struct {
	deviceType string
	sensorType string
	readingKey string

	mu    sync.Mutex
	state SensorState
}

// NewTemperatureSensor returns a temperature sensor reading 25.0°C.
func NewTemperatureSensor() *Sensor {
	return &Sensor{
		deviceType: TypeTemperatureSensor,
		sensorType: "temperature",
		readingKey: "temperature",
		state:      SensorState{Reading: 25.0, Unit: "°C", UpdateInterval: defaultUpdateInterval},
	}
}

// NewBrightnessSensor returns a brightness sensor reading 0%.
func NewBrightnessSensor() *Sensor {
	return &Sensor{
		deviceType: TypeBrightnessSensor,
		sensorType: "brightness",
		readingKey: "brightness",
		state:      SensorState{Reading: 0, Unit: "%", UpdateInterval: defaultUpdateInterval},
	}
}

// Type implements Device.
func (s *Sensor) Type() string { return s.deviceType }

// SetReading replaces the current reading.
func (s *Sensor) SetReading(v float64) {
	s.mu.Lock()
	s.state.Reading = v
	s.mu.Unlock()
}

// State returns a copy of the current state.
func (s *Sensor) State() SensorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval implements Device.
func (s *Sensor) Interval() time.Duration {
	return time.Duration(s.State().UpdateInterval) * time.Second
}

// Handle implements Device.
func (s *Sensor) Handle(command string, p Params) (Result, bool, error) {
	if command != "SET_INTERVAL" {
		return Result{}, false, nil
	}

	n, ok, err := p.Int("interval")
	if err != nil {
		return Result{}, true, err
	}
	if !ok {
		return reject("Missing interval parameter"), true, nil
	}
	if n < MinUpdateInterval || n > MaxUpdateInterval {
		return reject("Interval must be between 1 and 3600 seconds"), true, nil
	}

	s.mu.Lock()
	s.state.UpdateInterval = n
	s.mu.Unlock()
	return succeed("Update interval set to %d seconds", n), true, nil
}

// Status implements Device.
func (s *Sensor) Status() string {
	st := s.State()
	return marshalState(map[string]any{
		s.readingKey:      st.Reading,
		"unit":            st.Unit,
		"update_interval": st.UpdateInterval,
	})
}

// Attributes implements Device.
func (s *Sensor) Attributes() map[string]string {
	st := s.State()
	return map[string]string{
		s.readingKey:      formatFloat(st.Reading),
		"unit":            st.Unit,
		"update_interval": strconv.Itoa(st.UpdateInterval),
	}
}

// Sample implements Device.
func (s *Sensor) Sample() Sample {
	st := s.State()
	return Sample{SensorType: s.sensorType, Value: st.Reading, Unit: st.Unit}
}
