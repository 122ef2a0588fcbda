// Package appliance models the devices a grayhub agent can impersonate.
//
// Each model keeps typed state behind a mutex, validates command parameters,
// and renders its state as the JSON status document the gateway stores
// verbatim. Sensor readings are injected with SetReading; no environment
// physics is simulated.
//
// Supported types:
//   - air_conditioner: power, target temperature (16-30), mode, fan speed
//   - smart_lamp: power, brightness (0-100)
//   - temperature_sensor: temperature reading, update interval
//   - brightness_sensor: brightness reading, update interval
package appliance
