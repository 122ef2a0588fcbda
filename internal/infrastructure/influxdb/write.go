package influxdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// TelemetryMeasurement is the measurement every sample is written to.
const TelemetryMeasurement = "telemetry"

// RecordSample queues one telemetry sample for writing.
//
// The write is non-blocking; batch failures surface through SetOnError.
//
// Returns:
//   - error: ErrNotConnected after Close
func (c *Client) RecordSample(_ context.Context, deviceID string, t device.Telemetry) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writer.WritePoint(telemetryPoint(deviceID, t))
	return nil
}

// telemetryPoint converts a sample into a point. The sample's own Unix
// timestamp is used when set, otherwise the receive time.
func telemetryPoint(deviceID string, t device.Telemetry) *write.Point {
	tags := map[string]string{
		"device_id":   deviceID,
		"sensor_type": t.SensorType,
	}
	if t.Unit != "" && !json.Valid([]byte(t.Unit)) {
		tags["unit"] = t.Unit
	}

	ts := t.ReceivedAt
	if t.Timestamp > 0 {
		ts = time.Unix(t.Timestamp, 0)
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		TelemetryMeasurement,
		tags,
		map[string]interface{}{"value": t.Value},
		ts,
	)
}
