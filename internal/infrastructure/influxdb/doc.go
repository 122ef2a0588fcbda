// Package influxdb writes device telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Each accepted sensor
// sample becomes one point in the "telemetry" measurement:
//
//	telemetry,device_id=temperature_sensor_10.0.0.7_41000,sensor_type=temperature,unit=°C value=21.5 1700000000000000000
//
// Units that are themselves JSON state documents (air conditioner, lamp) are
// not used as tags.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	ingester.AddSink(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; batch errors are
// delivered to the SetOnError callback and counted by WriteFailures.
package influxdb
