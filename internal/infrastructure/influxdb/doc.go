// Package influxdb provides InfluxDB connectivity for the Eufy bridge.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, device telemetry writes and health monitoring.
//
// # Purpose
//
// Two measurements are written:
//   - eufy_device_state: power, brightness, temperature and color after
//     every load or command (tags: device_id, model)
//   - eufy_keepalive: outcome and round-trip time of each keep-alive
//     (tag: device_id)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without metrics
//	}
//	defer client.Close()
//
//	client.WriteKeepAlive("kitchen-lamp", 12*time.Millisecond, true)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// errors are delivered to the SetOnError callback.
package influxdb
