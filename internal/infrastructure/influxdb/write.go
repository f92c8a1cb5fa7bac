package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDeviceState = "eufy_device_state"
	measurementKeepAlive   = "eufy_keepalive"
)

// WriteDeviceState records a device state snapshot.
//
// fields carries whichever of power, brightness, temperature, red, green
// and blue the device supports. The write is non-blocking; data is batched
// and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceState("kitchen-lamp", "T1012",
//	    map[string]any{"power": true, "brightness": 80, "temperature": 40})
func (c *Client) WriteDeviceState(deviceID, model string, fields map[string]any) {
	if len(fields) == 0 {
		return
	}
	c.WritePoint(measurementDeviceState,
		map[string]string{
			"device_id": deviceID,
			"model":     model,
		},
		fields,
	)
}

// WriteKeepAlive records the outcome and round-trip time of one keep-alive.
func (c *Client) WriteKeepAlive(deviceID string, rtt time.Duration, ok bool) {
	fields := map[string]any{"ok": ok}
	if ok {
		fields["rtt_ms"] = float64(rtt) / float64(time.Millisecond)
	}
	c.WritePoint(measurementKeepAlive,
		map[string]string{"device_id": deviceID},
		fields,
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"bridge": "eufy"},
//	    map[string]any{"devices_connected": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
