package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommandMetric records one terminal command outcome in the
// "commands" measurement. Kind and action are empty for status and
// health queries.
func (c *Client) WriteCommandMetric(userID, kind, action, status string, latency time.Duration) {
	c.writePoint(write.NewPoint(
		"commands",
		map[string]string{
			"user_id": userID,
			"kind":    kind,
			"action":  action,
			"status":  status,
		},
		map[string]interface{}{
			"latency_ms": float64(latency.Milliseconds()),
		},
		time.Now(),
	))
}

// WriteDeviceStatus records a device observation in the "device_status"
// measurement. Wired to the registry status listener, so every cache
// update (push or poll) lands in the telemetry stream. Numeric and bool
// attributes become fields; everything else is dropped.
func (c *Client) WriteDeviceStatus(deviceID string, online bool, attrs map[string]any) {
	fields := map[string]interface{}{
		"online": boolField(online),
	}
	for k, v := range attrs {
		switch n := v.(type) {
		case int:
			fields[k] = float64(n)
		case int64:
			fields[k] = float64(n)
		case float64:
			fields[k] = n
		case bool:
			fields[k] = boolField(n)
		}
	}

	c.writePoint(write.NewPoint(
		"device_status",
		map[string]string{"device_id": deviceID},
		fields,
		time.Now(),
	))
}

func (c *Client) writePoint(point *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(point)
}

// boolField encodes booleans as 0/1 so they can be graphed.
func boolField(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
