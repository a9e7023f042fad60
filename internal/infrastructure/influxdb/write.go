package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePosition writes a single shade position measurement to InfluxDB.
//
// This is the primary method for recording movement telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - address: Entity address (e.g., "shce86a4fe")
//   - axis: The position axis ("primary", "secondary", "tilt")
//   - value: Position in percent (0-100)
//
// Example:
//
//	client.WritePosition("shce86a4fe", "primary", 42)
func (c *Client) WritePosition(address string, axis string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"shade_position",
		map[string]string{
			"address": address,
			"axis":    axis,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBattery writes a battery level measurement.
//
// Used for tracking battery decline on battery-powered motors.
//
// Parameters:
//   - address: Entity address
//   - level: Battery percentage (0-100)
func (c *Client) WriteBattery(address string, level float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"shade_battery",
		map[string]string{
			"address": address,
		},
		map[string]interface{}{
			"level": level,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSignal writes a link quality measurement for a shade motor.
//
// Parameters:
//   - address: Entity address
//   - rssi: Discrete RSSI level reported by the gateway
func (c *Client) WriteSignal(address string, rssi float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"shade_signal",
		map[string]string{
			"address": address,
		},
		map[string]interface{}{
			"rssi": rssi,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSceneActivity writes a scene activation state change.
//
// Parameters:
//   - address: Scene entity address
//   - active: Whether the scene is currently matched
func (c *Client) WriteSceneActivity(address string, active bool) {
	if !c.IsConnected() {
		return
	}

	v := 0.0
	if active {
		v = 1.0
	}

	point := write.NewPoint(
		"scene_activity",
		map[string]string{
			"address": address,
		},
		map[string]interface{}{
			"active": v,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed gateway events).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
