package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePosition records a tracker position fix.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - trackerID: Vendor tracker identifier (e.g., "TRAXAS1")
//   - lat, lng: WGS84 coordinates
//   - altitude: Metres above sea level
//   - speed: Metres per second
func (c *Client) WritePosition(trackerID string, lat, lng, altitude, speed float64) {
	c.WritePoint(
		"tracker_position",
		map[string]string{
			"tracker_id": trackerID,
		},
		map[string]interface{}{
			"latitude":  lat,
			"longitude": lng,
			"altitude":  altitude,
			"speed":     speed,
		},
	)
}

// WriteBattery records a tracker battery reading.
//
// Parameters:
//   - trackerID: Vendor tracker identifier
//   - level: Battery percentage (0-100)
//   - charging: Whether the tracker is on the charger
func (c *Client) WriteBattery(trackerID string, level int, charging bool) {
	c.WritePoint(
		"tracker_battery",
		map[string]string{
			"tracker_id": trackerID,
		},
		map[string]interface{}{
			"level":    level,
			"charging": charging,
		},
	)
}

// WriteStreamHealth records push-channel health metrics.
//
// Used to chart heartbeat gaps and reconnect frequency over time.
//
// Parameters:
//   - status: Current channel status (idle, registering, connected)
//   - heartbeatAge: Seconds since the last keep-alive
func (c *Client) WriteStreamHealth(status string, heartbeatAge float64) {
	c.WritePoint(
		"stream_health",
		map[string]string{
			"status": status,
		},
		map[string]interface{}{
			"heartbeat_age_seconds": heartbeatAge,
		},
	)
}

// WritePoint writes a measurement with arbitrary tags and fields. All the
// typed helpers above funnel through here.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
