// Package influxdb provides optional telemetry history for PawLink Core.
//
// When enabled in configuration, every reconciled tracker snapshot is
// recorded to InfluxDB v2: position fixes, battery readings, and
// push-channel health. Writes are batched and non-blocking; a failed
// InfluxDB connection never affects device synchronization.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry history off, continue without it
//	}
//	defer client.Close()
//
//	client.WritePosition("TRAXAS1", 52.0, 4.0, 12.5, 0.8)
package influxdb
