// Package influxdb provides time-series storage for command and device
// telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
// This package records:
//   - Command latency and terminal status per user and device kind
//   - Device online/offline transitions and reported attributes
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteCommandMetric("alice", "light", "on", "success", 42*time.Millisecond)
//
// Writes are batched and flushed asynchronously; a failed write never
// blocks or fails the command that produced it. Use SetOnError to
// observe async write failures.
package influxdb
