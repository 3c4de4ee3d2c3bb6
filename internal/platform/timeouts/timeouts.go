// Package timeouts defines shared timeout and interval constants.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server or telemetry exporter waits for
// in-flight work during graceful shutdown.
const Shutdown = 5 * time.Second

// SessionSweep is the default interval between background sweeps of expired
// session rows.
const SessionSweep = 15 * time.Minute

// SessionTTL is the default session lifetime when neither a cookie expiry nor
// an explicit ttl is supplied.
const SessionTTL = time.Hour

// Maintenance caps how long an operator maintenance run may take.
const Maintenance = time.Minute
