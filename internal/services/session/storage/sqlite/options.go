package sqlite

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/sessionstore/internal/platform/timeouts"
	"github.com/louisbranch/sessionstore/internal/services/session/metrics"
)

// DefaultTableName is the session table used when none is configured.
const DefaultTableName = "__session_store"

// MemoryPath opens a private in-memory database instead of a file.
const MemoryPath = ":memory:"

type options struct {
	defaultTTL    time.Duration
	sweepInterval time.Duration
	tableName     string
	clock         func() time.Time
	metrics       *metrics.Metrics
	logger        *log.Logger
	connect       func(path string) (*sql.DB, error)
}

// Option configures a Store.
type Option func(*options)

// WithDefaultTTL sets the lifetime used when Set receives ttl <= 0 and the
// payload carries no cookie expiry.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithSweepInterval sets how often expired rows are swept in the background.
// A value <= 0 disables the background sweep; Sweep can still be called.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = interval
	}
}

// WithTableName overrides the session table name.
func WithTableName(name string) Option {
	return func(o *options) {
		if name = strings.TrimSpace(name); name != "" {
			o.tableName = name
		}
	}
}

// WithClock overrides the time source used for expiry decisions.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the logger for background failures (sweeps and read-side
// cleanup) that have no caller to report to.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// withConnector replaces the connection step. Tests use it to hold the store
// in its initializing state.
func withConnector(connect func(path string) (*sql.DB, error)) Option {
	return func(o *options) {
		o.connect = connect
	}
}

func defaultOptions() options {
	return options{
		defaultTTL:    timeouts.SessionTTL,
		sweepInterval: timeouts.SessionSweep,
		tableName:     DefaultTableName,
		clock:         time.Now,
		logger:        log.Default(),
		connect:       openDB,
	}
}
