// Package sessiond parses session app flags and launches the counter app server.
package sessiond

import (
	"context"
	"flag"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/sessionstore/internal/platform/cmd"
	"github.com/louisbranch/sessionstore/internal/platform/timeouts"
	server "github.com/louisbranch/sessionstore/internal/services/session/app"
	"github.com/louisbranch/sessionstore/internal/services/session/middleware"
	sessionsqlite "github.com/louisbranch/sessionstore/internal/services/session/storage/sqlite"
)

// Config holds the sessiond command configuration.
type Config struct {
	HTTPAddr      string        `env:"SESSIONSTORE_HTTP_ADDR" envDefault:"localhost:8080"`
	DBPath        string        `env:"SESSIONSTORE_DB_PATH"`
	TableName     string        `env:"SESSIONSTORE_TABLE_NAME"`
	DefaultTTL    time.Duration `env:"SESSIONSTORE_DEFAULT_TTL"`
	SweepInterval time.Duration `env:"SESSIONSTORE_SWEEP_INTERVAL"`
	CookieName    string        `env:"SESSIONSTORE_COOKIE_NAME"`
	CookieMaxAge  time.Duration `env:"SESSIONSTORE_COOKIE_MAX_AGE"`
	SecureCookie  bool          `env:"SESSIONSTORE_SECURE_COOKIE"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "sessions.db")
	}
	if strings.TrimSpace(cfg.TableName) == "" {
		cfg.TableName = sessionsqlite.DefaultTableName
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = timeouts.SessionTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = timeouts.SessionSweep
	}
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = middleware.DefaultCookieName
	}
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = middleware.DefaultMaxAge
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite session database path (or :memory:)")
	fs.StringVar(&cfg.TableName, "table", cfg.TableName, "session table name")
	fs.DurationVar(&cfg.DefaultTTL, "default-ttl", cfg.DefaultTTL, "session lifetime when no cookie expiry is set")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "interval between expired session sweeps (negative disables)")
	fs.StringVar(&cfg.CookieName, "cookie-name", cfg.CookieName, "session cookie name")
	fs.DurationVar(&cfg.CookieMaxAge, "cookie-max-age", cfg.CookieMaxAge, "session cookie lifetime")
	fs.BoolVar(&cfg.SecureCookie, "secure-cookie", cfg.SecureCookie, "mark the session cookie Secure")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the session app server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSessiond, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:      cfg.HTTPAddr,
			DBPath:        cfg.DBPath,
			TableName:     cfg.TableName,
			DefaultTTL:    cfg.DefaultTTL,
			SweepInterval: cfg.SweepInterval,
			CookieName:    cfg.CookieName,
			CookieMaxAge:  cfg.CookieMaxAge,
			SecureCookie:  cfg.SecureCookie,
		})
	})
}
