// Package maintenance runs one-shot housekeeping against a session database.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	entrypoint "github.com/louisbranch/sessionstore/internal/platform/cmd"
	"github.com/louisbranch/sessionstore/internal/platform/timeouts"
	sessionsqlite "github.com/louisbranch/sessionstore/internal/services/session/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath     string        `env:"SESSIONSTORE_DB_PATH"`
	TableName  string        `env:"SESSIONSTORE_TABLE_NAME"`
	Timeout    time.Duration `env:"SESSIONSTORE_MAINTENANCE_TIMEOUT"`
	Sweep      bool
	Stats      bool
	Clear      bool
	JSONOutput bool
}

type envConfig struct {
	DBPath    string        `env:"SESSIONSTORE_DB_PATH"`
	TableName string        `env:"SESSIONSTORE_TABLE_NAME"`
	Timeout   time.Duration `env:"SESSIONSTORE_MAINTENANCE_TIMEOUT"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:    envCfg.DBPath,
		TableName: envCfg.TableName,
		Timeout:   envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "sessions.db")
	}
	if cfg.TableName == "" {
		cfg.TableName = sessionsqlite.DefaultTableName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Maintenance
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the session sqlite database (default: SESSIONSTORE_DB_PATH or data/sessions.db)")
	fs.StringVar(&cfg.TableName, "table", cfg.TableName, "session table name")
	fs.BoolVar(&cfg.Sweep, "sweep", false, "delete expired sessions")
	fs.BoolVar(&cfg.Stats, "stats", false, "report total and expired session counts")
	fs.BoolVar(&cfg.Clear, "clear", false, "delete every session")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output a JSON report")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// report is the result of one maintenance run.
type report struct {
	Swept   *int64               `json:"swept,omitempty"`
	Cleared bool                 `json:"cleared,omitempty"`
	Stats   *sessionsqlite.Stats `json:"stats,omitempty"`
}

// Run executes the maintenance command with command telemetry configured.
//
// Actions run in a fixed order: clear, sweep, then stats, so a combined
// invocation reports the table as it was left.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMaintenance, func(ctx context.Context) error {
		return run(ctx, cfg, out, errOut)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if !cfg.Sweep && !cfg.Stats && !cfg.Clear {
		return errors.New("one of -sweep, -stats, or -clear is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("-db is required")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close session store: %v\n", closeErr)
		}
	}()

	var result report
	if cfg.Clear {
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
		result.Cleared = true
	}
	if cfg.Sweep {
		removed, err := store.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep sessions: %w", err)
		}
		result.Swept = &removed
	}
	if cfg.Stats {
		stats, err := store.Stats(ctx)
		if err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		result.Stats = &stats
	}

	return printReport(out, result, cfg.JSONOutput)
}

func printReport(out io.Writer, result report, jsonOutput bool) error {
	if jsonOutput {
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return nil
	}
	if result.Cleared {
		fmt.Fprintln(out, "Cleared all sessions")
	}
	if result.Swept != nil {
		fmt.Fprintf(out, "Swept %d expired sessions\n", *result.Swept)
	}
	if result.Stats != nil {
		fmt.Fprintf(out, "Sessions: %d total, %d expired\n", result.Stats.Total, result.Stats.Expired)
	}
	return nil
}
