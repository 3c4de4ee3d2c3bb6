package maintenance

import (
	"context"

	sessionsqlite "github.com/louisbranch/sessionstore/internal/services/session/storage/sqlite"
)

// sessionMaintainer is the slice of the session store the maintenance
// command drives.
type sessionMaintainer interface {
	Sweep(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (sessionsqlite.Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// openStore opens the session store without a background sweeper; the
// command sweeps explicitly when asked.
var openStore = func(ctx context.Context, cfg Config) (sessionMaintainer, error) {
	return sessionsqlite.Open(ctx, cfg.DBPath,
		sessionsqlite.WithTableName(cfg.TableName),
		sessionsqlite.WithSweepInterval(0),
	)
}
