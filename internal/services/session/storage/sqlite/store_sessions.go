package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/louisbranch/sessionstore/internal/platform/errors"
	"github.com/louisbranch/sessionstore/internal/services/session/storage"
)

// Stats summarises the session table at one instant.
type Stats struct {
	Total   int64 `json:"total"`
	Expired int64 `json:"expired"`
}

// Get loads the session for id into dst and reports whether it was found.
//
// An expired row is reported as absent and its deletion is queued without
// waiting for it. dst may be nil to test for presence only. A row whose
// stored data cannot be decoded fails with a serialization error.
func (s *Store) Get(ctx context.Context, id string, dst any) (bool, error) {
	id, err := requireID(id)
	if err != nil {
		return false, err
	}

	var record storage.Record
	var found bool
	err = s.do(ctx, "get", id, func(ctx context.Context, db *sql.DB) error {
		row := db.QueryRowContext(ctx, `SELECT id, expires, data FROM `+s.table+` WHERE id = ?`, id)

		var expires int64
		var data sql.NullString
		if err := row.Scan(&record.ID, &expires, &data); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return queryError("get session", id, err)
		}
		record.ExpiresAt = unixMillisToTime(expires)
		record.Data = []byte(data.String)
		found = true
		return nil
	})
	if err != nil || !found {
		return false, err
	}

	if record.Expired(s.opts.clock()) {
		s.opts.metrics.ExpiredOnRead()
		s.destroyInBackground(ctx, id)
		return false, nil
	}
	if len(record.Data) == 0 {
		return false, nil
	}
	if dst != nil {
		if err := json.Unmarshal(record.Data, dst); err != nil {
			return false, apperrors.WrapWithMetadata(apperrors.CodeSerialization, "decode session payload", idMetadata(id), err)
		}
	}
	return true, nil
}

// Set stores payload for id, replacing any existing session.
//
// The expiry is the payload's cookie.expires when present, otherwise now plus
// ttl (or the default ttl when ttl <= 0).
func (s *Store) Set(ctx context.Context, id string, payload any, ttl time.Duration) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeSerialization, "encode session payload", idMetadata(id), err)
	}
	expiresAt, err := computeExpiry(payload, data, s.opts.clock(), ttl, s.opts.defaultTTL)
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeSerialization, "compute session expiry", idMetadata(id), err)
	}

	return s.do(ctx, "set", id, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO `+s.table+` (id, expires, data) VALUES (?, ?, ?)`,
			id,
			timeToUnixMillis(expiresAt),
			string(data),
		)
		if err != nil {
			return queryError("put session", id, err)
		}
		return nil
	})
}

// Destroy removes the session for id. Removing an absent id succeeds.
func (s *Store) Destroy(ctx context.Context, id string) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	return s.do(ctx, "destroy", id, s.deleteTask(id))
}

// Sweep deletes every session whose expiry is at or before now and returns
// how many rows it removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	var removed int64
	err := s.do(ctx, "sweep", "", func(ctx context.Context, db *sql.DB) error {
		now := timeToUnixMillis(s.opts.clock())
		result, err := db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE expires <= ?`, now)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeQuery, "sweep expired sessions", err)
		}
		removed, err = result.RowsAffected()
		if err != nil {
			return apperrors.Wrap(apperrors.CodeQuery, "count swept sessions", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.opts.metrics.Swept(removed)
	return removed, nil
}

// Stats counts stored sessions, including expired rows not yet swept.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.do(ctx, "stats", "", func(ctx context.Context, db *sql.DB) error {
		now := timeToUnixMillis(s.opts.clock())
		row := db.QueryRowContext(
			ctx,
			`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires <= ? THEN 1 ELSE 0 END), 0) FROM `+s.table,
			now,
		)
		if err := row.Scan(&stats.Total, &stats.Expired); err != nil {
			return apperrors.Wrap(apperrors.CodeQuery, "count sessions", err)
		}
		return nil
	})
	return stats, err
}

// Clear removes every session, live or expired.
func (s *Store) Clear(ctx context.Context) error {
	return s.do(ctx, "clear", "", func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+s.table); err != nil {
			return apperrors.Wrap(apperrors.CodeQuery, "clear sessions", err)
		}
		return nil
	})
}

// destroyInBackground queues a delete for an expired row found by Get. The
// caller does not wait; failures are logged. The delete only matches a row
// that is still expired, so a Set queued in between survives.
func (s *Store) destroyInBackground(ctx context.Context, id string) {
	done, err := s.enqueue(ctx, "destroy", func(ctx context.Context, db *sql.DB) error {
		now := timeToUnixMillis(s.opts.clock())
		if _, err := db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ? AND expires <= ?`, id, now); err != nil {
			return queryError("delete expired session", id, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrClosed) {
			s.opts.logger.Printf("queue expired session cleanup: %v", err)
		}
		return
	}
	go func() {
		if err := <-done; err != nil {
			s.opts.logger.Printf("expired session cleanup: %v", err)
		}
	}()
}

func (s *Store) deleteTask(id string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, id); err != nil {
			return queryError("delete session", id, err)
		}
		return nil
	}
}

func requireID(id string) (string, error) {
	if id == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "session id is required")
	}
	return id, nil
}

func queryError(message, id string, err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeQuery, message, idMetadata(id), err)
}

func idMetadata(id string) map[string]string {
	return map[string]string{"session_id": id}
}
