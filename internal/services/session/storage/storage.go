package storage

import (
	"context"
	"time"
)

// Record is one persisted session row.
type Record struct {
	ID        string
	ExpiresAt time.Time
	Data      []byte
}

// Expired reports whether the record is logically absent at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// CookieExpirer is implemented by payloads that manage their own cookie
// expiry. When ok is true the returned time is stored verbatim as the record
// expiry and any relative ttl is ignored.
type CookieExpirer interface {
	CookieExpiry() (expires time.Time, ok bool)
}

// Store is the contract the session middleware calls on every request
// lifecycle event.
type Store interface {
	// Get decodes the live session for id into dst. It reports false when the
	// session is absent or expired.
	Get(ctx context.Context, id string, dst any) (bool, error)
	// Set stores payload for id, replacing any existing session. A ttl <= 0
	// selects the store default.
	Set(ctx context.Context, id string, payload any, ttl time.Duration) error
	// Destroy removes id. Destroying an absent id is not an error.
	Destroy(ctx context.Context, id string) error
	Close() error
}
