package middleware

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/louisbranch/sessionstore/internal/platform/id"
)

type contextKey struct{}

// Cookie is the cookie state persisted alongside the session values. Its
// Expires field is the absolute expiry the store honours over any ttl.
type Cookie struct {
	Expires  *time.Time `json:"expires,omitempty"`
	Path     string     `json:"path,omitempty"`
	HTTPOnly bool       `json:"httpOnly"`
	MaxAge   int64      `json:"maxAge,omitempty"`
}

// record is the payload written to the store.
type record struct {
	Cookie Cookie         `json:"cookie"`
	Values map[string]any `json:"values,omitempty"`
}

// Session is the per-request session object.
//
// Values round-trip through JSON, so numbers read back from a stored session
// are float64. Use Int for counters.
type Session struct {
	mu      sync.Mutex
	id      string
	values  map[string]any
	cookie  Cookie
	isNew   bool
	dirty   bool
	removed bool
}

func newSession() (*Session, error) {
	sid, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:     sid,
		values: make(map[string]any),
		isNew:  true,
	}, nil
}

func sessionFromRecord(id string, rec record) *Session {
	values := rec.Values
	if values == nil {
		values = make(map[string]any)
	}
	return &Session{
		id:     id,
		values: values,
		cookie: rec.Cookie,
	}
}

// ID returns the session identifier sent in the cookie.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Expires returns the cookie expiry saved with the session. It is unset for a
// session that has not been committed yet.
func (s *Session) Expires() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cookie.Expires == nil {
		return time.Time{}, false
	}
	return *s.cookie.Expires, true
}

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNew
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Int returns the value under key as an int, or 0 when absent or not a number.
func (s *Session) Int(key string) int {
	value, _ := s.Get(key)
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Set stores value under key. value must be JSON-serializable.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.dirty = true
	s.removed = false
}

// Delete removes key.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Values returns a copy of all session values.
func (s *Session) Values() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

// Remove clears the session; it is destroyed in the store when the response
// is committed.
func (s *Session) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.values)
	s.removed = true
	s.dirty = false
}

// FromContext returns the session attached by Manager.Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}

func withSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

func newSessionID() (string, error) {
	sid, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return sid, nil
}
