package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/sessionstore/internal/services/session/storage"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "sessionstore.sid"

// DefaultMaxAge is the cookie lifetime used when none is configured.
const DefaultMaxAge = 24 * time.Hour

// Config controls cookie attributes and the backing store.
type Config struct {
	Store        storage.Store
	CookieName   string
	CookiePath   string
	CookieDomain string
	Secure       bool
	MaxAge       time.Duration
	Logger       *log.Logger
	// Clock overrides time.Now for cookie expiry.
	Clock func() time.Time
}

// Manager loads and saves sessions around HTTP handlers.
type Manager struct {
	store  storage.Store
	name   string
	path   string
	domain string
	secure bool
	maxAge time.Duration
	logger *log.Logger
	clock  func() time.Time
}

// New validates cfg and builds a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	m := &Manager{
		store:  cfg.Store,
		name:   strings.TrimSpace(cfg.CookieName),
		path:   strings.TrimSpace(cfg.CookiePath),
		domain: strings.TrimSpace(cfg.CookieDomain),
		secure: cfg.Secure,
		maxAge: cfg.MaxAge,
		logger: cfg.Logger,
		clock:  cfg.Clock,
	}
	if m.name == "" {
		m.name = DefaultCookieName
	}
	if m.path == "" {
		m.path = "/"
	}
	if m.maxAge <= 0 {
		m.maxAge = DefaultMaxAge
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.name
}

// Middleware attaches a session to each request and commits it before the
// response headers are written.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.load(r)
		if err != nil {
			m.logger.Printf("load session: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := withSession(r.Context(), sess)
		sw := &commitWriter{ResponseWriter: w}
		sw.commit = func() {
			if err := m.commit(ctx, w, sess); err != nil {
				m.logger.Printf("save session: %v", err)
			}
		}
		next.ServeHTTP(sw, r.WithContext(ctx))
		sw.commitOnce()
	})
}

// Regenerate destroys the request's stored session and gives it a fresh id,
// keeping its values. The new id is saved when the response is committed.
func (m *Manager) Regenerate(ctx context.Context) error {
	sess := FromContext(ctx)
	if sess == nil {
		return fmt.Errorf("no session in context")
	}

	newID, err := newSessionID()
	if err != nil {
		return err
	}

	sess.mu.Lock()
	oldID, wasNew := sess.id, sess.isNew
	sess.id = newID
	sess.isNew = true
	sess.dirty = true
	sess.removed = false
	sess.mu.Unlock()

	if wasNew {
		return nil
	}
	if err := m.store.Destroy(ctx, oldID); err != nil {
		return fmt.Errorf("destroy previous session: %w", err)
	}
	return nil
}

func (m *Manager) load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return newSession()
	}

	var rec record
	found, err := m.store.Get(r.Context(), cookie.Value, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		// Never adopt a client-chosen id.
		return newSession()
	}
	return sessionFromRecord(cookie.Value, rec), nil
}

func (m *Manager) commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	sess.mu.Lock()
	id, isNew, dirty, removed := sess.id, sess.isNew, sess.dirty, sess.removed
	values := make(map[string]any, len(sess.values))
	for k, v := range sess.values {
		values[k] = v
	}
	sess.mu.Unlock()

	if removed {
		m.clearCookie(w)
		if isNew {
			return nil
		}
		return m.store.Destroy(ctx, id)
	}
	if !dirty {
		return nil
	}

	expires := m.clock().Add(m.maxAge).UTC().Truncate(time.Second)
	rec := record{
		Cookie: Cookie{
			Expires:  &expires,
			Path:     m.path,
			HTTPOnly: true,
			MaxAge:   m.maxAge.Milliseconds(),
		},
		Values: values,
	}
	if err := m.store.Set(ctx, id, rec, m.maxAge); err != nil {
		return err
	}
	sess.mu.Lock()
	sess.cookie = rec.Cookie
	sess.mu.Unlock()
	m.setCookie(w, id, expires)
	return nil
}

// setCookie writes the session cookie to the response.
func (m *Manager) setCookie(w http.ResponseWriter, id string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    id,
		Path:     m.path,
		Domain:   m.domain,
		Expires:  expires,
		MaxAge:   int(m.maxAge / time.Second),
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie expires the session cookie.
func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     m.path,
		Domain:   m.domain,
		MaxAge:   -1,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// commitWriter saves the session right before the first header or body byte
// goes out, since cookies cannot be set afterwards.
type commitWriter struct {
	http.ResponseWriter
	once   sync.Once
	commit func()
}

func (w *commitWriter) commitOnce() {
	w.once.Do(w.commit)
}

func (w *commitWriter) WriteHeader(status int) {
	w.commitOnce()
	w.ResponseWriter.WriteHeader(status)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.commitOnce()
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
