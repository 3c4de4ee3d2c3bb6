// Package server wires the session store, middleware, and HTTP lifecycle for
// the session counter app.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/sessionstore/internal/platform/timeouts"
	"github.com/louisbranch/sessionstore/internal/services/session/metrics"
	"github.com/louisbranch/sessionstore/internal/services/session/middleware"
	sessionsqlite "github.com/louisbranch/sessionstore/internal/services/session/storage/sqlite"
	"golang.org/x/sync/errgroup"
)

// Config holds everything the app server needs.
type Config struct {
	HTTPAddr      string
	DBPath        string
	TableName     string
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	CookieName    string
	CookieMaxAge  time.Duration
	SecureCookie  bool
}

// Server hosts the session counter routes and the store lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sessionsqlite.Store
	metrics    *metrics.Metrics
}

// New creates a configured server listening on cfg.HTTPAddr.
//
// The store is opened asynchronously; requests that arrive before it is ready
// wait in its queue.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}

	m := metrics.New()
	store := sessionsqlite.New(cfg.DBPath,
		sessionsqlite.WithTableName(cfg.TableName),
		sessionsqlite.WithDefaultTTL(cfg.DefaultTTL),
		sessionsqlite.WithSweepInterval(cfg.SweepInterval),
		sessionsqlite.WithMetrics(m),
	)

	manager, err := middleware.New(middleware.Config{
		Store:      store,
		CookieName: cfg.CookieName,
		MaxAge:     cfg.CookieMaxAge,
		Secure:     cfg.SecureCookie,
	})
	if err != nil {
		_ = store.Close()
		_ = listener.Close()
		return nil, fmt.Errorf("init session middleware: %w", err)
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           NewHandler(manager, store, m),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store:   store,
		metrics: m,
	}, nil
}

// NewHandler builds the route mux for the counter app.
func NewHandler(manager *middleware.Manager, store *sessionsqlite.Store, m *metrics.Metrics) http.Handler {
	sessions := http.NewServeMux()
	sessions.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		writeCount(w, increment(middleware.FromContext(r.Context())))
	})
	sessions.HandleFunc("/remove", func(w http.ResponseWriter, r *http.Request) {
		middleware.FromContext(r.Context()).Remove()
		writeCount(w, 0)
	})
	sessions.HandleFunc("/regenerate", func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.FromContext(r.Context())
		increment(sess)
		if err := manager.Regenerate(r.Context()); err != nil {
			log.Printf("regenerate session: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		writeCount(w, increment(sess))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.WaitReady(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	})
	mux.Handle("/", manager.Middleware(sessions))
	return mux
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve handles HTTP requests until ctx is cancelled, then shuts down
// gracefully and closes the store.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("session app listening at %v", s.listener.Addr())
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.store.WaitReady(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("open session store: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		err := s.httpServer.Serve(s.listener)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close session store: %v", err)
		}
		s.store = nil
	}
}

func increment(sess *middleware.Session) int {
	count := sess.Int("count") + 1
	sess.Set("count", count)
	return count
}

func writeCount(w http.ResponseWriter, count int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, strconv.Itoa(count))
}
