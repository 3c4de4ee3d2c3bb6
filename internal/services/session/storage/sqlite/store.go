package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/sessionstore/internal/platform/errors"
	"github.com/louisbranch/sessionstore/internal/platform/storage/sqliteschema"
	"github.com/louisbranch/sessionstore/internal/services/session/storage"
	"github.com/louisbranch/sessionstore/internal/services/session/storage/sqlite/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

const tracerName = "github.com/louisbranch/sessionstore/internal/services/session/storage/sqlite"

// task is one queued operation. done is buffered so the worker never blocks
// on a caller that stopped listening.
type task struct {
	op   string
	ctx  context.Context
	run  func(ctx context.Context, db *sql.DB) error
	done chan error
}

// Store provides SQLite-backed persistence for session records.
type Store struct {
	path   string
	opts   options
	table  string
	tracer trace.Tracer

	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	queue  []*task

	ready   chan struct{}
	openErr error

	closeErr   error
	workerDone chan struct{}
	stopSweep  context.CancelFunc
	sweepDone  chan struct{}
}

// New starts opening the store at path and returns immediately. Operations
// may be issued right away; they run once the connection is ready.
//
// path is a file path or MemoryPath.
func New(path string, opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		path:       strings.TrimSpace(path),
		opts:       o,
		table:      sqliteschema.QuoteIdentifier(o.tableName),
		tracer:     otel.Tracer(tracerName),
		ready:      make(chan struct{}),
		workerDone: make(chan struct{}),
		sweepDone:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	go s.run()

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	if o.sweepInterval > 0 {
		go s.runSweeper(sweepCtx, o.sweepInterval)
	} else {
		close(s.sweepDone)
	}
	return s
}

// Open creates a store and waits until its connection is ready, returning
// the connection error when opening fails.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := New(path, opts...)
	if err := s.WaitReady(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Ready is closed once the store has either connected or failed to connect.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until the connection is ready or ctx is done. It returns
// the connection error if opening failed.
func (s *Store) WaitReady(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-s.ready:
		return s.openErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the background sweep, lets every queued operation finish, and
// releases the connection. Operations issued after Close fail with
// errors.ErrClosed, as does a second Close.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.ErrClosed
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.stopSweep()
	<-s.sweepDone
	<-s.workerDone
	if s.closeErr != nil {
		return apperrors.Wrap(apperrors.CodeConnection, "close sqlite db", s.closeErr)
	}
	return nil
}

// run owns the connection for the store's lifetime.
func (s *Store) run() {
	defer close(s.workerDone)

	db, err := s.opts.connect(s.path)
	if err == nil {
		err = s.ensureSchema(db)
		if err != nil {
			_ = db.Close()
			db = nil
		}
	}

	if err != nil && apperrors.GetCode(err) == apperrors.CodeUnknown {
		err = apperrors.Wrap(apperrors.CodeConnection, "open session store", err)
	}

	s.mu.Lock()
	s.openErr = err
	s.mu.Unlock()
	close(s.ready)

	if err != nil {
		s.opts.logger.Printf("session store %s: %v", s.path, err)
	}

	for {
		t, ok := s.next()
		if !ok {
			break
		}
		if db == nil {
			t.done <- s.openErr
			continue
		}
		t.done <- t.run(t.ctx, db)
	}

	if db != nil {
		s.closeErr = db.Close()
	}
}

// next blocks until a task is queued, returning false once the store is
// closed and the queue has drained.
func (s *Store) next() (*task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil, false
	}
	t := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.opts.metrics.SetQueued(len(s.queue))
	return t, true
}

// enqueue appends a task in submission order. Tasks queued while the store
// is initializing run as soon as the connection is ready.
func (s *Store) enqueue(ctx context.Context, op string, run func(context.Context, *sql.DB) error) (<-chan error, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &task{
		op:   op,
		ctx:  context.WithoutCancel(ctx),
		run:  run,
		done: make(chan error, 1),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.ErrClosed
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.queue = append(s.queue, t)
	s.opts.metrics.SetQueued(len(s.queue))
	s.cond.Signal()
	return t.done, nil
}

// do runs one operation and waits for it. Operations cannot be cancelled
// once queued, so ctx only carries trace values.
func (s *Store) do(ctx context.Context, op, id string, run func(context.Context, *sql.DB) error) error {
	if s == nil {
		return fmt.Errorf("storage is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, "sessionstore."+op, trace.WithAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("session.op", op),
	))
	defer span.End()
	if id != "" {
		span.SetAttributes(attribute.Int("session.id_length", len(id)))
	}

	start := time.Now()
	done, err := s.enqueue(ctx, op, run)
	if err == nil {
		err = <-done
	}
	s.opts.metrics.ObserveOperation(op, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return err
}

// runSweeper removes expired rows on a fixed interval until ctx ends.
func (s *Store) runSweeper(ctx context.Context, interval time.Duration) {
	defer close(s.sweepDone)

	select {
	case <-ctx.Done():
		return
	case <-s.ready:
	}
	if s.openErr != nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				if !errors.Is(err, apperrors.ErrClosed) {
					s.opts.logger.Printf("session sweep failed: %v", err)
				}
				continue
			}
			if removed > 0 {
				s.opts.logger.Printf("session sweep removed %d expired sessions", removed)
			}
		}
	}
}

func (s *Store) ensureSchema(db *sql.DB) error {
	params := map[string]string{"table": s.table}
	if err := sqliteschema.Apply(context.Background(), db, schema.FS, ".", params); err != nil {
		return apperrors.Wrap(apperrors.CodeConnection, "create session table", err)
	}
	return nil
}

// openDB opens and pings the SQLite database at path.
func openDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.CodeConnection, "storage path is required")
	}

	dsn := path
	if path != MemoryPath {
		cleanPath := filepath.Clean(path)
		if dir := filepath.Dir(cleanPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConnection, "create storage dir", err)
			}
		}
		dsn = cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnection, "open sqlite db", err)
	}
	// One connection: the worker is the only user, and an in-memory database
	// exists only as long as its connection does.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeConnection, "ping sqlite db", err)
	}
	return sqlDB, nil
}

var _ storage.Store = (*Store)(nil)
