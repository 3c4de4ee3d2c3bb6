package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/sessionstore/internal/services/session/metrics"
	"github.com/louisbranch/sessionstore/internal/services/session/middleware"
	sessionsqlite "github.com/louisbranch/sessionstore/internal/services/session/storage/sqlite"
)

func newTestApp(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	m := metrics.New()
	store, err := sessionsqlite.Open(context.Background(), sessionsqlite.MemoryPath,
		sessionsqlite.WithSweepInterval(0),
		sessionsqlite.WithMetrics(m),
		sessionsqlite.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	manager, err := middleware.New(middleware.Config{Store: store, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	srv := httptest.NewServer(NewHandler(manager, store, m))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return srv, &http.Client{Jar: jar}
}

func get(t *testing.T, client *http.Client, url string) string {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d body %q", url, resp.StatusCode, body)
	}
	return string(body)
}

func TestCounterRoutes(t *testing.T) {
	srv, client := newTestApp(t)

	steps := []struct {
		path string
		want string
	}{
		{path: "/get", want: "1"},
		{path: "/get", want: "2"},
		{path: "/regenerate", want: "4"},
		{path: "/get", want: "5"},
		{path: "/remove", want: "0"},
		{path: "/get", want: "1"},
	}
	for _, step := range steps {
		if got := get(t, client, srv.URL+step.path); got != step.want {
			t.Fatalf("%s = %q, want %q", step.path, got, step.want)
		}
	}
}

func TestMetricsAndHealthRoutes(t *testing.T) {
	srv, client := newTestApp(t)
	get(t, client, srv.URL+"/get")

	if got := get(t, client, srv.URL+"/healthz"); got != "ok" {
		t.Fatalf("healthz = %q", got)
	}
	body := get(t, client, srv.URL+"/metrics")
	if !strings.Contains(body, `sessionstore_operations_total{op="set",result="ok"} 1`) {
		t.Fatalf("metrics missing set counter:\n%s", body)
	}
}

func TestNewRequiresDBPath(t *testing.T) {
	if _, err := New(Config{HTTPAddr: "127.0.0.1:0"}); err == nil {
		t.Fatal("expected missing db path error")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	server, err := New(Config{
		HTTPAddr: "127.0.0.1:0",
		DBPath:   filepath.Join(t.TempDir(), "sessions.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if server.Addr() == "" {
		t.Fatal("expected listener address")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	resp, err := http.Get("http://" + server.Addr() + "/get")
	if err != nil {
		t.Fatalf("GET /get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
