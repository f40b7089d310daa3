package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-fetch/internal/config"
	"github.com/samvad-hq/samvad-fetch/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T, jobsYAML string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		UserAgent:              "fetcher-test",
		JobsFile:               writeFile(t, dir, "jobs.yaml", jobsYAML),
		PublishersFile:         filepath.Join(dir, "missing-publishers.yaml"),
		ConnectTimeout:         2 * time.Second,
		ExecuteTimeout:         5 * time.Second,
		StorageType:            "bbolt",
		BBoltPath:              filepath.Join(dir, "journal.db"),
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
}

func TestFetcherRunOnceJournalsAndPublishes(t *testing.T) {
	var hookCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hook" {
			hookCalls.Add(1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		io.WriteString(w, "<title>Hello</title>")
	}))
	defer srv.Close()

	cfg := testConfig(t, `
jobs:
  - id: hello
    url: `+srv.URL+`/hello
    extract:
      page: page_meta
`)
	cfg.PublishersFile = writeFile(t, t.TempDir(), "publishers.yaml", `
publishers:
  - id: hook
    type: http
    http:
      url: `+srv.URL+`/hook
`)

	fetcher, err := NewFetcher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	if err := fetcher.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hookCalls.Load() != 1 {
		t.Fatalf("expected 1 webhook delivery, got %d", hookCalls.Load())
	}

	store, err := storage.NewStore("bbolt", cfg.BBoltPath, storage.Options{})
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer store.Close()
	res, ok, err := store.LastResult("hello")
	if err != nil || !ok {
		t.Fatalf("expected journaled result, ok=%v err=%v", ok, err)
	}
	if res.Extracted["page.title"] != "Hello" {
		t.Fatalf("unexpected journaled result: %+v", res)
	}
}

func TestFetcherRunOnceReturnsJobFailures(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	cfg := testConfig(t, "jobs:\n  - id: dead\n    url: "+deadURL+"\n")
	cfg.StorageType = "none"

	fetcher, err := NewFetcher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	err = fetcher.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "dead") {
		t.Fatalf("expected job failure, got %v", err)
	}
}

func TestFetcherIntervalModeStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	cfg := testConfig(t, "jobs:\n  - id: tick\n    url: "+srv.URL+"\n")
	cfg.StorageType = "none"
	cfg.RunInterval = 20 * time.Millisecond

	fetcher, err := NewFetcher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := fetcher.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() < 2 {
		t.Fatalf("expected repeated runs, got %d", calls.Load())
	}
}

func TestNewFetcherValidatesInputs(t *testing.T) {
	if _, err := NewFetcher(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}

	cfg := testConfig(t, "jobs: []\n")
	if _, err := NewFetcher(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for empty jobs file")
	}

	cfg = testConfig(t, "jobs:\n  - id: a\n    url: http://x\n")
	cfg.CertPath = filepath.Join(t.TempDir(), "missing.pem")
	if _, err := NewFetcher(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unreadable cert")
	}
}
