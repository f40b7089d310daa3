package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-fetch/internal/domain"
)

func TestBoltStoreSavesAndExpiresResults(t *testing.T) {
	opts := Options{
		ResultTTL:       1 * time.Second,
		CleanupInterval: 1 * time.Second,
	}

	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "journal.db"), opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	if _, ok, err := store.LastResult("job-1"); err != nil || ok {
		t.Fatalf("expected no result, ok=%v err=%v", ok, err)
	}

	want := domain.TransferResult{
		JobID:      "job-1",
		Method:     "get",
		URL:        "http://example.test",
		StatusCode: 200,
		Extracted:  map[string]string{"title": "Example"},
	}
	if err := store.SaveResult(want); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, ok, err := store.LastResult("job-1")
	if err != nil || !ok {
		t.Fatalf("expected stored result, ok=%v err=%v", ok, err)
	}
	if got.StatusCode != 200 || got.Extracted["title"] != "Example" {
		t.Fatalf("unexpected result: %+v", got)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	if _, ok, err := store.LastResult("job-1"); err != nil || ok {
		t.Fatalf("expected result to expire, ok=%v err=%v", ok, err)
	}
}

func TestBoltStoreOverwritesPerJob(t *testing.T) {
	store, err := NewStore("bbolt", filepath.Join(t.TempDir(), "nested", "journal.db"), Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	for _, code := range []int{6, 0} {
		if err := store.SaveResult(domain.TransferResult{JobID: "j", ErrorCode: code}); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	got, ok, err := store.LastResult("j")
	if err != nil || !ok {
		t.Fatalf("LastResult: ok=%v err=%v", ok, err)
	}
	if got.ErrorCode != 0 {
		t.Fatalf("expected latest result, got error code %d", got.ErrorCode)
	}

	if err := store.SaveResult(domain.TransferResult{}); err == nil {
		t.Fatalf("expected error for result without job id")
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.SaveResult(domain.TransferResult{JobID: "x"}); err != nil {
		t.Fatalf("noop store SaveResult: %v", err)
	}
	if _, ok, _ := store.LastResult("x"); ok {
		t.Fatalf("noop store should not keep results")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "x", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for missing path")
	}
}
