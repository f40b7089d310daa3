package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConnectTimeout != 120*time.Second || cfg.ExecuteTimeout != 250*time.Second {
		t.Fatalf("timeouts = %s/%s", cfg.ConnectTimeout, cfg.ExecuteTimeout)
	}
	if cfg.VerifyPeer {
		t.Fatalf("verify_peer should default to false")
	}
	if cfg.RunInterval != 0 {
		t.Fatalf("run interval = %s", cfg.RunInterval)
	}
	if cfg.StorageType != "bbolt" || cfg.JobsFile == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DefaultHeaders == nil {
		t.Fatalf("default headers should be an empty map")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONNECT_TIMEOUT_SECONDS", "5")
	t.Setenv("VERIFY_PEER", "true")
	t.Setenv("RUN_INTERVAL_SECONDS", "60")
	t.Setenv("DEFAULT_HEADERS", `{"X-Client":"fetch"}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("connect timeout = %s", cfg.ConnectTimeout)
	}
	if !cfg.VerifyPeer {
		t.Fatalf("expected verify_peer from env")
	}
	if cfg.RunInterval != time.Minute {
		t.Fatalf("run interval = %s", cfg.RunInterval)
	}
	if cfg.DefaultHeaders["x-client"] != "fetch" && cfg.DefaultHeaders["X-Client"] != "fetch" {
		t.Fatalf("default headers = %v", cfg.DefaultHeaders)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	yaml := []byte("user_agent: file-agent/2\nexecute_timeout_seconds: 30\n")
	if err := os.WriteFile(filepath.Join(dir, "configs", "fetcher.yaml"), yaml, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UserAgent != "file-agent/2" || cfg.ExecuteTimeout != 30*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	chdirTemp(t)
	t.Setenv("EXECUTE_TIMEOUT_SECONDS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero execute timeout")
	}
}
