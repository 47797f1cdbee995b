package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q, want 127.0.0.1:9999", cfg.Addr)
	}
	if cfg.Timeout.Std() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Threaded || cfg.Shared {
		t.Error("Threaded and Shared should default to false")
	}
	if cfg.ExitPolicy != "session" {
		t.Errorf("ExitPolicy = %q, want session", cfg.ExitPolicy)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, `
addr: "127.0.0.1:7777"
banner: "staging console"
threaded: true
timeout: 30s
shared: true
exit_policy: server
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7777" {
		t.Errorf("Addr = %q, want 127.0.0.1:7777", cfg.Addr)
	}
	if cfg.Banner != "staging console" {
		t.Errorf("Banner = %q", cfg.Banner)
	}
	if !cfg.Threaded || !cfg.Shared {
		t.Error("Threaded and Shared should be true")
	}
	if cfg.Timeout.Std() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.ExitPolicy != "server" {
		t.Errorf("ExitPolicy = %q, want server", cfg.ExitPolicy)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, `banner: "hi"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Banner != "hi" {
		t.Errorf("Banner = %q, want hi", cfg.Banner)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q, want default", cfg.Addr)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MANHOLE_THREADED", "true")
	t.Setenv("MANHOLE_TIMEOUT", "250ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Threaded {
		t.Error("Threaded should come from the environment")
	}
	if cfg.Timeout.Std() != 250*time.Millisecond {
		t.Errorf("Timeout = %v, want 250ms", cfg.Timeout)
	}
}

func TestLoadRejectsBadExitPolicy(t *testing.T) {
	path := writeFile(t, `exit_policy: everything`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for invalid exit_policy")
	}
}

func TestLoadRejectsNoListeners(t *testing.T) {
	path := writeFile(t, "addr: \"\"\nsocket_path: \"\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when no listener is configured")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
