package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir moves into dir for the duration of the test so config discovery is
// hermetic.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir empty, want a default")
	}
	if cfg.Library.SaveInterval != 2*time.Second {
		t.Errorf("SaveInterval = %s, want 2s", cfg.Library.SaveInterval)
	}
	if cfg.Library.MaxChartBytes != 1<<20 {
		t.Errorf("MaxChartBytes = %d, want 1MiB", cfg.Library.MaxChartBytes)
	}
	if cfg.Daemon.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Daemon.Port)
	}
	if cfg.Daemon.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %s, want 500ms", cfg.Daemon.Debounce)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
data_dir: /tmp/charts
library:
  save_interval: 5s
daemon:
  port: 9191
remote:
  url: https://proj.example.test
  key: anon-key
`
	if err := os.WriteFile(filepath.Join(dir, "chartkit.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DataDir != "/tmp/charts" {
		t.Errorf("DataDir = %q, want /tmp/charts", cfg.DataDir)
	}
	if cfg.Library.SaveInterval != 5*time.Second {
		t.Errorf("SaveInterval = %s, want 5s", cfg.Library.SaveInterval)
	}
	if cfg.Daemon.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Daemon.Port)
	}
	if cfg.Remote.URL != "https://proj.example.test" {
		t.Errorf("Remote.URL = %q", cfg.Remote.URL)
	}
	if cfg.Remote.Key != "anon-key" {
		t.Errorf("Remote.Key = %q", cfg.Remote.Key)
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chartkit.yaml"), []byte("::: not yaml"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	chdir(t, dir)

	if _, err := Load(); err == nil {
		t.Error("Load accepted malformed config")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHARTKIT_DATA_DIR", "/env/data")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DataDir != "/env/data" {
		t.Errorf("DataDir = %q, want env override", cfg.DataDir)
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if got := cfg.SessionDir(); got != filepath.Join("/data", "session") {
		t.Errorf("SessionDir = %q", got)
	}
	if got := cfg.LibraryPath(); got != filepath.Join("/data", "library.db") {
		t.Errorf("LibraryPath = %q", got)
	}
	if got := cfg.OutboxPath(); got != filepath.Join("/data", "outbox.db") {
		t.Errorf("OutboxPath = %q", got)
	}
}
