package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Rooms.SnapshotInterval() != 30*time.Second {
		t.Errorf("expected 30s snapshot interval, got %s", cfg.Rooms.SnapshotInterval())
	}
	if cfg.Rooms.IdleTimeout() != time.Hour {
		t.Errorf("expected 1h idle timeout, got %s", cfg.Rooms.IdleTimeout())
	}
	if cfg.Store.Backend != "" {
		t.Errorf("expected in-memory default, got %q", cfg.Store.Backend)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[server]
port = 9000
allowed_origins = "example.com"

[rooms]
idle_timeout_ms = 120000

[store]
backend = "sqlite"
path = "boards.db"
`), 0644)

	cfg := Load(path)
	if cfg.Server.Port != 9000 {
		t.Errorf("expected 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.AllowedOrigins != "example.com" {
		t.Errorf("origins = %q", cfg.Server.AllowedOrigins)
	}
	if cfg.Rooms.IdleTimeout() != 2*time.Minute {
		t.Errorf("idle timeout = %s", cfg.Rooms.IdleTimeout())
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "boards.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	// Defaults preserved
	if cfg.Rooms.SnapshotInterval() != 30*time.Second {
		t.Errorf("default should be preserved, got %s", cfg.Rooms.SnapshotInterval())
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MURAL_PORT", "7070")
	t.Setenv("MURAL_LLM_API_KEY", "env-key")
	t.Setenv("MURAL_STORE_BACKEND", "redis")
	t.Setenv("MURAL_OBSERVER_ENABLED", "1")

	cfg := Load("/nonexistent/path.toml")
	if cfg.Server.Port != 7070 {
		t.Errorf("expected 7070, got %d", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("expected redis, got %s", cfg.Store.Backend)
	}
	if !cfg.Observer.Enabled {
		t.Error("observer should be enabled")
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0644)
	t.Setenv("MURAL_PORT", "7070")

	if cfg := Load(path); cfg.Server.Port != 7070 {
		t.Errorf("env should win over TOML, got %d", cfg.Server.Port)
	}
}
