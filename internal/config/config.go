package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Rooms    RoomsConfig    `toml:"rooms"`
	LLM      LLMConfig      `toml:"llm"`
	Store    StoreConfig    `toml:"store"`
	Observer ObserverConfig `toml:"observer"`
}

type ServerConfig struct {
	Port int `toml:"port"`
	// AllowedOrigins is a comma-separated allow list; empty allows all.
	AllowedOrigins string `toml:"allowed_origins"`
}

type RoomsConfig struct {
	SnapshotIntervalMs int `toml:"snapshot_interval_ms"`
	IdleTimeoutMs      int `toml:"idle_timeout_ms"`
	EvictionCheckMs    int `toml:"eviction_check_ms"`
}

func (r RoomsConfig) SnapshotInterval() time.Duration {
	return time.Duration(r.SnapshotIntervalMs) * time.Millisecond
}

func (r RoomsConfig) IdleTimeout() time.Duration {
	return time.Duration(r.IdleTimeoutMs) * time.Millisecond
}

func (r RoomsConfig) EvictionCheck() time.Duration {
	return time.Duration(r.EvictionCheckMs) * time.Millisecond
}

type LLMConfig struct {
	Model  string `toml:"model"`
	APIKey string `toml:"api_key"`
}

type StoreConfig struct {
	// Backend selects the snapshot store: "postgres", "sqlite", "redis", or
	// "" for in-memory only.
	Backend string `toml:"backend"`
	// DSN is the Postgres connection string.
	DSN string `toml:"dsn"`
	// Path is the SQLite database file.
	Path string `toml:"path"`
	// Addr is the Redis address.
	Addr string `toml:"addr"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Rooms: RoomsConfig{
			SnapshotIntervalMs: 30_000,
			IdleTimeoutMs:      3_600_000,
			EvictionCheckMs:    300_000,
		},
		LLM:   LLMConfig{Model: "claude-sonnet-4-5"},
		Store: StoreConfig{Path: "mural.db", Addr: "localhost:6379"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "mural.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("MURAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MURAL_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = v
	}
	if v := os.Getenv("MURAL_SNAPSHOT_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Rooms.SnapshotIntervalMs = ms
		}
	}
	if v := os.Getenv("MURAL_IDLE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Rooms.IdleTimeoutMs = ms
		}
	}
	if v := os.Getenv("MURAL_EVICTION_CHECK_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Rooms.EvictionCheckMs = ms
		}
	}
	if v := os.Getenv("MURAL_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("MURAL_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MURAL_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("MURAL_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("MURAL_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("MURAL_STORE_ADDR"); v != "" {
		cfg.Store.Addr = v
	}
	if v := os.Getenv("MURAL_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
