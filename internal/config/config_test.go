package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Ranking.ExactMatchBonus != 500 {
		t.Errorf("ranking defaults not applied: %+v", cfg.Ranking)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
storage:
  database_path: ":memory:"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Storage.DatabasePath != ":memory:" {
		t.Errorf("in-memory database path must not be expanded, got %s", cfg.Storage.DatabasePath)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/rankd.db"
lexicon:
  path: "./lexicon.yaml"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "db", "rankd.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "lexicon.yaml"); cfg.Lexicon.Path != want {
		t.Errorf("lexicon path = %s, want %s", cfg.Lexicon.Path, want)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("RANKD_TEST_REDIS", "redis-1:6379")
	path := writeConfig(t, `
cache:
  driver: redis
  addrs: ["${RANKD_TEST_REDIS}", "${RANKD_TEST_UNSET:-redis-2:6379}"]
  password: "${RANKD_TEST_UNSET}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Cache.Addrs) != 2 || cfg.Cache.Addrs[0] != "redis-1:6379" || cfg.Cache.Addrs[1] != "redis-2:6379" {
		t.Errorf("addrs = %v", cfg.Cache.Addrs)
	}
	if cfg.Cache.Password != "" {
		t.Errorf("unset variable without default should expand to empty, got %q", cfg.Cache.Password)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"redis without addrs", "cache:\n  driver: redis\n", "cache.addrs"},
		{"unknown driver", "cache:\n  driver: memcached\n", "cache.driver"},
		{"blend factor", "search:\n  blend_factor: 1.5\n", "blend_factor"},
		{"port", "server:\n  port: 70000\n", "server.port"},
		{"range", "trending:\n  default_range: year\n", "default_range"},
		{"limit", "search:\n  default_limit: 500\n", "default_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("default limit: got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Cache.Driver != CacheDriverMemory || cfg.Cache.KeyPrefix != "rankd:" {
		t.Errorf("cache defaults: %+v", cfg.Cache)
	}
	if cfg.Search.CacheTTL() != 5*time.Minute {
		t.Errorf("search cache ttl should inherit the cache default, got %v", cfg.Search.CacheTTL())
	}
	if cfg.Embedding.CacheSize != 10000 {
		t.Errorf("embedding cache size: got %d", cfg.Embedding.CacheSize)
	}
	if cfg.Trending.DefaultRange != "week" || cfg.Trending.Interval() != 15*time.Minute {
		t.Errorf("trending defaults: %+v", cfg.Trending)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestOptionalDefaults(t *testing.T) {
	t.Run("nil uses defaults", func(t *testing.T) {
		var c Config
		if got := c.Cache.Debounce(); got != 2*time.Second {
			t.Errorf("Debounce() = %v", got)
		}
		if got := c.Search.Blend(); got != 0.3 {
			t.Errorf("Blend() = %v", got)
		}
		if !c.Trending.RecomputeOrDefault() {
			t.Error("RecomputeOrDefault() should default to true")
		}
	})
	t.Run("explicit zero values are kept", func(t *testing.T) {
		zero, bf, off := 0, 0.0, false
		c := Config{
			Cache:    CacheConfig{DebounceMS: &zero},
			Search:   SearchConfig{BlendFactor: &bf},
			Trending: TrendingConfig{Recompute: &off},
		}
		if c.Cache.Debounce() != 0 || c.Search.Blend() != 0 || c.Trending.RecomputeOrDefault() {
			t.Errorf("explicit values ignored: %+v", c)
		}
	})
}
