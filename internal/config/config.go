// Package config provides configuration loading and structs for the rankd server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/ranking"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool                  `yaml:"debug"`
	Server    ServerConfig          `yaml:"server"`
	Storage   StorageConfig         `yaml:"storage"`
	Cache     CacheConfig           `yaml:"cache"`
	Embedding EmbeddingConfig       `yaml:"embedding"`
	Lexicon   LexiconConfig         `yaml:"lexicon"`
	Search    SearchConfig          `yaml:"search"`
	Ranking   ranking.RankingConfig `yaml:"ranking"`
	Trending  TrendingConfig        `yaml:"trending"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// StorageConfig holds the document database location. ":memory:" keeps it in process.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Cache drivers.
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Driver            string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs             []string `yaml:"addrs"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	DB                int      `yaml:"db"`
	KeyPrefix         string   `yaml:"key_prefix"`
	DefaultTTLSeconds int      `yaml:"default_ttl_sec"`
	// DebounceMS suppresses repeated invalidation of a pattern; 0 disables it.
	DebounceMS *int `yaml:"debounce_ms"`
}

// DefaultTTL returns the base cache TTL.
func (c *CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// Debounce returns the invalidation debounce window; defaults to 2s when unset.
func (c *CacheConfig) Debounce() time.Duration {
	if c.DebounceMS != nil {
		return time.Duration(*c.DebounceMS) * time.Millisecond
	}
	return 2 * time.Second
}

// EmbeddingConfig holds embedding engine settings.
type EmbeddingConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// LexiconConfig holds the dictionary used for fuzzy and synonym expansion.
type LexiconConfig struct {
	// Path is an optional YAML lexicon merged over the built-in one.
	Path         string `yaml:"path"`
	Watch        bool   `yaml:"watch"`
	MaxVariants  int    `yaml:"max_variants"`
	HarvestLimit int    `yaml:"harvest_limit"`
}

// SearchConfig holds search fan-out and blending settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	// BlendFactor is the share of a page open to semantic-only results.
	BlendFactor     *float64 `yaml:"blend_factor"`
	CandidatePool   int      `yaml:"candidate_pool"`
	CacheTTLSeconds int      `yaml:"cache_ttl_sec"`
	MaxSuggestions  int      `yaml:"max_suggestions"`
}

// Blend returns the blend factor; defaults to 0.3 when unset.
func (s *SearchConfig) Blend() float64 {
	if s.BlendFactor != nil {
		return *s.BlendFactor
	}
	return 0.3
}

// CacheTTL returns the base TTL of cached search pages.
func (s *SearchConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// TrendingConfig holds trending computation and recompute job settings.
type TrendingConfig struct {
	// Recompute runs the periodic job in the server; defaults to true when unset.
	Recompute       *bool  `yaml:"recompute"`
	IntervalSeconds int    `yaml:"interval_sec"`
	TimeoutSeconds  int    `yaml:"timeout_sec"`
	DefaultRange    string `yaml:"default_range"`
	DefaultLimit    int    `yaml:"default_limit"`
	CacheTTLSeconds int    `yaml:"cache_ttl_sec"`
}

// RecomputeOrDefault returns whether the recompute job runs.
func (t *TrendingConfig) RecomputeOrDefault() bool {
	if t.Recompute != nil {
		return *t.Recompute
	}
	return true
}

// Interval returns the recompute interval.
func (t *TrendingConfig) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Timeout returns the per-cycle recompute timeout.
func (t *TrendingConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// CacheTTL returns the base TTL of cached trending lists.
func (t *TrendingConfig) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSeconds) * time.Second
}

// Load reads and parses the config file at path, substitutes environment
// variables, expands paths, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Lexicon.Path != "" {
		cfg.Lexicon.Path = expandPath(cfg.Lexicon.Path, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Cache.Driver {
	case CacheDriverMemory:
	case CacheDriverRedis:
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("cache.driver must be %q or %q, got %q", CacheDriverMemory, CacheDriverRedis, c.Cache.Driver)
	}
	if c.Cache.DebounceMS != nil && *c.Cache.DebounceMS < 0 {
		return fmt.Errorf("cache.debounce_ms must not be negative")
	}
	if bf := c.Search.Blend(); bf < 0 || bf > 1 {
		return fmt.Errorf("search.blend_factor must be in [0, 1], got %v", bf)
	}
	if c.Search.DefaultLimit > models.MaxLimit {
		return fmt.Errorf("search.default_limit must be at most %d, got %d", models.MaxLimit, c.Search.DefaultLimit)
	}
	if _, err := models.ParseTimeRange(c.Trending.DefaultRange); err != nil {
		return fmt.Errorf("trending.default_range: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. ":memory:" is kept as is.
func expandPath(path string, configDir string) string {
	if path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
