package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		cfg.Server.ReadTimeoutSec = 10
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		cfg.Server.WriteTimeoutSec = 30
	}
	if cfg.Server.ShutdownSec <= 0 {
		cfg.Server.ShutdownSec = 10
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/rankd/data/rankd.db"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = CacheDriverMemory
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "rankd:"
	}
	if cfg.Cache.DefaultTTLSeconds <= 0 {
		cfg.Cache.DefaultTTLSeconds = 300
	}
	if cfg.Embedding.CacheSize <= 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Lexicon.MaxVariants <= 0 {
		cfg.Lexicon.MaxVariants = 5
	}
	if cfg.Lexicon.HarvestLimit <= 0 {
		cfg.Lexicon.HarvestLimit = 5000
	}
	if cfg.Search.DefaultLimit <= 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.CandidatePool <= 0 {
		cfg.Search.CandidatePool = 500
	}
	if cfg.Search.CacheTTLSeconds <= 0 {
		cfg.Search.CacheTTLSeconds = cfg.Cache.DefaultTTLSeconds
	}
	if cfg.Search.MaxSuggestions <= 0 {
		cfg.Search.MaxSuggestions = 3
	}
	cfg.Ranking.ApplyDefaults()
	if cfg.Trending.IntervalSeconds <= 0 {
		cfg.Trending.IntervalSeconds = 900
	}
	if cfg.Trending.TimeoutSeconds <= 0 {
		cfg.Trending.TimeoutSeconds = 120
	}
	if cfg.Trending.DefaultRange == "" {
		cfg.Trending.DefaultRange = "week"
	}
	if cfg.Trending.DefaultLimit <= 0 {
		cfg.Trending.DefaultLimit = 20
	}
	if cfg.Trending.CacheTTLSeconds <= 0 {
		cfg.Trending.CacheTTLSeconds = 600
	}
}
