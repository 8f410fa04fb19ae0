// Package main is the rankd CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/cache"
	"github.com/hyperjump/rankd/internal/cli"
	"github.com/hyperjump/rankd/internal/config"
	"github.com/hyperjump/rankd/internal/embedding"
	"github.com/hyperjump/rankd/internal/lexical"
	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/ranking"
	"github.com/hyperjump/rankd/internal/search"
	"github.com/hyperjump/rankd/internal/server"
	"github.com/hyperjump/rankd/internal/storage"
	"github.com/hyperjump/rankd/internal/trending"
	"github.com/hyperjump/rankd/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/rankd/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml in
// the current directory takes precedence, so "rankd server" run from the project
// dir uses the project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "trending":
		runTrending()
	case "insights":
		runInsights()
	case "recompute":
		runRecompute()
	case "import":
		runImport()
	case "version", "--version", "-v":
		fmt.Printf("rankd version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Lexicon.Watch && cfg.Lexicon.Path != "" {
		w := lexical.NewWatcher(cfg.Lexicon.Path, lexical.DefaultLexicon(), components.Expander, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Warn("lexicon watcher stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Trending.RecomputeOrDefault() {
		if err := components.Job.Start(ctx); err != nil {
			logger.Fatal("Failed to start recompute job", zap.Error(err))
		}
		defer components.Job.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Trending,
		components.Job,
		components.Cache,
		components.Store,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// filterFlags collects repeated -filter key=value flags.
type filterFlags map[string]string

func (f filterFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f filterFlags) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("filter must be key=value, got %q", s)
	}
	f[k] = strings.TrimSpace(v)
	return nil
}

// parseKinds resolves a comma-separated kind list. Empty means every kind.
func parseKinds(s string) ([]models.Kind, error) {
	var kinds []models.Kind
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		k, err := models.ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// parseIDs splits a comma-separated id list, dropping blanks.
func parseIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: rankd search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  rankd search react dashboard
  rankd search -kinds products,jobs -limit 5 react
  rankd search -filter category=developer-tools -filter max_price=50 analytics
  rankd search -output json "remote engineer"
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags (and their values) that appear after the query
// to the front so that flag.Parse sees them. Go's flag package stops at the
// first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	filters := filterFlags{}
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = query the store directly)")
	kindsFlag := fs.String("kinds", "", "comma-separated kinds to search (default: all)")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 0, "results per kind (default from config)")
	fs.Var(filters, "filter", "filter as key=value, repeatable")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("Invalid flags", err)
	}
	kinds, err := parseKinds(*kindsFlag)
	if err != nil {
		fail("Invalid flags", err)
	}
	req := &models.SearchRequest{Query: query, Kinds: kinds, Filters: filters, Page: *page, Limit: *limit}

	var response *models.SearchResponse
	if *serverURL != "" {
		response = &models.SearchResponse{}
		err = doJSON(http.MethodPost, *serverURL+"/api/v1/search", req, response)
	} else {
		err = withComponents(*configPath, func(ctx context.Context, c *Components) error {
			response, err = c.Engine.Search(ctx, req)
			return err
		})
	}
	if err != nil {
		fail("Search failed", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fail("Output failed", err)
	}
}

type trendingResponse struct {
	Items []*models.TrendingItem `json:"items"`
}

func runTrending() {
	fs := flag.NewFlagSet("trending", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = query the store directly)")
	rangeFlag := fs.String("range", "", "time range: day, week, month or all (default from config)")
	limit := fs.Int("limit", 0, "number of items (default from config)")
	exclude := fs.String("exclude", "", "comma-separated ids to leave out")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: rankd trending [flags] <kind>")
		os.Exit(1)
	}
	kind, err := models.ParseKind(fs.Arg(0))
	if err != nil {
		fail("Invalid kind", err)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("Invalid flags", err)
	}

	var items []*models.TrendingItem
	var timeRange models.TimeRange
	if *serverURL != "" {
		if timeRange, err = models.ParseTimeRange(*rangeFlag); err != nil {
			fail("Invalid flags", err)
		}
		q := url.Values{"range": {string(timeRange)}, "exclude": {*exclude}}
		if *limit > 0 {
			q.Set("limit", strconv.Itoa(*limit))
		}
		var resp trendingResponse
		err = doJSON(http.MethodGet, *serverURL+"/api/v1/trending/"+string(kind)+"?"+q.Encode(), nil, &resp)
		items = resp.Items
	} else {
		err = withComponents(*configPath, func(ctx context.Context, c *Components) error {
			if timeRange, err = rangeOrDefault(*rangeFlag, c.Config); err != nil {
				return err
			}
			items, err = c.Trending.ComputeTrending(ctx, kind, *limit, timeRange, parseIDs(*exclude))
			return err
		})
	}
	if err != nil {
		fail("Trending failed", err)
	}
	if err := cli.WriteTrending(os.Stdout, kind, timeRange, items, format); err != nil {
		fail("Output failed", err)
	}
}

func runInsights() {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	rangeFlag := fs.String("range", "", "time range: day, week, month or all (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: rankd insights [flags] <kind> <id>")
		os.Exit(1)
	}
	kind, err := models.ParseKind(fs.Arg(0))
	if err != nil {
		fail("Invalid kind", err)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("Invalid flags", err)
	}

	var insights *models.TrendingInsights
	err = withComponents(*configPath, func(ctx context.Context, c *Components) error {
		timeRange, err := rangeOrDefault(*rangeFlag, c.Config)
		if err != nil {
			return err
		}
		insights, err = c.Trending.Insights(ctx, kind, fs.Arg(1), timeRange)
		return err
	})
	if err != nil {
		fail("Insights failed", err)
	}
	if err := cli.WriteInsights(os.Stdout, insights, format); err != nil {
		fail("Output failed", err)
	}
}

func runRecompute() {
	fs := flag.NewFlagSet("recompute", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = recompute against the store directly)")
	_ = fs.Parse(os.Args[2:])

	var res trending.RecomputeResult
	var err error
	if *serverURL != "" {
		err = doJSON(http.MethodPost, *serverURL+"/api/v1/trending/recompute", nil, &res)
	} else {
		err = withComponents(*configPath, func(ctx context.Context, c *Components) error {
			r, err := c.Job.RecomputeNow(ctx)
			if r != nil {
				res = *r
			}
			return err
		})
	}
	if err != nil {
		fail("Recompute failed", err)
	}
	fmt.Printf("run %s: %s in %s\n", res.RunID, res.Status, res.Duration)
	for _, kind := range models.AllKinds {
		if n, ok := res.Scored[kind]; ok {
			fmt.Printf("  %-10s %d scored\n", kind, n)
		}
	}
}

// importFile is the layout accepted by the import command.
type importFile struct {
	Documents []*models.Document        `json:"documents"`
	Events    []*models.EngagementEvent `json:"events"`
}

// readImport decodes an import file, rejecting unknown fields.
func readImport(r io.Reader) (*importFile, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var in importFile
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: decode import: %v", models.ErrInvalidInput, err)
	}
	return &in, nil
}

// touchedKinds lists the kinds an import writes to, in AllKinds order.
func touchedKinds(in *importFile) []models.Kind {
	seen := make(map[models.Kind]bool)
	for _, d := range in.Documents {
		seen[d.Kind] = true
	}
	for _, e := range in.Events {
		seen[e.Kind] = true
	}
	var kinds []models.Kind
	for _, k := range models.AllKinds {
		if seen[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: rankd import [flags] <file.json>")
		os.Exit(1)
	}
	f, err := os.Open(filepath.Clean(fs.Arg(0)))
	if err != nil {
		fail("Import failed", err)
	}
	defer f.Close()
	in, err := readImport(f)
	if err != nil {
		fail("Import failed", err)
	}

	err = withComponents(*configPath, func(ctx context.Context, c *Components) error {
		if err := c.Store.AddDocuments(ctx, in.Documents...); err != nil {
			return fmt.Errorf("documents: %w", err)
		}
		if err := c.Store.AddEvents(ctx, in.Events...); err != nil {
			return fmt.Errorf("events: %w", err)
		}
		for _, kind := range touchedKinds(in) {
			if _, err := c.Cache.Invalidate(ctx, string(kind)+":*"); err != nil {
				c.Logger.Warn("cache invalidation incomplete", zap.String("kind", string(kind)), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		fail("Import failed", err)
	}
	fmt.Printf("Imported %d document(s) and %d event(s)\n", len(in.Documents), len(in.Events))
}

// rangeOrDefault parses s, falling back to the configured default range.
func rangeOrDefault(s string, cfg *config.Config) (models.TimeRange, error) {
	if strings.TrimSpace(s) == "" {
		s = cfg.Trending.DefaultRange
	}
	return models.ParseTimeRange(s)
}

func doJSON(method, target string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, target, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

// withComponents loads config, builds the components and runs fn with them.
func withComponents(configPath string, fn func(ctx context.Context, c *Components) error) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(ctx, components)
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    storage.Store
	Cache    *cache.Orchestrator
	Expander *lexical.Expander
	Engine   *search.Engine
	Trending *trending.Service
	Job      *trending.RecomputeJob

	redis *cache.RedisKV
}

func (c *Components) Close() {
	if c.redis != nil {
		c.redis.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func newCacheKV(ctx context.Context, cfg *config.CacheConfig) (cache.KV, *cache.RedisKV, error) {
	if cfg.Driver != config.CacheDriverRedis {
		return cache.NewMemoryKV(), nil, nil
	}
	kv, err := cache.NewRedisKV(cache.RedisConfig{
		Addrs:     cfg.Addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: cfg.KeyPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if err := kv.Ping(ctx); err != nil {
		kv.Close()
		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return kv, kv, nil
}

func loadLexicon(cfg *config.LexiconConfig) (*lexical.Lexicon, error) {
	base := lexical.DefaultLexicon()
	if cfg.Path == "" {
		return base, nil
	}
	lex, err := lexical.LoadLexicon(cfg.Path)
	if err != nil {
		return nil, err
	}
	return base.Merge(lex), nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	logger = utils.LoggerOrNop(logger)
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Config: cfg, Logger: logger, Store: store}

	kv, redisKV, err := newCacheKV(ctx, &cfg.Cache)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.redis = redisKV
	c.Cache = cache.NewOrchestrator(kv,
		cache.WithDebounce(cfg.Cache.Debounce()),
		cache.WithLogger(logger),
	)

	lex, err := loadLexicon(&cfg.Lexicon)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}
	c.Expander = lexical.NewExpander(lex,
		lexical.WithMaxVariants(cfg.Lexicon.MaxVariants),
		lexical.WithLogger(logger),
	)

	embedder, err := embedding.NewEngine(
		embedding.WithCacheSize(cfg.Embedding.CacheSize),
		embedding.WithLogger(logger),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedding engine: %w", err)
	}

	c.Engine = search.NewEngine(store, c.Expander, embedder, ranking.NewRanker(&cfg.Ranking), c.Cache, &cfg.Search, logger)
	if err := c.Engine.HarvestTerms(ctx, cfg.Lexicon.HarvestLimit); err != nil {
		logger.Warn("term harvest failed; using the lexicon only", zap.Error(err))
	}

	c.Trending = trending.NewService(store, store, c.Cache, &cfg.Trending, logger)
	timeRange, err := models.ParseTimeRange(cfg.Trending.DefaultRange)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Job = trending.NewRecomputeJob(trending.RecomputeJobConfig{
		Interval: cfg.Trending.Interval(),
		Timeout:  cfg.Trending.Timeout(),
		Range:    timeRange,
		Logger:   logger,
	}, c.Trending, store)

	logger.Debug("components initialized",
		zap.String("database", cfg.Storage.DatabasePath),
		zap.Int("lexicon_terms", c.Expander.Size()))
	return c, nil
}

func printUsage() {
	fmt.Println(`rankd - search ranking and trending score engine

Usage:
  rankd server [flags]               Start the HTTP server and recompute job
  rankd search [flags] <query>       Search documents across kinds
  rankd trending [flags] <kind>      Show the trending list of a kind
  rankd insights [flags] <kind> <id> Explain an item's trending position
  rankd recompute [flags]            Recompute and persist trending scores once
  rankd import [flags] <file.json>   Load documents and engagement events
  rankd version                      Show version
  rankd help                         Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/rankd/config.yaml)
  --server string    Server URL for search, trending and recompute (empty = use the store directly)
  --output string    Output format: text or json (default: text)

Search Flags:
  --kinds string     Comma-separated kinds: products, jobs, projects, users (default: all)
  --page int         Page number (default: 1)
  --limit int        Results per kind (default from config)
  --filter k=v       Filter, repeatable (category, pricing_type, min_price, max_price, from, to, owner, role, exclude_id)

Trending Flags:
  --range string     day, week, month or all (default from config)
  --limit int        Number of items (default from config)
  --exclude string   Comma-separated ids to leave out

Examples:
  rankd server --debug
  rankd import seed.json
  rankd search react dashboard
  rankd search -kinds jobs -filter role=engineer remote
  rankd trending -range day products
  rankd insights products p-123
  rankd recompute --server http://localhost:8080`)
}
