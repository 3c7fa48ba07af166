// Package main is the Kensaku CLI entry point.
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
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/watcher"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists; when neither exists the built-in
// defaults rooted at the current directory are used.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(cwd), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is normal; only real environment values matter then.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "tf", "idf", "tfidf", "bm25idf", "bm25tf":
		runTermStat(command)
	case "chunk":
		runChunk(false)
	case "semantic-chunk":
		runChunk(true)
	case "embed":
		runEmbed()
	case "normalize":
		runNormalize()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, creates the logger and wires every component.
func setup(configPath string, debug bool) (*Components, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return components, logger
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Indexer.Build(context.Background(), components.Catalog())
	if err != nil {
		fatalf("Build failed: %v", err)
	}
	fmt.Printf("Built indexes for %d movies", stats.Movies)
	if stats.Chunks > 0 {
		fmt.Printf(" (%d chunks)", stats.Chunks)
	}
	fmt.Printf(" in %s\n", stats.Duration.Round(time.Millisecond))
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kensaku search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Modes:
  lexical   BM25 over titles and descriptions
  semantic  cosine similarity over embeddings
  hybrid    reciprocal rank fusion of both (default)
  weighted  min-max normalized blend; --alpha weights the lexical side

Examples:
  kensaku search space adventure
  kensaku search --mode lexical "bear attack"
  kensaku search --mode weighted --alpha 0.7 dinosaur park
  kensaku search --server http://localhost:8080 --output json robots
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "kensaku search dinosaurs -limit 3"
// would otherwise leave -limit unparsed.
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

// newSearchQuery builds the request; alpha < 0 means "use the configured default".
func newSearchQuery(query string, limit int, mode string, alpha float64) *models.SearchQuery {
	q := &models.SearchQuery{
		Query: query,
		Limit: limit,
		Mode:  models.SearchMode(strings.ToLower(mode)),
	}
	if alpha >= 0 {
		q.Alpha = &alpha
	}
	return q
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty searches the local indexes directly")
	limit := fs.Int("limit", 0, "number of results (0 = configured default)")
	mode := fs.String("mode", string(models.ModeHybrid), "search mode: lexical, semantic, hybrid or weighted")
	alpha := fs.Float64("alpha", -1, "lexical weight for weighted mode (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	searchQuery := newSearchQuery(queryStr, *limit, *mode, *alpha)

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, searchQuery)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if err := components.Warm(ctx); err != nil {
		fatalf("Loading indexes failed: %v", err)
	}
	response, err := components.Engine.Search(ctx, searchQuery)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// termStatArgs validates positional arguments for a term statistic command.
// Commands scoped to a document take "<doc_id> <term>", the rest take "<term>".
func termStatArgs(command string, args []string) (docID int, term string, extra []float64, err error) {
	perDoc := command == "tf" || command == "tfidf" || command == "bm25tf"
	want := 1
	if perDoc {
		want = 2
	}
	if len(args) < want {
		if perDoc {
			return 0, "", nil, fmt.Errorf("usage: kensaku %s <doc_id> <term>", command)
		}
		return 0, "", nil, fmt.Errorf("usage: kensaku %s <term>", command)
	}
	if !perDoc {
		if len(args) > 1 {
			return 0, "", nil, fmt.Errorf("%s takes a single term", command)
		}
		return 0, args[0], nil, nil
	}
	docID, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, "", nil, fmt.Errorf("invalid doc_id %q", args[0])
	}
	term = args[1]
	maxExtra := 0
	if command == "bm25tf" {
		maxExtra = 2
	}
	if len(args)-want > maxExtra {
		return 0, "", nil, fmt.Errorf("too many arguments for %s", command)
	}
	for _, a := range args[want:] {
		v, perr := strconv.ParseFloat(a, 64)
		if perr != nil {
			return 0, "", nil, fmt.Errorf("invalid number %q", a)
		}
		extra = append(extra, v)
	}
	return docID, term, extra, nil
}

func runTermStat(command string) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	docID, term, extra, err := termStatArgs(command, fs.Args())
	if err != nil {
		fatalf("%v", err)
	}

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	inv, err := components.Inverted()
	if err != nil {
		if errors.Is(err, keyword.ErrCacheMissing) {
			fatalf("No keyword index cache found; run 'kensaku build' first")
		}
		fatalf("Loading keyword index failed: %v", err)
	}

	var (
		label string
		value float64
	)
	switch command {
	case "tf":
		var tf int
		tf, err = inv.TermFrequency(docID, term)
		label, value = fmt.Sprintf("Term frequency of %q in document %d", term, docID), float64(tf)
	case "idf":
		value, err = inv.InverseDocumentFrequency(term)
		label = fmt.Sprintf("Inverse document frequency of %q", term)
	case "tfidf":
		value, err = inv.TFIDF(docID, term)
		label = fmt.Sprintf("TF-IDF score of %q in document %d", term, docID)
	case "bm25idf":
		value, err = inv.BM25IDF(term)
		label = fmt.Sprintf("BM25 IDF score of %q", term)
	case "bm25tf":
		k1, b := components.Config.Search.BM25K1, components.Config.Search.BM25B
		if len(extra) > 0 {
			k1 = extra[0]
		}
		if len(extra) > 1 {
			b = extra[1]
		}
		value, err = inv.BM25TF(docID, term, k1, b)
		label = fmt.Sprintf("BM25 TF score of %q in document %d", term, docID)
	}
	if err != nil {
		fatalf("%s failed: %v", command, err)
	}
	if err := cli.WriteScore(os.Stdout, label, value, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// chunkSettings resolves window size and overlap for the chunk commands.
// A flag value below zero (or a zero size) falls back to the search config.
func chunkSettings(cfg *config.SearchConfig, semantic bool, size, overlap int) (int, int) {
	defSize, defOverlap := cfg.ChunkSize, cfg.ChunkOverlap
	if semantic {
		defSize, defOverlap = cfg.SemanticChunkSize, cfg.SemanticChunkOverlapOrDefault()
	}
	if size <= 0 {
		size = defSize
	}
	if overlap < 0 {
		overlap = defOverlap
	}
	return size, overlap
}

func runChunk(semantic bool) {
	name, sizeUsage := "chunk", "words per chunk (default search.chunk_size)"
	if semantic {
		name, sizeUsage = "semantic-chunk", "sentences per chunk (default search.semantic_chunk_size)"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	size := fs.Int("chunk-size", 0, sizeUsage)
	overlap := fs.Int("overlap", -1, "units shared between consecutive chunks (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	text := buildSearchQuery(fs.Args())
	if text == "" {
		fatalf("Usage: kensaku %s [--chunk-size N] [--overlap N] <text>", name)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	chunkSize, chunkOverlap := chunkSettings(&cfg.Search, semantic, *size, *overlap)
	chunker, err := indexer.NewChunker(chunkSize, chunkOverlap)
	if err != nil {
		fatalf("%v", err)
	}
	var chunks []string
	if semantic {
		chunks = chunker.SemanticChunk(text)
	} else {
		chunks = chunker.Chunk(text)
	}
	if err := cli.WriteChunks(os.Stdout, chunks, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	text := buildSearchQuery(fs.Args())
	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	vec, err := components.Semantic.GenerateEmbedding(context.Background(), text)
	if err != nil {
		fatalf("Embedding failed: %v", err)
	}
	if err := cli.WriteVector(os.Stdout, vec, 8, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// parseScores converts every argument into a float.
func parseScores(args []string) ([]float64, error) {
	scores := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q", a)
		}
		scores = append(scores, v)
	}
	return scores, nil
}

func runNormalize() {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	scores, err := parseScores(fs.Args())
	if err != nil {
		fatalf("%v", err)
	}
	normalized := search.Normalize(scores)
	if format == cli.OutputJSON {
		if normalized == nil {
			normalized = []float64{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]interface{}{"scores": normalized}); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	for _, s := range normalized {
		fmt.Printf("* %.4f\n", s)
	}
}

// newCatalogWatcher rebuilds every index whenever the catalog file changes.
func newCatalogWatcher(components *Components, logger *zap.Logger) *watcher.Watcher {
	rebuild := func(path string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := components.Rebuild(ctx); err != nil {
			logger.Warn("catalog rebuild failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("catalog rebuilt", zap.String("path", path), zap.Int("movies", components.Catalog().Len()))
	}
	debounce := time.Duration(components.Config.Watch.DebounceMS) * time.Millisecond
	return watcher.NewWatcher(components.Config.Storage.CatalogPath, rebuild,
		watcher.WithLogger(logger),
		watcher.WithDebounce(debounce),
	)
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "rebuild indexes when the catalog file changes")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	if err := components.Warm(context.Background()); err != nil {
		logger.Fatal("Failed to load indexes", zap.Error(err))
	}

	cfg := components.Config
	if *watch {
		watchSvc := newCatalogWatcher(components, logger)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Engine, &cfg.Server, logger,
		server.WithRebuilder(components),
		server.WithDiskPaths(cfg.Storage.CacheDir, cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath),
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForSignal()
	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	if err := components.Warm(context.Background()); err != nil {
		logger.Fatal("Failed to load indexes", zap.Error(err))
	}
	watchSvc := newCatalogWatcher(components, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	logger.Info("watching catalog", zap.String("path", watchSvc.Path()))

	waitForSignal()
	if used, err := storage.DiskUsageBytes(components.Config.Storage.CacheDir); err == nil {
		logger.Info("stopped watching", zap.Int64("cache_bytes", used))
	}
}

func printUsage() {
	fmt.Println(`kensaku - Hybrid movie search engine

Usage:
  kensaku build [flags]                    Build every index from the catalog
  kensaku search [flags] <query>           Search movies
  kensaku tf <doc_id> <term>               Term frequency of term in a movie
  kensaku idf <term>                       Inverse document frequency
  kensaku tfidf <doc_id> <term>            TF-IDF score
  kensaku bm25idf <term>                   BM25 IDF score
  kensaku bm25tf <doc_id> <term> [k1] [b]  BM25 saturated term frequency
  kensaku chunk [flags] <text>             Split text into word windows
  kensaku semantic-chunk [flags] <text>    Split text into sentence windows
  kensaku embed <text>                     Print the embedding of text
  kensaku normalize <score>...             Min-max normalize scores
  kensaku server [flags]                   Start the HTTP server
  kensaku watch [flags]                    Rebuild indexes when the catalog changes
  kensaku version                          Show version
  kensaku help                             Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kensaku/config.yaml,
                     then ./config.yaml, then built-in defaults)
  --output string    Output format: text or json (default: text)

Search Flags:
  --mode string      lexical, semantic, hybrid or weighted (default: hybrid)
  --limit int        Number of results (default from config)
  --alpha float      Lexical weight for weighted mode (default from config)
  --server string    Query a running server instead of the local indexes

Server Flags:
  --debug            Enable debug logging
  --watch            Rebuild indexes when the catalog file changes

Examples:
  kensaku build
  kensaku search "space adventure"
  kensaku search --mode weighted --alpha 0.3 robots
  kensaku bm25tf 1 dinosaur
  kensaku semantic-chunk --chunk-size 2 --overlap 1 "One. Two. Three."
  kensaku normalize 0.5 2.3 1.2
  kensaku server --watch`)
}
