// Package main is the kakushi CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kakushi/internal/cli"
	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/keyword"
	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/internal/pipeline"
	"github.com/hyperjump/kakushi/internal/server"
	"github.com/hyperjump/kakushi/internal/storage"
	"github.com/hyperjump/kakushi/internal/watcher"
	"github.com/hyperjump/kakushi/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kakushi/config.yaml"
	defaultServerURL  = "http://localhost:8090"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present; when neither exists the built-in defaults are
// used with environment overrides. Returns the config and the path that was loaded
// ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			if err := config.ApplyEnv(cfg); err != nil {
				return nil, "", err
			}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "scan":
		runScan()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "job":
		runJob()
	case "delete":
		runDelete()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("kakushi version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and initializes components, exiting on failure.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (inbox events, engine requests, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	inbox := newInbox(watchCtx, cfg, components.Processor, logger)
	if err := inbox.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start inbox watcher", zap.Error(err))
	}
	inbox.SyncExisting()

	srv := server.NewServer(
		components.Processor,
		components.Tracker,
		components.Storage,
		components.Index,
		&cfg.Server,
		logger,
		inbox,
		resolvedConfigPath,
		cfg,
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
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newInbox wires the inbox watcher to the processor. Batches run one at a time.
func newInbox(ctx context.Context, cfg *config.Config, proc *pipeline.Processor, logger *zap.Logger) *watcher.Inbox {
	var mu sync.Mutex
	onBatch := func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		job, res, err := proc.ProcessFiles(ctx, paths, pipeline.Options{})
		if err != nil {
			logger.Warn("inbox batch interrupted", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
		logger.Info("inbox batch processed",
			zap.String("job_id", job.ID),
			zap.Int("treated", len(res.Documents)),
			zap.Int("non_treated", len(res.NonTreated)),
		)
	}
	onRemove := func(path string) {
		if err := proc.Forget(ctx, path); err != nil {
			logger.Warn("inbox forget file failed", zap.String("path", path), zap.Error(err))
		}
	}
	return watcher.New(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		onBatch,
		onRemove,
		watcher.WithLogger(logger),
	)
}

// batchRequest is the body of POST /api/v1/jobs.
type batchRequest struct {
	Documents []models.DocumentInput `json:"documents"`
	Language  string                 `json:"language,omitempty"`
	FileTypes []string               `json:"file_types,omitempty"`
}

// readBatchFile reads a JSON batch: either {"documents": [...]} or a bare array.
func readBatchFile(path string) ([]models.DocumentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var docs []models.DocumentInput
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("parse batch: %w", err)
		}
		return docs, nil
	}
	var req batchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	return req.Documents, nil
}

// collectInputs turns a scan argument into documents: a JSON batch, a directory
// (filtered by extensions) or a single file.
func collectInputs(path string, batch bool, extensions []string) ([]models.DocumentInput, error) {
	if batch {
		return readBatchFile(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return pipeline.CollectDirectory(path, extensions)
	}
	doc, err := pipeline.DocumentFromFile(path)
	if err != nil {
		return nil, err
	}
	return []models.DocumentInput{doc}, nil
}

// parseList splits a comma-separated flag value.
func parseList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printScanUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kakushi scan [flags] <file|directory|batch.json>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kakushi scan contract.pdf
  kakushi scan --language fr ./inbox
  kakushi scan --batch --output json documents.json
  kakushi scan --server http://localhost:8090 ./inbox   # run on a running server
`)
}

func runScan() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = process locally)")
	batch := fs.Bool("batch", false, "treat the argument as a JSON batch of documents")
	language := fs.String("language", "", "skip detection and analyze as this ISO 639-1 language")
	fileTypes := fs.String("file-types", "", "comma-separated accepted file types (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printScanUsage(fs) }
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		printScanUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	opts := pipeline.Options{Language: *language, FileTypes: parseList(*fileTypes)}

	if *serverURL != "" {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		docs, err := collectInputs(fs.Arg(0), *batch, cfg.Watch.Extensions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
			os.Exit(1)
		}
		out, err := newAPIClient(*serverURL).runBatch(batchRequest{Documents: docs, Language: opts.Language, FileTypes: opts.FileTypes})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteBatchResult(os.Stdout, out.BatchResult, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	docs, err := collectInputs(fs.Arg(0), *batch, cfg.Watch.Extensions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := components.Processor.Process(ctx, nil, docs, opts)
	if werr := cli.WriteBatchResult(os.Stdout, res, format); werr != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan interrupted: %v\n", err)
		os.Exit(1)
	}
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument.
func argsReorder(args []string) []string {
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
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the index directly when the server is not running)")
	limit := fs.Int("limit", 10, "number of results")
	offset := fs.Int("offset", 0, "results to skip")
	types := fs.String("types", "", "comma-separated entity types every result must contain")
	language := fs.String("language", "", "restrict to one language")
	minRisk := fs.Int("min-pii-risk", 0, "minimum mean PII risk")
	fuzzy := fs.Bool("fuzzy", false, "enable typo-tolerant matching")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	q := keyword.Query{
		Text:       buildSearchQuery(fs.Args()),
		Types:      parseList(*types),
		Language:   *language,
		MinPIIRisk: *minRisk,
		Fuzzy:      *fuzzy,
		Limit:      *limit,
		Offset:     *offset,
	}
	if q.Text == "" && len(q.Types) == 0 && q.Language == "" && q.MinPIIRisk == 0 {
		fmt.Println("Usage: kakushi search [flags] <query>")
		fs.PrintDefaults()
		os.Exit(1)
	}

	out := &cli.SearchOutput{Query: q.Text}
	if *serverURL != "" {
		// the server holds the index lock; go through the API while it runs
		err = newAPIClient(*serverURL).do(http.MethodPost, "/api/v1/search", q, out, http.StatusOK)
	} else {
		var logger *zap.Logger
		var components *Components
		_, _, logger, components = setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		out.Results, out.Total, err = components.Index.Search(context.Background(), q)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, out, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Records        int64                  `json:"records"`
	NonTreated     int64                  `json:"non_treated"`
	Indexed        uint64                 `json:"indexed"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		if err := newAPIClient(*serverURL).do(http.MethodGet, "/api/v1/status", nil, &status, http.StatusOK); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		s, err := directStatus(context.Background(), cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *s
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("records:            %d   # documents with a classification record\n", status.Records)
		fmt.Printf("non_treated:        %d   # documents excluded from analysis\n", status.NonTreated)
		fmt.Printf("indexed:            %d   # records in the search index\n", status.Indexed)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d   # storage + index on disk\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, k := range []string{"storage_driver", "engine_mode", "ner_mode", "jobs_backend", "chunk_size", "score_threshold", "languages", "record_version", "extended_formats", "bleve_index_path"} {
				if v, ok := status.Config[k]; ok {
					fmt.Printf("%-19s %v\n", k+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func directStatus(ctx context.Context, cfg *config.Config, c *Components) (*statusResponse, error) {
	records, err := c.Storage.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	nonTreated, err := c.Storage.CountNonTreated(ctx)
	if err != nil {
		return nil, fmt.Errorf("count non-treated: %w", err)
	}
	indexed, err := c.Index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count indexed: %w", err)
	}
	s := &statusResponse{
		Records:    records,
		NonTreated: nonTreated,
		Indexed:    indexed,
		Config: map[string]interface{}{
			"storage_driver":   cfg.Storage.Driver,
			"engine_mode":      cfg.Engine.Mode,
			"ner_mode":         cfg.NER.Mode,
			"jobs_backend":     cfg.Jobs.Backend,
			"chunk_size":       cfg.Pipeline.ChunkSize,
			"score_threshold":  cfg.Pipeline.ScoreThreshold,
			"languages":        cfg.Pipeline.Languages,
			"record_version":   cfg.Pipeline.RecordVersion,
			"extended_formats": cfg.Pipeline.ExtendedFormats,
			"bleve_index_path": cfg.Storage.BleveIndexPath,
		},
	}
	paths := []string{cfg.Storage.BleveIndexPath}
	if cfg.Storage.Driver != "postgres" {
		paths = append(paths, cfg.Storage.DatabasePath)
	}
	if _, total, err := storage.DiskUsage(paths...); err == nil {
		s.DiskUsageBytes = &total
	}
	return s, nil
}

func runJob() {
	fs := flag.NewFlagSet("job", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: kakushi job [flags] <job-id>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	job, err := newAPIClient(*serverURL).job(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Job lookup failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteJob(os.Stdout, job, format)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kakushi delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if err := components.Storage.DeleteRecord(ctx, docID); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Index.Delete(ctx, docID); err != nil {
		logger.Warn("failed to remove document from index", zap.String("id", docID), zap.Error(err))
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kakushi watch <add|remove|list> [path]")
		fmt.Println("  kakushi watch add <path>     Add an inbox directory")
		fmt.Println("  kakushi watch remove <path>  Remove an inbox directory")
		fmt.Println("  kakushi watch list           List inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not process files already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	client := newAPIClient(*serverURL)

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kakushi watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body := map[string]interface{}{"path": path, "sync": !*noSync}
		if err := client.do(http.MethodPost, "/api/v1/watch/directories", body, nil, http.StatusCreated); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kakushi watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.do(http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, nil, http.StatusOK); err != nil {
			fmt.Printf("Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := client.do(http.MethodGet, "/api/v1/watch/directories", nil, &out, http.StatusOK); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kakushi - PII/PHI document classification

Usage:
  kakushi server [flags]                 Start the HTTP server and inbox watcher
  kakushi scan [flags] <path>            Classify a file, a directory or a JSON batch
  kakushi search [flags] <query>         Search processed records
  kakushi status [flags]                 Show storage/index status
  kakushi job [flags] <id>               Show the progress of a job
  kakushi delete [flags] <id>            Delete a record
  kakushi watch <add|remove|list>        Manage inbox directories
  kakushi version                        Show version
  kakushi help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kakushi/config.yaml)
  --debug            Enable debug logging

Scan Flags:
  --server string      Run the batch on a server instead of locally
  --batch              Read the argument as a JSON batch ({"documents": [...]} or [...])
  --language string    Skip detection and analyze in this language
  --file-types string  Comma-separated accepted file types
  --output string      text, compact, or json (default: text)

Search Flags:
  --server string      Server URL (default: http://localhost:8090). Use --server "" to open the index directly.
  --types string       Comma-separated entity types every result must contain
  --language string    Restrict to one language
  --min-pii-risk int   Minimum mean PII risk
  --fuzzy              Typo-tolerant matching
  --limit, --offset    Paging

Status Flags:
  --server string    Server URL (default: http://localhost:8090). Use --server "" for direct storage.
  --output string    text or json (default: text)

Environment:
  KAKUSHI_* variables override config values; a .env file in the working directory is loaded first.

Examples:
  kakushi server
  kakushi scan --output json ./inbox
  kakushi scan --batch documents.json
  kakushi search --types EMAIL_ADDRESS,PERSON invoice
  kakushi status --output json
  kakushi watch add /path/to/inbox`)
}
