// Package main is the Manabu CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/app"
	"github.com/hyperjump/manabu/internal/cli"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/indexer"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/notebook"
	"github.com/hyperjump/manabu/internal/server"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/pkg/utils"
)

var version = "dev"

const defaultServerURL = "http://localhost:8000"

// defaultConfigPath returns ~/.manabu/config.yaml, or config.yaml when the home directory is unknown.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".manabu", "config.yaml")
}

// loadConfig loads .env and the config file. When path is the default, config.yaml in the
// current directory takes precedence so that running from a project directory uses its config.
// Returns the config and the path that was actually used.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath() {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				path = local
			}
		}
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// argsReorder moves any flags that appear after the positional arguments to the front so
// that flag.Parse sees them: "manabu topics Graph Theory -n 3" parses -n.
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

// joinTopic joins positional args so multi-word topics work with or without quotes.
func joinTopic(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// commonFlags registers -config and -debug on fs.
func commonFlags(fs *flag.FlagSet) (configPath *string, debug *bool) {
	configPath = fs.String("config", defaultConfigPath(), "config file path")
	debug = fs.Bool("debug", false, "enable debug logging")
	return configPath, debug
}

// setup loads config and builds the components. The returned cleanup closes them and
// flushes the logger.
func setup(configPath string, debug bool, opts ...app.Option) (*app.Components, string, func(), error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Debug = cfg.Debug || debug
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug))
	if err := cfg.Validate(); err != nil {
		logger.Warn("config validation", zap.Error(err))
	}
	components, err := app.New(context.Background(), cfg, logger, opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, "", nil, fmt.Errorf("failed to initialize: %w", err)
	}
	cleanup := func() {
		if err := components.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return components, resolved, cleanup, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "server":
		runServer(args)
	case "index":
		runIndex(args)
	case "delete":
		runDelete(args)
	case "select":
		runSelect(args)
	case "documents":
		runDocuments(args)
	case "topics":
		runTopics(args)
	case "structure":
		runStructure(args)
	case "generate":
		runGenerate(args)
	case "notebook":
		runNotebook(args)
	case "watch":
		runWatch(args)
	case "status":
		runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("manabu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(args)

	components, resolved, cleanup, err := setup(*configPath, *debug)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()
	logger := components.Logger
	cfg := components.Config

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	inbox := components.NewInbox()
	if err := inbox.Start(watchCtx, cfg.Watch.Directories...); err != nil {
		logger.Fatal("Failed to start inbox watcher", zap.Error(err))
	}
	go inbox.Sync("")

	srv := server.NewServer(components.Services(inbox), cfg, resolved, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	inbox.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	recursive := fs.Bool("recursive", false, "index PDFs in subdirectories too")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		fmt.Println("Usage: manabu index [flags] <file.pdf|directory>...")
		os.Exit(1)
	}

	components, _, cleanup, err := setup(*configPath, *debug, app.WithoutGeneration())
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	ctx := context.Background()
	var results []*indexer.Result
	failed := false
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		if info.IsDir() {
			n, err := components.Indexer.IndexDirectory(ctx, path, *recursive)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failed = true
			}
			results = append(results, &indexer.Result{
				Document: path,
				Message:  fmt.Sprintf("Indexed %d new documents from %s", n, path),
			})
			continue
		}
		res, err := components.Indexer.IndexFile(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		results = append(results, res)
	}
	if err := cli.WriteIndexResults(os.Stdout, results, cli.ParseOutputFormat(*output)); err != nil {
		fatal("Output failed: %v", err)
	}
	if failed {
		os.Exit(1)
	}
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		fmt.Println("Usage: manabu delete [flags] <document-name>")
		os.Exit(1)
	}
	name := fs.Arg(0)

	components, _, cleanup, err := setup(*configPath, *debug, app.WithoutGeneration())
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	res, err := components.Indexer.Delete(context.Background(), name)
	if err != nil {
		fatal("Deletion failed: %v", err)
	}
	fmt.Printf("Deleted %s (%d vectors)\n", name, res.Vectors)
}

func runSelect(args []string) {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(argsReorder(args))

	components, _, cleanup, err := setup(*configPath, *debug, app.WithoutGeneration())
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	names := fs.Args()
	if err := components.Store.BulkSetSelected(context.Background(), names); err != nil {
		fatal("Selection failed: %v", err)
	}
	fmt.Printf("Selected %d PDFs\n", len(names))
}

func runDocuments(args []string) {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	components, _, cleanup, err := setup(*configPath, *debug, app.WithoutGeneration())
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	docs, err := components.Store.List(context.Background())
	if err != nil {
		fatal("List failed: %v", err)
	}
	if err := cli.WriteDocuments(os.Stdout, docs, cli.ParseOutputFormat(*output)); err != nil {
		fatal("Output failed: %v", err)
	}
}

func runTopics(args []string) {
	fs := flag.NewFlagSet("topics", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	count := fs.Int("n", 3, "number of notebook topics")
	feedback := fs.String("feedback", "", "refine the drafted topics with this feedback")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))
	topic := joinTopic(fs.Args())
	if topic == "" {
		fmt.Println("Usage: manabu topics [-n N] [-feedback text] <topic>")
		os.Exit(1)
	}

	components, _, cleanup, err := setup(*configPath, *debug)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	ctx := context.Background()
	res, err := components.Topics.Generate(ctx, topic, *count)
	if err != nil {
		fatal("Topic generation failed: %v", err)
	}
	if *feedback != "" {
		res = components.Topics.Refine(ctx, topic, res.Topics, *feedback, *count)
	}
	if err := cli.WriteTopics(os.Stdout, res.Topics, cli.ParseOutputFormat(*output)); err != nil {
		fatal("Output failed: %v", err)
	}
}

func runStructure(args []string) {
	fs := flag.NewFlagSet("structure", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	out := fs.String("o", "", "also write the structure JSON to this file")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))
	topic := joinTopic(fs.Args())
	if topic == "" {
		fmt.Println("Usage: manabu structure [-o structure.json] <topic>")
		os.Exit(1)
	}

	components, _, cleanup, err := setup(*configPath, *debug)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	res, err := components.Structure.Generate(context.Background(), topic)
	if err != nil {
		fatal("Structure generation failed: %v", err)
	}
	if *out != "" {
		if err := writeStructureFile(*out, res.Structure); err != nil {
			fatal("Write failed: %v", err)
		}
	}
	if err := cli.WriteStructure(os.Stdout, res.Structure, cli.ParseOutputFormat(*output)); err != nil {
		fatal("Output failed: %v", err)
	}
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	out := fs.String("o", "", "notebook output path (default from config)")
	_ = fs.Parse(argsReorder(args))
	topic := joinTopic(fs.Args())
	if topic == "" {
		fmt.Println("Usage: manabu generate [-o notebook.ipynb] <topic>")
		os.Exit(1)
	}

	components, _, cleanup, err := setup(*configPath, *debug)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	nb, err := components.GenerateNotebook(context.Background(), topic)
	if err != nil {
		fatal("Generation failed: %v", err)
	}
	path := outputPath(*out, components.Config.Output.NotebookFilename)
	if err := app.WriteNotebook(path, nb.Document); err != nil {
		fatal("Write failed: %v", err)
	}
	if nb.Fallback {
		fmt.Fprintln(os.Stderr, "Structure generation failed; wrote the fallback notebook.")
	}
	fmt.Printf("Wrote %s (%d cells)\n", path, len(nb.Document.Cells))
}

func runNotebook(args []string) {
	fs := flag.NewFlagSet("notebook", flag.ExitOnError)
	in := fs.String("i", "", "structure JSON file (default: stdin)")
	out := fs.String("o", "", "notebook output path")
	_ = fs.Parse(args)

	var r io.Reader = os.Stdin
	if *in != "" {
		f, err := os.Open(*in)
		if err != nil {
			fatal("Open failed: %v", err)
		}
		defer f.Close()
		r = f
	}
	s, err := readStructure(r)
	if err != nil {
		fatal("Invalid structure: %v", err)
	}
	doc, err := notebook.FromStructure(s)
	if err != nil {
		fatal("Assembly failed: %v", err)
	}
	path := outputPath(*out, notebook.DefaultFilename)
	if err := app.WriteNotebook(path, doc); err != nil {
		fatal("Write failed: %v", err)
	}
	fmt.Printf("Wrote %s (%d cells)\n", path, len(doc.Cells))
}

// readStructure decodes a structure, accepting either the bare object or {"structure": {...}}.
func readStructure(r io.Reader) (models.NotebookStructure, error) {
	var envelope struct {
		Structure *models.NotebookStructure `json:"structure"`
		models.NotebookStructure
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return models.NotebookStructure{}, err
	}
	if envelope.Structure != nil {
		return *envelope.Structure, nil
	}
	return envelope.NotebookStructure, nil
}

func writeStructureFile(path string, s models.NotebookStructure) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func outputPath(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if fallback == "" {
		return notebook.DefaultFilename
	}
	return fallback
}

func runWatch(args []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		runWatchRemote(args)
		return
	}
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(args)

	components, _, cleanup, err := setup(*configPath, *debug, app.WithoutGeneration())
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()
	cfg := components.Config
	if len(cfg.Watch.Directories) == 0 {
		fatal("No inbox directories configured (watch.directories)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	inbox := components.NewInbox()
	if err := inbox.Start(ctx, cfg.Watch.Directories...); err != nil {
		fatal("Failed to start inbox watcher: %v", err)
	}
	defer inbox.Stop()
	inbox.Sync("")
	fmt.Printf("Watching %s (Ctrl+C to stop)\n", strings.Join(inbox.Directories(), ", "))
	<-ctx.Done()
}

// runWatchRemote manages the inbox directories of a running server.
func runWatchRemote(args []string) {
	sub := args[0]
	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not index PDFs already in the directory")
	_ = fs.Parse(argsReorder(args[1:]))

	endpoint := *serverURL + "/api/v1/watch/directories"
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fatal("Usage: manabu watch %s [flags] <directory>", sub)
		}
		abs, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fatal("Invalid path: %v", err)
		}
		req, err := watchRequest(sub, endpoint, abs, !*noSync)
		if err != nil {
			fatal("Request failed: %v", err)
		}
		if _, err := doJSON(req, nil); err != nil {
			fatal("%s failed: %v", sub, err)
		}
		fmt.Printf("%s: %s\n", map[string]string{"add": "Added", "remove": "Removed"}[sub], abs)
	case "list":
		req, _ := http.NewRequest(http.MethodGet, endpoint, nil)
		var out struct {
			Directories []string `json:"directories"`
		}
		if _, err := doJSON(req, &out); err != nil {
			fatal("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fatal("Unknown watch subcommand: %s", sub)
	}
}

func watchRequest(sub, endpoint, dir string, syncExisting bool) (*http.Request, error) {
	if sub == "remove" {
		return http.NewRequest(http.MethodDelete, endpoint+"?path="+url.QueryEscape(dir), nil)
	}
	body, err := json.Marshal(map[string]any{"path": dir, "sync": syncExisting})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(req *http.Request, out any) (int, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	serverURL := fs.String("server", "", "server URL (empty = read local storage directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := cli.ParseOutputFormat(*output)

	var status map[string]any
	if *serverURL != "" {
		req, err := http.NewRequest(http.MethodGet, *serverURL+"/api/v1/status", nil)
		if err != nil {
			fatal("Status failed: %v", err)
		}
		if _, err := doJSON(req, &status); err != nil {
			fatal("Status failed: %v", err)
		}
	} else {
		components, _, cleanup, err := setup(*configPath, *debug, app.WithoutGeneration())
		if err != nil {
			fatal("%v", err)
		}
		defer cleanup()
		status, err = localStatus(context.Background(), components)
		if err != nil {
			fatal("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatal("Output failed: %v", err)
	}
}

func localStatus(ctx context.Context, c *app.Components) (map[string]any, error) {
	docs, err := c.Store.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := c.Store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	vectors, err := c.Index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}
	cfg := c.Config
	status := map[string]any{
		"documents":          docs,
		"chunks":             chunks,
		"vectors":            vectors,
		"storage_backend":    cfg.Storage.Backend,
		"vector_backend":     cfg.Vector.Backend,
		"embedding_provider": cfg.Embedding.Provider,
	}
	var paths []string
	if cfg.Storage.Backend == "sqlite" {
		paths = append(paths, cfg.Storage.DatabasePath)
	}
	if cfg.Vector.PersistPath != "" {
		paths = append(paths, cfg.Vector.PersistPath)
	}
	if n, err := storage.UsageBytes(paths...); err == nil {
		status["disk_usage_bytes"] = n
	}
	return status, nil
}

func printUsage() {
	fmt.Println(`manabu - Retrieval-grounded notebook generator

Usage:
  manabu server [flags]                   Start the HTTP API and inbox watcher
  manabu index [flags] <pdf|dir>...       Index PDF documents
  manabu delete [flags] <name>            Delete an indexed document
  manabu select [flags] [names...]        Set the documents used as context (none = clear)
  manabu documents [flags]                List indexed documents (* = selected)
  manabu topics [-n N] <topic>            Split a topic into notebook subtopics
  manabu structure [flags] <topic>        Draft a notebook structure
  manabu generate [-o file] <topic>       Generate a complete notebook
  manabu notebook [-i file] [-o file]     Assemble a notebook from a structure JSON
  manabu watch                            Index PDFs dropped into the inbox directories
  manabu watch <add|remove|list> [dir]    Manage inbox directories of a running server
  manabu status [flags]                   Show storage and index status
  manabu version                          Show version
  manabu help                             Show this help

Common Flags:
  --config string    Config file path (default: ~/.manabu/config.yaml, or ./config.yaml when present)
  --debug            Enable debug logging

Output Flags (index, documents, topics, structure, status):
  --output string    Output format: text or json (default: text)

Environment:
  OPENAI_API_KEY, PINECONE_API_KEY, QDRANT_API_KEY, MANABU_POSTGRES_DSN (a .env file is loaded if present)

Examples:
  manabu index ~/papers/graphs.pdf
  manabu select graphs.pdf
  manabu topics -n 4 "Graph Theory"
  manabu generate -o graphs.ipynb "Graph Theory"
  manabu structure -o structure.json Sorting && manabu notebook -i structure.json
  manabu watch add ~/inbox`)
}
