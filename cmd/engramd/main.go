// engramd — per-project persistent memory service for AI coding agents.
//
// Usage:
//
//	engramd mcp      Start the MCP server (stdio transport)
//	engramd worker   Run the background queue-processing worker
//	engramd stats    Print storage statistics
//	engramd export   Export a project's observations and summaries
//	engramd import   Import an export document from stdin
//	engramd version  Print the version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jalfaro/engramd/internal/ai"
	"github.com/jalfaro/engramd/internal/config"
	"github.com/jalfaro/engramd/internal/daemon"
	"github.com/jalfaro/engramd/internal/logging"
	"github.com/jalfaro/engramd/internal/mcp"
	"github.com/jalfaro/engramd/internal/processor"
	"github.com/jalfaro/engramd/internal/search"
	"github.com/jalfaro/engramd/internal/store"
)

// version is set via ldflags at build time.
var version = "dev"

var (
	configFromEnv = config.FromEnv
	storeNew      = store.New
	loggingNew    = logging.NewFromEnv
	exitFunc      = os.Exit
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		exitFunc(1)
		return
	}

	cfg := configFromEnv()
	log, err := loggingNew()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engramd: logger init failed: %v\n", err)
		exitFunc(1)
		return
	}
	defer log.Sync()

	switch os.Args[1] {
	case "mcp":
		cmdMCP(cfg, log)
	case "worker":
		cmdWorker(cfg, log)
	case "stats":
		cmdStats(cfg, log)
	case "export":
		cmdExport(cfg, log)
	case "import":
		cmdImport(cfg, log)
	case "version", "--version", "-v":
		fmt.Printf("engramd %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		exitFunc(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `engramd — per-project persistent memory service

Usage:
  engramd mcp      Start the MCP server (stdio transport)
  engramd worker   Run the background queue-processing worker
  engramd stats    Print storage statistics
  engramd export   Export a project's observations and summaries
  engramd import   Import an export document from stdin
  engramd version  Print the version`)
}

func fatal(log *zap.Logger, err error) {
	log.Error("engramd: fatal", zap.Error(err))
	exitFunc(1)
}

// openStore builds the Store configuration from the process config and
// opens it, running the migration ledger (spec §4.1).
func openStore(cfg config.Config, log *zap.Logger) (*store.Store, error) {
	return storeNew(store.Config{
		DataDir:                  cfg.DataDir,
		MaxObservationLength:     4000,
		MaxSearchResults:         50,
		MaxContextResults:        20,
		VectorExtensionAvailable: cfg.VectorExtensionAvailable,
		EmbeddingDim:             cfg.EmbeddingDim,
	}, log)
}

// buildProcessor wires the queue processor. No AI collaborator is
// configured: the deterministic fallback compressor is used whatever
// CompressionEnabled says, and no embedder is passed, so the processor
// keeps its no-op default. The system degrades gracefully rather than
// failing closed (spec §7).
func buildProcessor(cfg config.Config, st *store.Store, log *zap.Logger) *processor.Processor {
	var compressor ai.Compressor = ai.FallbackCompressor{}
	if !cfg.CompressionEnabled {
		compressor = ai.FallbackCompressor{}
	}
	return processor.New(st, compressor, log, processor.WithBatchSize(cfg.BatchSize))
}

func cmdMCP(cfg config.Config, log *zap.Logger) {
	st, err := openStore(cfg, log)
	if err != nil {
		fatal(log, err)
		return
	}
	defer st.Close()

	proc := buildProcessor(cfg, st, log)
	mgr := daemon.NewManager(cfg, proc, st, log)
	if err := mgr.EnsureWorker(context.Background()); err != nil {
		log.Warn("engramd: worker not started, falling back to in-process processing", zap.Error(err))
	}

	orchestrator := search.New(st, ai.NoopEmbedder{}, nil, cfg.VectorExtensionAvailable, log)
	srv := mcp.NewServer(st, orchestrator, cfg.Project, version, log)

	if err := srv.Serve(); err != nil {
		fatal(log, err)
	}
}

func cmdWorker(cfg config.Config, log *zap.Logger) {
	st, err := openStore(cfg, log)
	if err != nil {
		fatal(log, err)
		return
	}
	defer st.Close()

	proc := buildProcessor(cfg, st, log)
	mgr := daemon.NewManager(cfg, proc, st, log)

	if n, err := mgr.ReapOrphanPID(); err != nil {
		log.Warn("engramd: reap orphan pid failed", zap.Error(err))
	} else if n > 0 {
		log.Info("engramd: removed stale pid file", zap.Int("reaped", n))
	}
	if n, err := mgr.ResetStalePending(5); err != nil {
		log.Warn("engramd: reset stale pending failed", zap.Error(err))
	} else if n > 0 {
		log.Info("engramd: reset stale processing entries", zap.Int("count", n))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.RunWorker(ctx); err != nil {
		fatal(log, err)
	}
}

func cmdStats(cfg config.Config, log *zap.Logger) {
	st, err := openStore(cfg, log)
	if err != nil {
		fatal(log, err)
		return
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		fatal(log, err)
		return
	}
	raw, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(raw))
}

func cmdExport(cfg config.Config, log *zap.Logger) {
	st, err := openStore(cfg, log)
	if err != nil {
		fatal(log, err)
		return
	}
	defer st.Close()

	project := cfg.Project
	if len(os.Args) > 2 {
		project = os.Args[2]
	}

	data, err := st.Export(project)
	if err != nil {
		fatal(log, err)
		return
	}
	raw, _ := json.MarshalIndent(data, "", "  ")
	fmt.Println(string(raw))
}

func cmdImport(cfg config.Config, log *zap.Logger) {
	st, err := openStore(cfg, log)
	if err != nil {
		fatal(log, err)
		return
	}
	defer st.Close()

	var data store.ExportData
	if err := json.NewDecoder(os.Stdin).Decode(&data); err != nil {
		fatal(log, fmt.Errorf("engramd: decode import document: %w", err))
		return
	}

	result, err := st.Import(&data)
	if err != nil {
		fatal(log, err)
		return
	}
	raw, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(raw))
}
