// Package store implements the embedded persistence engine for engramd —
// schema, migration ledger, the full-text and vector search indexes, and
// typed repositories for sessions, observations, summaries, pending
// messages, and entities. It uses SQLite with FTS5, exactly as the
// predecessor this package is descended from: everything else (the queue
// processor, the daemon, the search orchestrator, the MCP loop) talks to
// this package and nothing else touches the database file directly.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Config is the subset of the process configuration the storage engine
// itself needs; internal/config.Config carries more and maps onto this at
// the composition root in cmd/engramd.
type Config struct {
	DataDir              string
	MaxObservationLength int
	MaxSearchResults     int
	MaxContextResults    int
	DedupeWindow         time.Duration

	// VectorExtensionAvailable mirrors the ambient flag the config loader
	// reads (spec §6). The store does not read it; the native-KNN code path
	// is gated by the copy of the flag that cmd/engramd passes to search.New
	// (SPEC_FULL.md §4.2).
	VectorExtensionAvailable bool
	EmbeddingDim             int
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:              filepath.Join(home, ".engramd"),
		MaxObservationLength: 4000,
		MaxSearchResults:     50,
		MaxContextResults:    20,
		DedupeWindow:         15 * time.Minute,
	}
}

func (c Config) dbPath() string {
	return filepath.Join(c.DataDir, "memory.db")
}

// Store owns the single database connection for one project. Per spec §5,
// only one writer process should be active against it at a time; Store
// itself does not enforce that — the daemon/PID-file protocol does.
type Store struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// New opens (creating if necessary) the database at cfg.DataDir/memory.db,
// configures it per spec §4.1, and applies the migration ledger. On
// configuration failure it runs the two-step corruption recovery dance
// before surfacing the original error.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxObservationLength == 0 {
		d := DefaultConfig()
		cfg.MaxObservationLength = d.MaxObservationLength
		cfg.MaxSearchResults = d.MaxSearchResults
		cfg.MaxContextResults = d.MaxContextResults
		cfg.DedupeWindow = d.DedupeWindow
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engramd: create data dir: %w", err)
	}

	db, err := openAndConfigure(cfg.dbPath())
	if err != nil {
		recovered, rerr := recoverCorruptStore(cfg.dbPath(), err, log)
		if rerr != nil {
			return nil, rerr
		}
		db = recovered
	}

	s := &Store{db: db, cfg: cfg, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("engramd: migration: %w", err)
	}
	return s, nil
}

// openAndConfigure opens the database file and applies the pragmas spec
// §4.1 mandates: WAL journaling, a 5s busy timeout, synchronous=NORMAL,
// and foreign-key enforcement.
func openAndConfigure(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("engramd: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("engramd: pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// recoverCorruptStore implements the two-step recovery dance from spec
// §4.1: first remove the WAL/SHM sidecars and reopen; if that still fails,
// remove the primary file too. If all attempts fail, the original error is
// returned to the caller.
func recoverCorruptStore(path string, original error, log *zap.Logger) (*sql.DB, error) {
	log.Warn("store: configuration failed, attempting sidecar recovery", zap.Error(original))

	for _, sidecar := range []string{path + "-wal", path + "-shm"} {
		_ = os.Remove(sidecar)
	}
	if db, err := openAndConfigure(path); err == nil {
		return db, nil
	}

	log.Warn("store: sidecar recovery failed, removing primary file", zap.Error(original))
	_ = os.Remove(path)
	if db, err := openAndConfigure(path); err == nil {
		return db, nil
	}

	return nil, fmt.Errorf("engramd: store recovery exhausted: %w", original)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Now returns the current time formatted for SQLite/ISO-8601 comparisons.
func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
