// Package config loads the environment-variable configuration the core
// reads at startup (spec §6). Parsing CLI flags, config files, and anything
// richer than environment variables is deliberately out of scope — that is
// "the surrounding config loader" the core trusts, not the core itself.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config is the full set of environment-derived settings the core consults.
type Config struct {
	DataDir                  string
	Project                  string
	CompressionEnabled       bool
	RetentionDays            int
	BatchSize                int
	BatchIntervalSeconds     int
	EmbeddingDim             int
	VectorExtensionAvailable bool
	DaemonEnabled            bool
	ClientVersion            string
}

// FromEnv reads the ENGRAMD_* environment variables, falling back to the
// documented defaults for anything unset or unparseable.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("ENGRAMD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ENGRAMD_PROJECT"); v != "" {
		cfg.Project = v
	}
	if v, ok := lookupBool("ENGRAMD_COMPRESSION_ENABLED"); ok {
		cfg.CompressionEnabled = v
	}
	if v, ok := lookupInt("ENGRAMD_RETENTION_DAYS"); ok {
		cfg.RetentionDays = v
	}
	if v, ok := lookupInt("ENGRAMD_BATCH_SIZE"); ok {
		cfg.BatchSize = v
	}
	if v, ok := lookupInt("ENGRAMD_BATCH_INTERVAL_SECONDS"); ok {
		cfg.BatchIntervalSeconds = v
	}
	if v, ok := lookupInt("ENGRAMD_EMBEDDING_DIM"); ok {
		cfg.EmbeddingDim = v
	}
	if v, ok := lookupBool("ENGRAMD_VECTOR_EXTENSION"); ok {
		cfg.VectorExtensionAvailable = v
	}
	if v, ok := lookupBool("ENGRAMD_DAEMON_ENABLED"); ok {
		cfg.DaemonEnabled = v
	}
	if v := os.Getenv("ENGRAMD_CLIENT_VERSION"); v != "" {
		cfg.ClientVersion = v
	}

	return cfg
}

// Default returns the documented defaults, used both as the FromEnv base
// and directly by tests.
func Default() Config {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return Config{
		DataDir:                  filepath.Join(home, ".engramd"),
		Project:                  cwd,
		CompressionEnabled:       true,
		RetentionDays:            0,
		BatchSize:                10,
		BatchIntervalSeconds:     30,
		EmbeddingDim:             0,
		VectorExtensionAvailable: false,
		DaemonEnabled:            false,
		ClientVersion:            "",
	}
}

// DBPath is the primary store file for this configuration's data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "memory.db")
}

// PIDPath is the daemon's PID file, a sibling of DBPath per spec §6.
func (c Config) PIDPath() string {
	return filepath.Join(c.DataDir, "worker.pid")
}

// SocketPath is the daemon IPC socket, a sibling of the PID file.
func (c Config) SocketPath() string {
	return filepath.Join(c.DataDir, "worker.sock")
}

func lookupBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
