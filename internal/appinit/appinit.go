// Package appinit builds the collaborator graph every CBIE entry point
// (cmd/cbie and the MCP server) needs: the repositories, the embedding
// and LLM providers, the C1-C7 analysis pipeline, the correction
// coordinator (C8), the exporter, and the audit log. Centralizing this
// avoids the CLI and the MCP server duplicating the same wiring, the
// way the teacher's internal/mcp.NewServer wires one server's
// collaborators in one place.
package appinit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cbie/core/internal/assembler"
	"github.com/cbie/core/internal/audit"
	"github.com/cbie/core/internal/backup"
	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/constants"
	"github.com/cbie/core/internal/coordinator"
	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/embedcache"
	"github.com/cbie/core/internal/embedgw"
	"github.com/cbie/core/internal/export"
	"github.com/cbie/core/internal/llm"
	"github.com/cbie/core/internal/logging"
	"github.com/cbie/core/internal/pipeline"
)

// Store is the subset of corestore.MemoryStore/SQLiteStore appinit and
// internal/backup both need: the three repository views.
type Store = backup.Store

// App bundles every collaborator a CBIE entry point calls into.
// Close releases the underlying store (a no-op for the in-memory
// backend, a DB-handle close for SQLite).
type App struct {
	Config      *config.Config
	Store       Store
	Observations corestore.ObservationRepository
	Prompts      corestore.PromptRepository
	Profiles     corestore.ProfileRepository
	Audit        corestore.AuditLog
	Logger       *slog.Logger
	Coordinator  *coordinator.Coordinator
	Exporter     *export.Exporter

	closeFn func() error
}

// Close releases resources held by the store and audit log.
func (a *App) Close() error {
	var err error
	if a.closeFn != nil {
		err = a.closeFn()
	}
	if closer, ok := a.Audit.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Options configures Build. DataDir defaults to ~/.cbie/data when
// empty; UseMemoryStore bypasses SQLite entirely (used by tests and
// the `--in-memory` CLI flag).
type Options struct {
	DataDir         string
	UseMemoryStore  bool
	LogWriter       io.Writer
}

// Build loads configuration and wires every collaborator needed for a
// full analysis run or a correction command.
func Build(opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("appinit: load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("appinit: invalid config: %w", err)
	}

	logWriter := opts.LogWriter
	if logWriter == nil {
		logWriter = os.Stderr
	}
	logger := logging.NewLogger(cfg.Logging.Level, logWriter)

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir, err = defaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("appinit: resolve data dir: %w", err)
		}
	}

	var (
		store   Store
		closeFn func() error
	)
	if opts.UseMemoryStore {
		store = corestore.NewMemoryStore()
		closeFn = func() error { return nil }
	} else {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("appinit: create data dir: %w", err)
		}
		sqliteStore, err := corestore.NewSQLiteStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("appinit: open sqlite store: %w", err)
		}
		store = sqliteStore
		closeFn = sqliteStore.Close
	}

	auditLog := audit.NewJSONLLog(dataDir)

	embedProvider := llm.NewEmbeddingProvider(cfg.Embedding)
	embedCache, err := buildEmbeddingCache(cfg.Embedding)
	if err != nil {
		logger.Warn("embedding cache unavailable, falling back to in-memory cache", "error", err)
		embedCache = embedgw.NewMemCache()
	}
	gateway := embedgw.New(embedProvider, embedCache, cfg.Embedding)

	textProvider := llm.NewTextProvider(cfg.LLM)

	asm := assembler.New(cfg.Assembler, store.ProfileStore(), auditLog)

	runner := pipeline.NewFromConfig(*cfg, store.ObservationStore(), gateway, textProvider, asm)

	coord := coordinator.New(cfg.Assembler, store.ObservationStore(), store.PromptStore(), store.ProfileStore(), auditLog, runner, logger)

	exporter := export.New(store.ObservationStore(), store.ProfileStore())

	return &App{
		Config:       cfg,
		Store:        store,
		Observations: store.ObservationStore(),
		Prompts:      store.PromptStore(),
		Profiles:     store.ProfileStore(),
		Audit:        auditLog,
		Logger:       logger,
		Coordinator:  coord,
		Exporter:     exporter,
		closeFn:      closeFn,
	}, nil
}

// buildEmbeddingCache opens the LanceDB-backed cache at cfg.CacheDir, or
// the zero-config in-memory cache when no cache directory is set.
func buildEmbeddingCache(cfg config.EmbeddingConfig) (embedgw.Cache, error) {
	if cfg.CacheDir == "" {
		return embedgw.NewMemCache(), nil
	}
	cache, err := embedcache.Open(context.Background(), cfg.CacheDir, constants.DefaultEmbeddingDimension)
	if err != nil {
		return nil, err
	}
	return cache, nil
}

func defaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cbie", "data"), nil
}
