package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/flowsync/internal/catalog"
	"github.com/roach88/flowsync/internal/config"
	"github.com/roach88/flowsync/internal/reconcile"
	"github.com/roach88/flowsync/internal/records"
	"github.com/roach88/flowsync/internal/store"
	"github.com/roach88/flowsync/internal/trigger"
	"github.com/roach88/flowsync/internal/workflow"
)

// workspace is the opened local state a command works against.
type workspace struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	lib    *records.Library
	hook   trigger.Hook

	// client is nil when no catalog is configured.
	client *catalog.Client
}

// openWorkspace opens the database at cfg.DBPath, creating it and its
// directory when missing, and loads the library (seeding defaults on first
// run). With needCatalog set, a missing catalog configuration is an error.
func openWorkspace(ctx context.Context, cfg *config.Config, logger *slog.Logger, needCatalog bool) (*workspace, error) {
	if needCatalog {
		if err := cfg.RequireCatalog(); err != nil {
			return nil, WrapExitError(ExitCommandError, "catalog not configured", err)
		}
	}

	ws := &workspace{
		cfg:    cfg,
		logger: logger,
		hook:   trigger.LogHook{Logger: logger},
	}

	libOpts := []records.Option{
		records.WithLogger(logger),
		records.WithTriggerHook(ws.hook),
		records.WithVersion(Version),
	}
	if cfg.Catalog.ListingURL != "" {
		client, err := catalog.NewClient(cfg.ClientConfig(), catalog.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid catalog configuration", err)
		}
		ws.client = client
		libOpts = append(libOpts, records.WithBackupDeleter(client))
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}

	logger.Debug("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	ws.store = st

	ws.lib = records.New(st, libOpts...)
	if _, err := ws.lib.Load(ctx); err != nil {
		ws.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load workflows", err)
	}
	return ws, nil
}

// reconciler builds a reconciler over the workspace library.
func (w *workspace) reconciler() (*reconcile.Reconciler, error) {
	if w.client == nil {
		return nil, fmt.Errorf("catalog not configured")
	}
	validator, err := workflow.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("build content validator: %w", err)
	}
	return reconcile.New(w.client, w.lib,
		reconcile.WithValidator(validator),
		reconcile.WithCheckUpdateDate(w.cfg.Sync.CheckUpdateDate),
		reconcile.WithConcurrency(w.cfg.Sync.Concurrency),
		reconcile.WithTriggerHook(w.hook),
		reconcile.WithVersion(Version),
		reconcile.WithLogger(w.logger),
	), nil
}

// Close closes the database.
func (w *workspace) Close() {
	if w.store == nil {
		return
	}
	if err := w.store.Close(); err != nil {
		w.logger.Error("error closing database", "error", err)
	}
}
