package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/config"
)

// New opens the document store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, debug bool, logger *zap.Logger) (DocumentStore, error) {
	var (
		store DocumentStore
		err   error
	)
	switch cfg.Backend {
	case "sqlite", "":
		store, err = NewSQLiteStore(cfg.DatabasePath)
	case "postgres":
		store, err = NewPostgresStore(ctx, cfg.PostgresDSN, debug)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, postgres)", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("document store ready", zap.String("backend", cfg.Backend))
	}
	return store, nil
}
