package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"tablechat/config"
	"tablechat/graph"
)

// NewSaver creates a checkpoint saver based on the storage configuration
func NewSaver(ctx context.Context, cfg *config.StorageConfig, logger hclog.Logger) (graph.Saver, error) {
	if cfg == nil {
		return NewMemorySaver(), nil
	}

	switch cfg.Backend {
	case "sqlite":
		// Ensure directory exists
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
		return NewSQLiteSaver(cfg.Path)

	case "postgres":
		return NewPostgresSaver(ctx, PostgresOptions{
			URL:      cfg.URL,
			PoolSize: cfg.PoolSize,
			Mode:     parseMode(cfg.Mode),
			Logger:   logger,
		})

	case "memory":
		return NewMemorySaver(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (expected 'memory', 'sqlite' or 'postgres')", cfg.Backend)
	}
}

func parseMode(mode string) PersistenceMode {
	if mode == "best_effort" {
		return ModeBestEffort
	}
	return ModeStrict
}
