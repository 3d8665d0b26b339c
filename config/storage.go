package config

import "fmt"

// StorageConfig defines the storage backend for conversation checkpoints
type StorageConfig struct {
	Backend  string `hcl:"backend,optional"`   // "memory", "sqlite" or "postgres"
	Path     string `hcl:"path,optional"`      // SQLite file path (default: ".tablechat/checkpoints.db")
	URL      string `hcl:"url,optional"`       // Postgres connection url
	PoolSize int    `hcl:"pool_size,optional"` // Postgres pool size
	Mode     string `hcl:"mode,optional"`      // "strict" or "best_effort"
}

// Defaults fills in default values for unset fields
func (s *StorageConfig) Defaults() {
	if s.Backend == "" {
		s.Backend = "memory"
	}
	if s.Path == "" {
		s.Path = ".tablechat/checkpoints.db"
	}
	if s.PoolSize == 0 {
		s.PoolSize = 4
	}
	if s.Mode == "" {
		s.Mode = "strict"
	}
}

func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case "memory", "sqlite":
	case "postgres":
		if s.URL == "" {
			return fmt.Errorf("url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown backend '%s' (expected memory, sqlite or postgres)", s.Backend)
	}

	switch s.Mode {
	case "strict", "best_effort":
	default:
		return fmt.Errorf("unknown mode '%s' (expected strict or best_effort)", s.Mode)
	}

	return nil
}
