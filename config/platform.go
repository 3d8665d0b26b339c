package config

import (
	"fmt"
	"os"
)

// Platform describes one queryable dataset: the SQLite database holding the
// tables and the schema document given to the model.
type Platform struct {
	Name        string `hcl:"name,label"`
	Database    string `hcl:"database"`
	SchemaFile  string `hcl:"schema_file"`
	Language    string `hcl:"language,optional"`
	Description string `hcl:"description,optional"`
}

func (p *Platform) Defaults() {
	if p.Language == "" {
		p.Language = "english"
	}
}

func (p *Platform) Validate() error {
	if p.Database == "" {
		return fmt.Errorf("database is required")
	}
	if p.SchemaFile == "" {
		return fmt.Errorf("schema_file is required")
	}
	if _, err := os.Stat(p.Database); err != nil {
		return fmt.Errorf("database file: %w", err)
	}
	if _, err := os.Stat(p.SchemaFile); err != nil {
		return fmt.Errorf("schema file: %w", err)
	}
	return nil
}
