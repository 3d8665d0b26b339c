package executor

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// OpenDataset opens a platform's SQLite dataset read-only and loads its
// schema description. The schema text is what generation prompts embed; it
// is immutable for the life of the agent.
func OpenDataset(dbPath, schemaPath string) (*sql.DB, string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, "", fmt.Errorf("dataset %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, "", fmt.Errorf("open dataset %s: %w", dbPath, err)
	}

	// SQLite serializes writers; readers can share a small pool. This also
	// keeps concurrent turns from interleaving statement state on one conn.
	db.SetMaxOpenConns(4)

	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		db.Close()
		return nil, "", fmt.Errorf("read schema %s: %w", schemaPath, err)
	}

	return db, string(schema), nil
}
