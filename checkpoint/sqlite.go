package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tablechat/graph"
	"tablechat/llm"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    session_id TEXT NOT NULL,
    checkpoint_id TEXT NOT NULL,
    node TEXT NOT NULL,
    state_json TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (session_id, checkpoint_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id);

CREATE TABLE IF NOT EXISTS checkpoint_messages (
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (session_id, seq)
);
`

// sessionTables are every table holding rows scoped to a session id. Clear
// must delete from all of them; partial deletion leaves inconsistent history.
var sessionTables = []string{"checkpoints", "checkpoint_messages"}

// SQLiteSaver persists checkpoints in a local SQLite database.
type SQLiteSaver struct {
	db *sql.DB
}

// NewSQLiteSaver opens (or creates) the checkpoint database at path.
func NewSQLiteSaver(path string) (*SQLiteSaver, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}

	return &SQLiteSaver{db: db}, nil
}

func (s *SQLiteSaver) Close() error {
	return s.db.Close()
}

func (s *SQLiteSaver) Save(ctx context.Context, sessionID, node string, state *graph.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (session_id, checkpoint_id, node, state_json) VALUES (?, ?, ?, ?)`,
		sessionID, uuid.New().String(), node, string(stateJSON),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	for i, m := range state.Messages {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO checkpoint_messages (session_id, seq, role, content) VALUES (?, ?, ?, ?)`,
			sessionID, i, string(m.Role), m.Content,
		)
		if err != nil {
			return fmt.Errorf("save checkpoint message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteSaver) Load(ctx context.Context, sessionID string) (*graph.State, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM checkpoints WHERE session_id = ? ORDER BY rowid DESC LIMIT 1`,
		sessionID,
	).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var state graph.State
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &state, nil
}

// Messages rebuilds the visible conversation from the per-message rows,
// without deserializing a full state snapshot.
func (s *SQLiteSaver) Messages(ctx context.Context, sessionID string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM checkpoint_messages WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, llm.Message{Role: llm.Role(role), Content: content})
	}
	return msgs, rows.Err()
}

func (s *SQLiteSaver) Clear(ctx context.Context, sessionID string) error {
	for _, table := range sessionTables {
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", table), sessionID,
		); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
