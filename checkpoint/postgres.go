package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tablechat/graph"
	"tablechat/llm"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    session_id TEXT NOT NULL,
    checkpoint_id TEXT NOT NULL,
    node TEXT NOT NULL,
    state_json JSONB NOT NULL,
    created_at TIMESTAMPTZ DEFAULT now(),
    PRIMARY KEY (session_id, checkpoint_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id);

CREATE TABLE IF NOT EXISTS checkpoint_messages (
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT now(),
    PRIMARY KEY (session_id, seq)
);
`

// ErrStoreUnavailable is returned by operations that must not silently succeed
// when the backing database cannot be reached in best-effort mode.
var ErrStoreUnavailable = errors.New("checkpoint store unavailable")

// PostgresSaver persists checkpoints in PostgreSQL through a pgx connection
// pool. The pool is created lazily on first use: in ModeStrict a connection
// failure at setup time is fatal, while in ModeBestEffort the saver degrades
// to a no-op for Save and Load. Clear always reports failure when the store
// is unreachable so a failed wipe is never presented as success.
type PostgresSaver struct {
	url      string
	poolSize int
	mode     PersistenceMode
	logger   hclog.Logger

	once     sync.Once
	pool     *pgxpool.Pool
	degraded bool
}

type PostgresOptions struct {
	URL      string
	PoolSize int
	Mode     PersistenceMode
	Logger   hclog.Logger
}

func NewPostgresSaver(ctx context.Context, opts PostgresOptions) (*PostgresSaver, error) {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}

	s := &PostgresSaver{
		url:      opts.URL,
		poolSize: opts.PoolSize,
		mode:     opts.Mode,
		logger:   opts.Logger,
	}

	if opts.Mode == ModeStrict {
		if err := s.setup(ctx); err != nil {
			return nil, fmt.Errorf("postgres checkpoint store: %w", err)
		}
	}

	return s, nil
}

func (s *PostgresSaver) setup(ctx context.Context) error {
	var setupErr error
	s.once.Do(func() {
		cfg, err := pgxpool.ParseConfig(s.url)
		if err != nil {
			setupErr = fmt.Errorf("parse connection url: %w", err)
			return
		}
		cfg.MaxConns = int32(s.poolSize)
		cfg.MaxConnIdleTime = 5 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			setupErr = fmt.Errorf("create pool: %w", err)
			return
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			setupErr = fmt.Errorf("ping: %w", err)
			return
		}
		if _, err := pool.Exec(ctx, postgresSchema); err != nil {
			pool.Close()
			setupErr = fmt.Errorf("init schema: %w", err)
			return
		}
		s.pool = pool
	})
	if setupErr != nil && s.mode == ModeBestEffort {
		s.degraded = true
		s.logger.Warn("checkpoint store unreachable, continuing without persistence", "error", setupErr)
	}
	return setupErr
}

// ready reports whether the pool is usable, performing lazy setup.
func (s *PostgresSaver) ready(ctx context.Context) (bool, error) {
	err := s.setup(ctx)
	if s.pool != nil {
		return true, nil
	}
	if s.mode == ModeBestEffort {
		return false, nil
	}
	if err == nil {
		err = ErrStoreUnavailable
	}
	return false, err
}

func (s *PostgresSaver) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresSaver) Save(ctx context.Context, sessionID, node string, state *graph.State) error {
	ok, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO checkpoints (session_id, checkpoint_id, node, state_json) VALUES ($1, $2, $3, $4)`,
		sessionID, uuid.New().String(), node, stateJSON,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	for i, m := range state.Messages {
		_, err = tx.Exec(ctx,
			`INSERT INTO checkpoint_messages (session_id, seq, role, content) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (session_id, seq) DO UPDATE SET role = EXCLUDED.role, content = EXCLUDED.content`,
			sessionID, i, string(m.Role), m.Content,
		)
		if err != nil {
			return fmt.Errorf("save checkpoint message %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresSaver) Load(ctx context.Context, sessionID string) (*graph.State, error) {
	ok, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var stateJSON []byte
	err = s.pool.QueryRow(ctx,
		`SELECT state_json FROM checkpoints WHERE session_id = $1 ORDER BY created_at DESC, checkpoint_id DESC LIMIT 1`,
		sessionID,
	).Scan(&stateJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var state graph.State
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &state, nil
}

// Messages rebuilds the visible conversation from the per-message rows. A
// degraded best-effort saver reports an empty history, same as Load.
func (s *PostgresSaver) Messages(ctx context.Context, sessionID string) ([]llm.Message, error) {
	ok, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT role, content FROM checkpoint_messages WHERE session_id = $1 ORDER BY seq`,
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

func (s *PostgresSaver) Clear(ctx context.Context, sessionID string) error {
	ok, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot clear history for session %s", ErrStoreUnavailable, sessionID)
	}

	for _, table := range sessionTables {
		if _, err := s.pool.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", table), sessionID,
		); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
