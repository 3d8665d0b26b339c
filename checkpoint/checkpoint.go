// Package checkpoint provides durable per-session conversation state,
// keyed by session id. Savers implement graph.Saver: a snapshot is written
// after every node transition so runs can resume and history can be
// inspected outside an active run.
package checkpoint

// PersistenceMode controls how a saver reacts when its backing store cannot
// be reached at first use.
type PersistenceMode string

const (
	// ModeStrict fails saver construction when the store is unavailable.
	ModeStrict PersistenceMode = "strict"
	// ModeBestEffort degrades to a no-persistence mode with a warning
	// instead of failing the host process.
	ModeBestEffort PersistenceMode = "best_effort"
)
