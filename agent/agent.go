// Package agent exposes the conversational facade over the workflow graph:
// single-shot and streaming responses, chat history retrieval and history
// clearing, all keyed by session id.
package agent

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"tablechat/executor"
	"tablechat/graph"
	"tablechat/llm"
)

// Options configures one Agent.
type Options struct {
	// Platform is the dataset name, used in logs and question suggestions.
	Platform string
	// Language for formatted answers.
	Language string
	// MaxRetries bounds the workflow's reflect loop. Zero defers to the
	// completion client's retry budget.
	MaxRetries int
	// ExecutionTimeout bounds a single query execution.
	ExecutionTimeout time.Duration
	// StreamBufferSize is the capacity of the token channel handed to
	// streaming callers. Zero means 64.
	StreamBufferSize int
	// MaxContextMessages / KeepLastN control history windowing.
	MaxContextMessages int
	KeepLastN          int
}

// Agent answers natural-language questions about one platform's tabular
// data. It owns the completion client, the dataset handle and the checkpoint
// saver, and serializes turns per session so concurrent requests for the
// same conversation cannot interleave state.
type Agent struct {
	client *llm.Client
	db     *sql.DB
	schema string
	saver  graph.Saver
	logger hclog.Logger
	opts   Options

	compileOnce sync.Once
	graph       *graph.Graph

	sessionMu sync.Mutex
	sessions  map[string]*sync.Mutex
}

// Response is the outcome of one completed turn.
type Response struct {
	// Messages is the full visible conversation after the turn: user and
	// assistant entries with non-empty content, in order.
	Messages []llm.Message `json:"messages"`
	// GeneratedCode is the last query program of the turn, empty when
	// generation never completed.
	GeneratedCode string `json:"generated_code,omitempty"`
	// Fig is the chart specification captured during execution, if any.
	Fig string `json:"fig,omitempty"`
}

// StreamEvent is one frame of a streaming response. Content carries a token
// while Done is false; the final frame has Done true and, on failure, Err.
type StreamEvent struct {
	Content string
	Done    bool
	Err     error
}

// New creates an agent over an open dataset. The caller retains ownership
// of db and saver lifecycles.
func New(client *llm.Client, db *sql.DB, schema string, saver graph.Saver, logger hclog.Logger, opts Options) *Agent {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Language == "" {
		opts.Language = "english"
	}
	if opts.StreamBufferSize <= 0 {
		opts.StreamBufferSize = 64
	}
	return &Agent{
		client:   client,
		db:       db,
		schema:   schema,
		saver:    saver,
		logger:   logger.Named("agent").With("platform", opts.Platform),
		opts:     opts,
		sessions: make(map[string]*sync.Mutex),
	}
}

// compiled returns the workflow graph, building it on first use.
func (a *Agent) compiled() *graph.Graph {
	a.compileOnce.Do(func() {
		exec := executor.New(a.db, a.opts.ExecutionTimeout, a.logger)
		a.graph = graph.New(a.client, exec, a.saver, a.schema, a.logger, graph.Options{
			MaxRetries:         a.opts.MaxRetries,
			Language:           a.opts.Language,
			MaxContextMessages: a.opts.MaxContextMessages,
			KeepLastN:          a.opts.KeepLastN,
		})
	})
	return a.graph
}

// sessionLock returns the mutex serializing turns for one session.
func (a *Agent) sessionLock(sessionID string) *sync.Mutex {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	mu, ok := a.sessions[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		a.sessions[sessionID] = mu
	}
	return mu
}

// GetResponse answers the last user question in messages, running the
// workflow to completion. The returned messages are filtered to the visible
// conversation; intermediate errors surface there as assistant entries.
func (a *Agent) GetResponse(ctx context.Context, messages []llm.Message, sessionID string) (*Response, error) {
	if err := llm.ValidateMessages(messages); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	mu := a.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	state, err := a.compiled().Invoke(ctx, graph.NewState(messages, sessionID))
	if err != nil {
		return nil, err
	}

	return a.buildResponse(state), nil
}

// GetStreamResponse is GetResponse with tokens delivered over the returned
// channel as they are produced. The channel always ends with one Done event
// (carrying Err on failure) and is then closed. Callers must drain it.
func (a *Agent) GetStreamResponse(ctx context.Context, messages []llm.Message, sessionID string) (<-chan StreamEvent, error) {
	if err := llm.ValidateMessages(messages); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	events := make(chan StreamEvent, a.opts.StreamBufferSize)

	go func() {
		defer close(events)

		mu := a.sessionLock(sessionID)
		mu.Lock()
		defer mu.Unlock()

		sink := func(token string) {
			select {
			case events <- StreamEvent{Content: token}:
			case <-ctx.Done():
				// Consumer is gone; the run itself stops on ctx at the
				// next node boundary.
			}
		}

		_, err := a.compiled().InvokeStream(ctx, graph.NewState(messages, sessionID), sink)
		if err != nil {
			a.logger.Error("streaming turn failed", "session_id", sessionID, "error", err)
		}

		select {
		case events <- StreamEvent{Done: true, Err: err}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

// historyStore is implemented by savers that keep per-message rows and can
// rebuild a conversation without deserializing the latest state snapshot.
type historyStore interface {
	Messages(ctx context.Context, sessionID string) ([]llm.Message, error)
}

// GetChatHistory returns the visible conversation recorded for a session.
// A session with no checkpoints yields an empty history, not an error.
func (a *Agent) GetChatHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	if a.saver == nil {
		return []llm.Message{}, nil
	}

	if hs, ok := a.saver.(historyStore); ok {
		msgs, err := hs.Messages(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load chat history: %w", err)
		}
		return filterMessages(msgs), nil
	}

	state, err := a.saver.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	if state == nil {
		return []llm.Message{}, nil
	}
	return filterMessages(state.Messages), nil
}

// ClearChatHistory removes all recorded state for a session. A storage
// failure propagates; a cleared session must never be reported clean when
// rows may remain. The session's serialization entry is evicted so the
// session map does not grow without bound in a long-lived process.
func (a *Agent) ClearChatHistory(ctx context.Context, sessionID string) error {
	mu := a.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if a.saver != nil {
		if err := a.saver.Clear(ctx, sessionID); err != nil {
			return fmt.Errorf("clear chat history: %w", err)
		}
	}

	a.sessionMu.Lock()
	delete(a.sessions, sessionID)
	a.sessionMu.Unlock()

	a.logger.Info("chat history cleared", "session_id", sessionID)
	return nil
}

// SuggestQuestions produces n example questions answerable from the
// platform's schema.
func (a *Agent) SuggestQuestions(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	return a.client.SuggestQuestions(ctx, n, a.opts.Platform, a.schema, a.opts.Language)
}

func (a *Agent) buildResponse(state *graph.State) *Response {
	return &Response{
		Messages:      filterMessages(state.Messages),
		GeneratedCode: state.GeneratedCode,
		Fig:           state.Fig,
	}
}

// filterMessages keeps the conversation a user should see: user and
// assistant entries with non-empty content. System prompts and blank
// placeholders are dropped.
func filterMessages(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		out = append(out, m)
	}
	return out
}
