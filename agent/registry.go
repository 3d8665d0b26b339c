package agent

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"tablechat/config"
	"tablechat/executor"
	"tablechat/graph"
	"tablechat/llm"
)

// Registry holds one agent per configured platform. Lookups by unknown
// platform name are a caller error, not a crash.
type Registry struct {
	agents map[string]*Agent
	dbs    []*sql.DB
}

// NewRegistry builds an agent for every platform block in cfg. All agents
// share the completion client and the checkpoint saver; each owns its own
// dataset handle.
func NewRegistry(ctx context.Context, cfg *config.Config, saver graph.Saver, logger hclog.Logger) (*Registry, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	client, err := buildClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	r := &Registry{agents: make(map[string]*Agent)}

	for _, p := range cfg.Platforms {
		db, schema, err := executor.OpenDataset(p.Database, p.SchemaFile)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("platform %s: %w", p.Name, err)
		}
		r.dbs = append(r.dbs, db)

		r.agents[p.Name] = New(client, db, schema, saver, logger, Options{
			Platform:           p.Name,
			Language:           p.Language,
			MaxRetries:         cfg.Settings.MaxRetries,
			ExecutionTimeout:   time.Duration(cfg.Settings.ExecutionTimeoutSecs) * time.Second,
			StreamBufferSize:   cfg.Settings.StreamBufferSize,
			MaxContextMessages: cfg.Settings.MaxContextMessages,
			KeepLastN:          cfg.Settings.KeepLastN,
		})
	}

	return r, nil
}

// Get returns the agent for a platform name.
func (r *Registry) Get(platform string) (*Agent, error) {
	a, ok := r.agents[platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (available: %v)", platform, r.Platforms())
	}
	return a, nil
}

// Platforms lists the registered platform names, sorted.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every dataset handle.
func (r *Registry) Close() {
	for _, db := range r.dbs {
		db.Close()
	}
}

// buildClient constructs the shared completion client from the first model
// block. Additional model blocks are allowed in config for future use but
// only the first drives completions.
func buildClient(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*llm.Client, error) {
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("no model configured")
	}
	m := cfg.Models[0]

	var provider llm.Provider
	var err error
	switch m.Provider {
	case config.ProviderOpenAI:
		provider = llm.NewOpenAIProvider(m.APIKey)
	case config.ProviderAnthropic:
		provider = llm.NewAnthropicProvider(m.APIKey)
	case config.ProviderGemini:
		provider, err = llm.NewGeminiProvider(ctx, m.APIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported provider %q", m.Provider)
	}

	return llm.NewClient(provider, logger, llm.ClientOptions{
		Model:           m.ResolvedDefault(),
		FallbackModel:   m.ResolvedFallback(),
		MaxRetries:      cfg.Settings.MaxRetries,
		HighReliability: cfg.Settings.HighReliability,
	}), nil
}
