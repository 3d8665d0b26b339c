package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// TokenSink receives completion tokens as they are produced. Implementations
// must not block for long; the client forwards tokens inline.
type TokenSink func(token string)

// ClientOptions configures a completion client.
type ClientOptions struct {
	Model           string
	FallbackModel   string // swapped in near retry exhaustion when HighReliability is set
	MaxRetries      int    // attempts per generation call
	HighReliability bool   // production-style fallback behavior
	MaxTokens       int
	Temperature     float64
}

// Client wraps a Provider with the three completion operations the workflow
// needs: code generation (retried, with optional model fallback), error
// reflection and result formatting (both single-shot). It also carries the
// auxiliary question-suggestion and history-summarization calls.
type Client struct {
	provider Provider
	logger   hclog.Logger
	opts     ClientOptions

	mu    sync.Mutex
	model string // current model; may be swapped to the fallback
}

// NewClient creates a completion client. MaxRetries below 1 is treated as 1.
func NewClient(provider Provider, logger hclog.Logger, opts ClientOptions) *Client {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		provider: provider,
		logger:   logger.Named("llm"),
		opts:     opts,
		model:    opts.Model,
	}
}

// Model returns the model currently in use (the fallback once swapped).
func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// MaxRetries returns the configured per-call retry budget.
func (c *Client) MaxRetries() int {
	return c.opts.MaxRetries
}

// GenerateCode asks the model for a query program answering the last user
// question in msgs. Transient provider failures and parse failures are
// retried up to the configured budget; in high-reliability mode the model is
// swapped to the fallback on the penultimate attempt. Exhausting the budget
// returns ErrRetriesExhausted.
func (c *Client) GenerateCode(ctx context.Context, msgs []Message) (*QueryProgram, error) {
	return c.generate(ctx, msgs, nil)
}

// GenerateCodeStream is GenerateCode with tokens forwarded to sink as they
// arrive. Only the top-level conversational path uses it.
func (c *Client) GenerateCodeStream(ctx context.Context, msgs []Message, sink TokenSink) (*QueryProgram, error) {
	return c.generate(ctx, msgs, sink)
}

func (c *Client) generate(ctx context.Context, msgs []Message, sink TokenSink) (*QueryProgram, error) {
	maxRetries := c.opts.MaxRetries

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := c.chat(ctx, msgs, sink)
		if err == nil {
			var prog *QueryProgram
			prog, err = parseCompletion(resp.Content)
			if err == nil {
				c.logger.Info("code generated", "attempt", attempt+1, "model", c.Model())
				return prog, nil
			}
		}

		lastErr = err
		c.logger.Error("code generation failed",
			"attempt", attempt+1, "max_retries", maxRetries, "error", err)

		if !IsTransient(err) {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		// One attempt before exhaustion, switch to the more reliable model
		// for the remaining tries.
		if c.opts.HighReliability && c.opts.FallbackModel != "" && attempt == maxRetries-2 {
			c.mu.Lock()
			if c.model != c.opts.FallbackModel {
				c.logger.Warn("using fallback model", "model", c.opts.FallbackModel)
				c.model = c.opts.FallbackModel
			}
			c.mu.Unlock()
		}
	}

	return nil, fmt.Errorf("%w: failed to generate code after %d attempts: %v",
		ErrRetriesExhausted, maxRetries, lastErr)
}

func parseCompletion(content string) (*QueryProgram, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyCompletion
	}
	return ParseQueryProgram(content)
}

// Reflect asks the model to diagnose a failed query. Single-shot; the outer
// workflow's iteration budget governs how often reflection happens.
func (c *Client) Reflect(ctx context.Context, errText, code string) (string, error) {
	resp, err := c.chat(ctx, []Message{
		NewTextMessage(RoleUser, ReflectionPrompt(errText, code)),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("reflect: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// FormatResult turns a raw query result into a prose answer with follow-up
// suggestions, in the requested language. Single-shot.
func (c *Client) FormatResult(ctx context.Context, question, code, result, language string, sink TokenSink) (string, error) {
	resp, err := c.chat(ctx, []Message{
		NewTextMessage(RoleUser, FormatResponsePrompt(question, code, result, language)),
	}, sink)
	if err != nil {
		return "", fmt.Errorf("format result: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// SuggestQuestions generates n sample questions a user could ask about the
// platform's dataset.
func (c *Client) SuggestQuestions(ctx context.Context, n int, platform, schema, language string) ([]string, error) {
	resp, err := c.chat(ctx, []Message{
		NewTextMessage(RoleUser, SuggestQuestionsPrompt(n, platform, schema, language)),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("suggest questions: %w", err)
	}

	var questions []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			questions = append(questions, line)
		}
	}
	return questions, nil
}

// SummarizeHistory compacts old conversation turns into one summary string.
func (c *Client) SummarizeHistory(ctx context.Context, history []Message) (string, error) {
	var sb strings.Builder
	for _, m := range history {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	resp, err := c.chat(ctx, []Message{
		NewTextMessage(RoleUser, SummarizeHistoryPrompt(sb.String())),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// chat performs one completion call. With a sink the streaming endpoint is
// used and tokens are forwarded as they arrive; the accumulated content is
// returned either way.
func (c *Client) chat(ctx context.Context, msgs []Message, sink TokenSink) (*ChatResponse, error) {
	req := &ChatRequest{
		Model:       c.Model(),
		Messages:    msgs,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}

	if sink == nil {
		return c.provider.Chat(ctx, req)
	}

	stream, err := c.provider.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}

	var contentBuilder strings.Builder
	var usage Usage

	for chunk := range stream {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		if chunk.Content != "" {
			contentBuilder.WriteString(chunk.Content)
			sink(chunk.Content)
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}

	return &ChatResponse{
		Content: contentBuilder.String(),
		Usage:   usage,
	}, nil
}
