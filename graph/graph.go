package graph

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"tablechat/executor"
	"tablechat/llm"
)

// Node identifies one state of the workflow machine. The set is closed;
// transition functions return the next Node alongside the mutated state.
type Node string

const (
	NodeGenerateCode Node = "generate_code"
	NodeExecuteCode  Node = "execute_code"
	NodeReflect      Node = "reflect"
	NodeFormat       Node = "format"
	NodeEnd          Node = "end"
)

// Saver persists conversation state between node transitions. Implementations
// live in the checkpoint package; the interface is defined here on the
// consumer side.
type Saver interface {
	Save(ctx context.Context, sessionID string, node string, state *State) error
	Load(ctx context.Context, sessionID string) (*State, error)
	Clear(ctx context.Context, sessionID string) error
}

// Options configures a compiled graph.
type Options struct {
	// MaxRetries bounds the reflect loop: once Iterations reaches it, an
	// erroring run ends instead of reflecting again. Shares its default
	// with the completion client's per-call retry budget.
	MaxRetries int
	// Language for formatted answers.
	Language string
	// MaxContextMessages / KeepLastN control history windowing for
	// generation prompts. Zero means package defaults.
	MaxContextMessages int
	KeepLastN          int
}

// Graph is the compiled workflow: the completion client, the code executor,
// the checkpoint saver and the transition rules. A Graph is immutable after
// construction and safe for concurrent runs across distinct sessions.
type Graph struct {
	client *llm.Client
	exec   *executor.Executor
	saver  Saver
	schema string
	logger hclog.Logger
	opts   Options
}

// New compiles the workflow graph.
func New(client *llm.Client, exec *executor.Executor, saver Saver, schema string, logger hclog.Logger, opts Options) *Graph {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = client.MaxRetries()
	}
	if opts.Language == "" {
		opts.Language = "english"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Graph{
		client: client,
		exec:   exec,
		saver:  saver,
		schema: schema,
		logger: logger.Named("graph"),
		opts:   opts,
	}
}

// Invoke runs the graph to a terminal state. The returned state may carry a
// non-empty Error; callers must treat that as a degraded, not successful,
// outcome. Node-level failures (retry exhaustion, persistence errors) abort
// the run and propagate.
func (g *Graph) Invoke(ctx context.Context, state *State) (*State, error) {
	return g.run(ctx, state, nil)
}

// InvokeStream is Invoke with completion tokens forwarded to sink as they
// are produced by the generation and formatting nodes.
func (g *Graph) InvokeStream(ctx context.Context, state *State, sink llm.TokenSink) (*State, error) {
	return g.run(ctx, state, sink)
}

func (g *Graph) run(ctx context.Context, state *State, sink llm.TokenSink) (*State, error) {
	node := NodeGenerateCode

	for node != NodeEnd {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		var next Node
		var err error

		switch node {
		case NodeGenerateCode:
			next, err = g.generateCode(ctx, state, sink)
		case NodeExecuteCode:
			next, err = g.executeCode(ctx, state)
		case NodeReflect:
			next, err = g.reflect(ctx, state)
		case NodeFormat:
			next, err = g.format(ctx, state, sink)
		default:
			return state, fmt.Errorf("graph: unknown node %q", node)
		}
		if err != nil {
			return state, err
		}

		// Persistence happens only at node boundaries, so a cancelled turn
		// resumes from the last completed node, never a half-written state.
		if err := g.persist(ctx, node, state); err != nil {
			return state, err
		}

		node = next
	}

	return state, nil
}

// generateCode asks the completion client for a query program. The client
// owns its retry/fallback policy; exhaustion is fatal to the run. Each
// completed generation attempt increments the shared iteration counter.
func (g *Graph) generateCode(ctx context.Context, state *State, sink llm.TokenSink) (Node, error) {
	msgs := g.client.PrepareMessages(ctx, llm.CodeGenerationPrompt(g.schema),
		state.Messages, g.opts.MaxContextMessages, g.opts.KeepLastN)

	var prog *llm.QueryProgram
	var err error
	if sink != nil {
		prog, err = g.client.GenerateCodeStream(ctx, msgs, sink)
	} else {
		prog, err = g.client.GenerateCode(ctx, msgs)
	}
	if err != nil {
		return NodeEnd, err
	}

	state.GeneratedCode = prog.Blob()
	state.Iterations++

	g.logger.Info("code generated", "session_id", state.SessionID, "iteration", state.Iterations)
	return NodeExecuteCode, nil
}

// executeCode runs the program and routes on the outcome. Execution failures
// never abort the run; they become state fields and drive the reflect loop.
func (g *Graph) executeCode(ctx context.Context, state *State) (Node, error) {
	prog, err := llm.ParseQueryProgram(state.GeneratedCode)
	if err != nil {
		// GeneratedCode is the canonical blob, so this is unreachable in
		// practice; classify it like any other execution failure.
		state.Error = err.Error()
		state.AppendAssistant("Error executing code: " + err.Error())
		return g.routeAfterExecute(state), nil
	}

	outcome := g.exec.Execute(ctx, prog)

	if outcome.ErrText != "" {
		state.Error = outcome.ErrText
		if outcome.NoData {
			// The sentinel ends the turn, so the fixed answer is the only
			// assistant message the user will ever see for it.
			state.AppendAssistant(llm.NoDataMessage)
		} else {
			state.AppendAssistant("Error executing code: " + outcome.ErrText)
		}
		return g.routeAfterExecute(state), nil
	}

	state.Result = outcome.Result
	if outcome.Fig != "" {
		state.Fig = outcome.Fig
	}
	return g.routeAfterExecute(state), nil
}

// routeAfterExecute is the graph's only conditional edge. The no-data
// sentinel is a hard stop: more retries cannot make the schema answer the
// question, so it bypasses the iteration budget entirely.
func (g *Graph) routeAfterExecute(state *State) Node {
	if state.Error == "" {
		return NodeFormat
	}
	if state.Error == llm.NoDataSentinel || state.Iterations >= g.opts.MaxRetries {
		return NodeEnd
	}
	return NodeReflect
}

// reflect asks the model for guidance on the captured error, records it as
// an assistant message and clears the error before looping back.
func (g *Graph) reflect(ctx context.Context, state *State) (Node, error) {
	reflection, err := g.client.Reflect(ctx, state.Error, state.GeneratedCode)
	if err != nil {
		return NodeEnd, err
	}

	state.AppendAssistant("Reflection on the error: " + reflection)
	state.Error = ""

	return NodeGenerateCode, nil
}

// format turns the captured result into the final prose answer.
func (g *Graph) format(ctx context.Context, state *State, sink llm.TokenSink) (Node, error) {
	var result string
	if state.Result != nil {
		result = state.Result.Render()
	}

	formatted, err := g.client.FormatResult(ctx,
		state.LastUserContent(), state.GeneratedCode, result, g.opts.Language, sink)
	if err != nil {
		return NodeEnd, err
	}

	state.AppendAssistant(formatted)
	return NodeEnd, nil
}

func (g *Graph) persist(ctx context.Context, node Node, state *State) error {
	if g.saver == nil {
		return nil
	}
	if err := g.saver.Save(ctx, state.SessionID, string(node), state); err != nil {
		return fmt.Errorf("checkpoint after %s: %w", node, err)
	}
	return nil
}
