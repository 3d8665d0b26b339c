// Package graph implements the conversational workflow as an explicit
// finite-state machine: generate a query program, execute it, and either
// format the answer, reflect on the failure and loop, or stop.
package graph

import (
	"tablechat/executor"
	"tablechat/llm"
)

// State is the mutable conversation state owned by one workflow run. It is
// persisted after every node transition so an interrupted run can resume
// from the last completed node.
type State struct {
	Messages      []llm.Message   `json:"messages"`
	SessionID     string          `json:"session_id"`
	GeneratedCode string          `json:"generated_code"`
	Error         string          `json:"error"`
	Iterations    int             `json:"iterations"`
	Result        *executor.Table `json:"result,omitempty"`
	Fig           string          `json:"fig,omitempty"`
}

// NewState builds the fresh state for one turn, seeded with the caller's
// message list.
func NewState(messages []llm.Message, sessionID string) *State {
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	return &State{
		Messages:  msgs,
		SessionID: sessionID,
	}
}

// AppendAssistant appends an assistant message to the conversation.
func (s *State) AppendAssistant(content string) {
	s.Messages = append(s.Messages, llm.NewTextMessage(llm.RoleAssistant, content))
}

// LastUserContent returns the content of the most recent user message, which
// is the question the current turn is answering.
func (s *State) LastUserContent() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Clone returns a deep copy safe to hand to a checkpoint saver.
func (s *State) Clone() *State {
	cp := *s
	cp.Messages = make([]llm.Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	if s.Result != nil {
		result := *s.Result
		result.Columns = append([]string(nil), s.Result.Columns...)
		result.Rows = make([][]any, len(s.Result.Rows))
		for i, row := range s.Result.Rows {
			result.Rows[i] = append([]any(nil), row...)
		}
		cp.Result = &result
	}
	return &cp
}
