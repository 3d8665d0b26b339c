package wsbridge

import "tablechat/llm"

// Action names accepted on a chat connection.
const (
	ActionChat      = "chat"
	ActionHistory   = "history"
	ActionClear     = "clear"
	ActionQuestions = "questions"
)

// Request is one client message. Platform and SessionID are required for
// every action; Messages only for chat.
type Request struct {
	Action    string        `json:"action"`
	Platform  string        `json:"platform"`
	SessionID string        `json:"session_id"`
	Messages  []llm.Message `json:"messages,omitempty"`
	N         int           `json:"n,omitempty"`
}

// Frame is one streamed token. The stream for a turn is a sequence of
// frames with done false, closed by exactly one frame with done true. A
// failed turn carries the error text in the terminal frame's content.
type Frame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// HistoryResponse answers a history request.
type HistoryResponse struct {
	Messages []llm.Message `json:"messages"`
}

// QuestionsResponse answers a questions request.
type QuestionsResponse struct {
	Questions []string `json:"questions"`
}

// AckResponse answers a clear request.
type AckResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is sent for request-level failures outside an active
// stream (bad action, unknown platform, invalid messages).
type ErrorResponse struct {
	Error string `json:"error"`
}
