package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MaxContentLength is the upper bound for a single message body.
const MaxContentLength = 12000

var scriptTagPattern = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)

// Message represents a single conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTextMessage creates a message with the given role and text
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}

// Validate checks the message against the content rules enforced at the
// transport boundary: known role, non-empty bounded content, no embedded
// script markup, no NUL bytes.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("content must not be empty")
	}
	if len(m.Content) > MaxContentLength {
		return fmt.Errorf("content exceeds %d characters", MaxContentLength)
	}
	if scriptTagPattern.MatchString(m.Content) {
		return fmt.Errorf("content contains script tags")
	}
	if strings.ContainsRune(m.Content, '\x00') {
		return fmt.Errorf("content contains null bytes")
	}
	return nil
}

// ValidateMessages validates every message in a request batch.
func ValidateMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

type StreamChunk struct {
	Content string
	Done    bool
	Error   error
	Usage   *Usage // Only populated on final chunk (Done=true)
}

type ChatRequest struct {
	Model         string
	Messages      []Message
	MaxTokens     int
	Temperature   float64
	StopSequences []string
}

type ChatResponse struct {
	ID           string
	Content      string
	FinishReason string
	Usage        Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
}
