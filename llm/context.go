package llm

import "context"

// Default windowing bounds for generation prompts.
const (
	DefaultMaxContextMessages = 12
	DefaultKeepLastN          = 6
)

// PrepareMessages builds the message list for a generation call: the
// schema-aware system prompt followed by the conversation history. When the
// history exceeds maxMessages, everything but the last keepLastN messages is
// summarized with one completion call and folded into the system prompt.
// Summarization is best effort; on failure the full history is used.
func (c *Client) PrepareMessages(ctx context.Context, systemPrompt string, history []Message, maxMessages, keepLastN int) []Message {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxContextMessages
	}
	if keepLastN <= 0 || keepLastN > maxMessages {
		keepLastN = DefaultKeepLastN
	}

	if len(history) > maxMessages {
		summary, err := c.SummarizeHistory(ctx, history[:len(history)-keepLastN])
		if err != nil {
			c.logger.Warn("history summarization failed, using full history", "error", err)
		} else {
			systemPrompt += "\n\nHere is a summary of previous conversation: " + summary
			history = history[len(history)-keepLastN:]
		}
	}

	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, NewTextMessage(RoleSystem, systemPrompt))
	msgs = append(msgs, history...)
	return msgs
}
