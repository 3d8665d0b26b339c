package streamers

// ChatHandler defines the interface for handling chat I/O
// Different implementations can handle stdout/stdin, SSE, websocket, etc.
type ChatHandler interface {
	// Welcome displays the initial welcome message when chat starts
	Welcome(platform string, modelName string)

	// AwaitClientAnswer prompts for and reads user input, returns the input and any error
	AwaitClientAnswer() (string, error)

	// Goodbye displays the farewell message when chat ends
	Goodbye()

	// Error displays an error message
	Error(err error)

	// Thinking is called when the agent starts processing
	Thinking()

	// SuggestedQuestions shows example questions the user could ask
	SuggestedQuestions(questions []string)

	// PublishAnswerChunk is called for each token of the answer as it streams
	PublishAnswerChunk(chunk string)

	// FinishAnswer is called when the answer is complete (to render, stop spinner, etc)
	FinishAnswer()

	// ShowChart surfaces a chart specification captured during the turn
	ShowChart(spec string)
}
