package config

// Settings holds runtime tunables shared by every platform.
type Settings struct {
	// MaxRetries bounds code generation attempts per question.
	MaxRetries int `hcl:"max_retries,optional"`
	// HighReliability enables the fallback model swap on the penultimate
	// retry.
	HighReliability bool `hcl:"high_reliability,optional"`
	// ExecutionTimeoutSecs bounds a single query execution.
	ExecutionTimeoutSecs int `hcl:"execution_timeout_secs,optional"`
	// StreamBufferSize is the token channel capacity for streaming
	// responses.
	StreamBufferSize int `hcl:"stream_buffer_size,optional"`
	// MaxContextMessages is the history length beyond which older turns
	// are summarized.
	MaxContextMessages int `hcl:"max_context_messages,optional"`
	// KeepLastN is how many recent messages survive summarization intact.
	KeepLastN int `hcl:"keep_last_n,optional"`
}

func (s *Settings) Defaults() {
	if s.MaxRetries == 0 {
		s.MaxRetries = 3
	}
	if s.ExecutionTimeoutSecs == 0 {
		s.ExecutionTimeoutSecs = 30
	}
	if s.StreamBufferSize == 0 {
		s.StreamBufferSize = 64
	}
	if s.MaxContextMessages == 0 {
		s.MaxContextMessages = 12
	}
	if s.KeepLastN == 0 {
		s.KeepLastN = 6
	}
}
