package config

import "fmt"

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// Model represents a model provider configuration
type Model struct {
	Name     string   `hcl:"name,label"`
	Provider Provider `hcl:"provider"`
	APIKey   string   `hcl:"api_key"`
	// Default is the model identifier used for generation.
	Default string `hcl:"default,optional"`
	// Fallback is swapped in on the penultimate retry when high
	// reliability mode is enabled.
	Fallback string `hcl:"fallback,optional"`
}

func (m *Model) Validate() error {
	switch m.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
	default:
		return fmt.Errorf("Unsupported provider; Provider '%s' is not supported", m.Provider)
	}

	if m.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}

	return nil
}

// ResolvedDefault returns the configured default model or the provider's
// standard model when unset.
func (m *Model) ResolvedDefault() string {
	if m.Default != "" {
		return m.Default
	}
	switch m.Provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderAnthropic:
		return "claude-3-5-haiku-20241022"
	}
	return ""
}

// ResolvedFallback returns the configured fallback model or the provider's
// strongest model when unset.
func (m *Model) ResolvedFallback() string {
	if m.Fallback != "" {
		return m.Fallback
	}
	switch m.Provider {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderGemini:
		return "gemini-1.5-pro"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	}
	return ""
}
