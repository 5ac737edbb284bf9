package moderation

import (
	"crypto/tls"
	"time"
)

// OpenAIConfig configures the OpenAI-compatible HTTP clients in this package.
type OpenAIConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// TLS overrides the hardened default client TLS settings.
	TLS *tls.Config `json:"-" yaml:"-"`
}

const (
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultModerationModel = "omni-moderation-latest"
	defaultChatModel       = "gpt-4o-mini"
	defaultTimeout         = 30 * time.Second
)

// DefaultOpenAIConfig returns default OpenAI moderation config.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL: defaultBaseURL,
		Model:   defaultModerationModel,
		Timeout: defaultTimeout,
	}
}

func (c OpenAIConfig) withDefaults(model string) OpenAIConfig {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
