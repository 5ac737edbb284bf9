package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/agentguard/internal/tlsutil"
	"github.com/BaSui01/agentguard/types"
)

// contentFence delimits the content block inside a classification prompt.
const contentFence = `"""`

// ExtractContent returns the text inside the last fenced block of a
// classification prompt, or the whole prompt when there is none.
func ExtractContent(prompt string) string {
	end := strings.LastIndex(prompt, contentFence)
	if end <= 0 {
		return prompt
	}
	start := strings.LastIndex(prompt[:end], contentFence)
	if start < 0 {
		return prompt
	}
	return strings.Trim(prompt[start+len(contentFence):end], "\n")
}

// verdict is the JSON reply shape the content moderator parses.
type verdict struct {
	Allowed    bool     `json:"allowed"`
	Categories []string `json:"categories"`
	Reason     string   `json:"reason"`
}

// ProviderOracle adapts a ModerationProvider into a classification oracle.
// The provider sees only the fenced content of the prompt; its flags are
// rendered back as a JSON verdict.
type ProviderOracle struct {
	provider   ModerationProvider
	categories map[string]bool
}

// NewProviderOracle creates an oracle. When categories is non-empty, only
// those guard categories can deny.
func NewProviderOracle(provider ModerationProvider, categories []string) *ProviderOracle {
	o := &ProviderOracle{provider: provider}
	if len(categories) > 0 {
		o.categories = make(map[string]bool, len(categories))
		for _, c := range categories {
			o.categories[c] = true
		}
	}
	return o
}

// Classify implements the guardrail moderation oracle.
func (o *ProviderOracle) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := o.provider.Moderate(ctx, &ModerationRequest{Input: []string{ExtractContent(prompt)}})
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", types.NewError(types.ErrMalformedOracleResponse, o.provider.Name()+" returned no results")
	}

	v := verdict{Allowed: true, Categories: []string{}}
	seen := make(map[string]bool)
	for _, r := range resp.Results {
		for _, name := range r.Categories.Names() {
			if seen[name] || (o.categories != nil && !o.categories[name]) {
				continue
			}
			seen[name] = true
			v.Categories = append(v.Categories, name)
		}
	}
	if len(v.Categories) > 0 {
		v.Allowed = false
		v.Reason = fmt.Sprintf("flagged by %s", o.provider.Name())
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal verdict: %w", err)
	}
	return string(data), nil
}

// ChatOracle sends the classification prompt to an OpenAI-compatible
// /chat/completions endpoint and returns the raw assistant message.
type ChatOracle struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewChatOracle creates a chat oracle. Empty fields take defaults.
func NewChatOracle(cfg OpenAIConfig) *ChatOracle {
	cfg = cfg.withDefaults(defaultChatModel)
	return &ChatOracle{
		cfg:    cfg,
		client: tlsutil.HTTPClient(cfg.Timeout, cfg.TLS),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify implements the guardrail moderation oracle.
func (o *ChatOracle) Classify(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    o.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	endpoint := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	var resp chatResponse
	if err := postJSON(ctx, o.client, endpoint, o.cfg.APIKey, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrMalformedOracleResponse, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
