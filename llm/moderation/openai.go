package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentguard/internal/tlsutil"
	"github.com/BaSui01/agentguard/types"
)

// OpenAIProvider uses the OpenAI /moderations endpoint.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider creates a provider. Empty fields take defaults.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	cfg = cfg.withDefaults(defaultModerationModel)
	return &OpenAIProvider{
		cfg:    cfg,
		client: tlsutil.HTTPClient(cfg.Timeout, cfg.TLS),
	}
}

func (p *OpenAIProvider) Name() string { return "openai-moderation" }

type openAIModerationRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type openAIModerationResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Results []struct {
		Flagged        bool               `json:"flagged"`
		Categories     map[string]bool    `json:"categories"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

// Moderate checks the inputs for policy violations. No retry is attempted.
func (p *OpenAIProvider) Moderate(ctx context.Context, req *ModerationRequest) (*ModerationResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	payload, err := json.Marshal(openAIModerationRequest{Model: model, Input: req.Input})
	if err != nil {
		return nil, fmt.Errorf("marshal moderation request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/moderations"
	var oResp openAIModerationResponse
	if err := postJSON(ctx, p.client, endpoint, p.cfg.APIKey, payload, &oResp); err != nil {
		return nil, err
	}

	results := make([]ModerationResult, len(oResp.Results))
	for i, r := range oResp.Results {
		results[i] = ModerationResult{
			Flagged:    r.Flagged,
			Categories: mapCategories(r.Categories),
			Scores:     mapScores(r.CategoryScores),
		}
	}

	return &ModerationResponse{
		Provider:  p.Name(),
		Model:     oResp.Model,
		Results:   results,
		CreatedAt: time.Now(),
	}, nil
}

// postJSON sends payload and decodes a 2xx JSON reply into out.
// HTTP-level failures are reported as ORACLE_UNAVAILABLE.
func postJSON(ctx context.Context, client *http.Client, endpoint, apiKey string, payload []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.NewError(types.ErrOracleUnavailable,
			fmt.Sprintf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrMalformedOracleResponse, "decode response").WithCause(err)
	}
	return nil
}

func mapCategories(cats map[string]bool) ModerationCategory {
	return ModerationCategory{
		Hate:            cats["hate"],
		HateThreatening: cats["hate/threatening"],
		Harassment:      cats["harassment"] || cats["harassment/threatening"],
		SelfHarm:        cats["self-harm"] || cats["self-harm/instructions"],
		SelfHarmIntent:  cats["self-harm/intent"],
		Sexual:          cats["sexual"],
		SexualMinors:    cats["sexual/minors"],
		Violence:        cats["violence"],
		ViolenceGraphic: cats["violence/graphic"],
		Illicit:         cats["illicit"],
		IllicitViolent:  cats["illicit/violent"],
	}
}

func mapScores(scores map[string]float64) ModerationScores {
	return ModerationScores{
		Hate:            scores["hate"],
		HateThreatening: scores["hate/threatening"],
		Harassment:      scores["harassment"],
		SelfHarm:        scores["self-harm"],
		SelfHarmIntent:  scores["self-harm/intent"],
		Sexual:          scores["sexual"],
		SexualMinors:    scores["sexual/minors"],
		Violence:        scores["violence"],
		ViolenceGraphic: scores["violence/graphic"],
		Illicit:         scores["illicit"],
		IllicitViolent:  scores["illicit/violent"],
	}
}
