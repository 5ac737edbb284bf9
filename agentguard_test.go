package agentguard_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/BaSui01/agentguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo() agentguard.ExecutorFunc {
	return func(_ context.Context, input string) (*agentguard.ExecResult, error) {
		return &agentguard.ExecResult{Success: true, Output: input}, nil
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
guardrails:
  max_input_length: 10
  keyword_filter:
    enabled: true
    blocked_keywords: ["secret"]
admission:
  max_requests_per_window: 5
`), 0o600))
	t.Setenv("AGENTGUARD_ADMISSION_MAX_REQUESTS_PER_WINDOW", "1")

	cfg, err := agentguard.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Guardrails.MaxInputLength)
	assert.Equal(t, []string{"secret"}, cfg.Guardrails.KeywordFilter.BlockedKeywords)
	assert.Equal(t, 1, cfg.Admission.MaxRequestsPerWindow)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admission:\n  max_tokens_per_session: -5\n"), 0o600))

	_, err := agentguard.LoadConfig(path)
	assert.Error(t, err)
}

func TestNew_EndToEnd(t *testing.T) {
	cfg := agentguard.DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Admission.MaxRequestsPerWindow = 1
	cfg.Guardrails.MaxInputLength = 10

	exec, err := agentguard.New(context.Background(), cfg, echo())
	require.NoError(t, err)
	defer exec.Close()

	ctx := agentguard.WithSessionID(context.Background(), "s1")

	res, err := exec.Run(ctx, "hello", "alice")
	require.NoError(t, err)
	assert.Equal(t, agentguard.StatusSuccess, res.Status)
	assert.Equal(t, "hello", res.Output)

	res, err = exec.Run(ctx, "hello", "alice")
	require.NoError(t, err)
	assert.Equal(t, agentguard.StatusRateLimited, res.Status)
	assert.Positive(t, res.RetryAfter)

	res, err = exec.Run(ctx, "hello world!", "bob")
	require.NoError(t, err)
	assert.Equal(t, agentguard.StatusBlocked, res.Status)
}

func TestNew_RunIDPropagates(t *testing.T) {
	cfg := agentguard.DefaultConfig()
	cfg.Metrics.Enabled = false

	exec, err := agentguard.New(context.Background(), cfg, echo())
	require.NoError(t, err)
	defer exec.Close()

	res, err := exec.Run(agentguard.WithRunID(context.Background(), "run-42"), "hi", "alice")
	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
}
