package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentguard/agent/safety"
	"github.com/BaSui01/agentguard/testutil/fixtures"
)

func decodeLines(t *testing.T, out *bytes.Buffer) []checkLine {
	t.Helper()
	var lines []checkLine
	dec := json.NewDecoder(out)
	for dec.More() {
		var l checkLine
		require.NoError(t, dec.Decode(&l))
		lines = append(lines, l)
	}
	return lines
}

func TestCheck_StrictConfig(t *testing.T) {
	cfg := fixtures.StrictConfig()
	cfg.Metrics.Enabled = true
	reg := prometheus.NewRegistry()

	var out bytes.Buffer
	in := strings.NewReader("hello\nhello again\n")
	err := check(context.Background(), cfg, safety.BuildOptions{Logger: zap.NewNop(), Registerer: reg}, "alice", "", in, &out)
	require.NoError(t, err)

	lines := decodeLines(t, &out)
	require.Len(t, lines, 2)
	assert.Equal(t, safety.StatusSuccess, lines[0].Result.Status)
	assert.Equal(t, "hello", lines[0].Result.Output)
	assert.Equal(t, safety.StatusRateLimited, lines[1].Result.Status)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCheck_FixedOutputMasked(t *testing.T) {
	var out bytes.Buffer
	err := check(context.Background(), fixtures.Config(), safety.BuildOptions{}, "alice",
		"call "+fixtures.CNMobile, strings.NewReader("who?\n"), &out)
	require.NoError(t, err)

	lines := decodeLines(t, &out)
	require.Len(t, lines, 1)
	assert.Equal(t, "call "+fixtures.CNMobileMasked, lines[0].Result.Output)
}

func TestCheck_InvalidConfig(t *testing.T) {
	cfg := fixtures.Config()
	cfg.Admission.MaxRequestsPerWindow = -1
	err := check(context.Background(), cfg, safety.BuildOptions{}, "alice", "", strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}
