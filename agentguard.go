// Package agentguard provides a top-level entry point for wrapping an
// executor with admission control, guardrails and an audit trail.
//
// Usage:
//
//	import "github.com/BaSui01/agentguard"
//
//	cfg, err := agentguard.LoadConfig("agentguard.yaml")
//	exec, err := agentguard.New(ctx, cfg, myExecutor)
//	defer exec.Close()
//	res, err := exec.Run(ctx, input, actorKey)
//
// This is a thin wrapper around [safety.NewFromConfig]; both produce identical results.
// Use this package when you prefer the shorter import path.
package agentguard

import (
	"context"

	"github.com/BaSui01/agentguard/agent/safety"
	"github.com/BaSui01/agentguard/config"
	"github.com/BaSui01/agentguard/internal/ctxkeys"
)

// EnvPrefix is the environment variable prefix honoured by [LoadConfig].
const EnvPrefix = "AGENTGUARD"

// Re-export the executor surface so callers never need to import agent/safety.

// SafeExecutor wraps an inner executor with the configured checks.
type SafeExecutor = safety.SafeExecutor

// InnerExecutor is the wrapped executor.
type InnerExecutor = safety.InnerExecutor

// ExecutorFunc adapts a function to [InnerExecutor].
type ExecutorFunc = safety.ExecutorFunc

// ExecResult is what an [InnerExecutor] returns.
type ExecResult = safety.ExecResult

// Request is a run request carrying optional tool arguments and metadata.
type Request = safety.Request

// Result is the caller-facing outcome of a run.
type Result = safety.Result

// BuildOptions injects dependencies that cannot come from configuration.
type BuildOptions = safety.BuildOptions

// Config is the full configuration tree.
type Config = config.Config

// Result statuses.
const (
	StatusSuccess     = safety.StatusSuccess
	StatusFailed      = safety.StatusFailed
	StatusBlocked     = safety.StatusBlocked
	StatusRateLimited = safety.StatusRateLimited
)

// New builds a [SafeExecutor] from cfg. A nil cfg uses [config.DefaultConfig].
// At most one [BuildOptions] is honoured.
func New(ctx context.Context, cfg *Config, inner InnerExecutor, opts ...BuildOptions) (*SafeExecutor, error) {
	var bo BuildOptions
	if len(opts) > 0 {
		bo = opts[0]
	}
	return safety.NewFromConfig(ctx, cfg, inner, bo)
}

// LoadConfig loads defaults, then the YAML file at path (skipped when empty),
// then AGENTGUARD_* environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	return config.NewLoader().
		WithConfigPath(path).
		WithEnvPrefix(EnvPrefix).
		WithValidator((*config.Config).Validate).
		Load()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// WithSessionID scopes the token quota of runs made with ctx to sessionID
// instead of the actor key.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return ctxkeys.WithSessionID(ctx, sessionID)
}

// WithRunID pins the run id recorded in audit records.
func WithRunID(ctx context.Context, runID string) context.Context {
	return ctxkeys.WithRunID(ctx, runID)
}
