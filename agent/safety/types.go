package safety

import (
	"context"
	"time"

	"github.com/BaSui01/agentguard/agent/guardrails"
	"github.com/BaSui01/agentguard/types"
)

// ExecResult 内部执行器的结果
type ExecResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// InnerExecutor 被保护的执行器
// 返回 error 表示执行器本身出错；业务失败通过 ExecResult.Success=false 表达。
type InnerExecutor interface {
	Execute(ctx context.Context, input string) (*ExecResult, error)
}

// ExecutorFunc 函数适配器
type ExecutorFunc func(ctx context.Context, input string) (*ExecResult, error)

// Execute 实现 InnerExecutor
func (f ExecutorFunc) Execute(ctx context.Context, input string) (*ExecResult, error) {
	return f(ctx, input)
}

// Status 一次受保护执行的最终状态
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusBlocked     Status = "blocked"
	StatusRateLimited Status = "rate_limited"
)

// Request 一次受保护执行的请求
type Request struct {
	Input    string `json:"input"`
	ActorKey string `json:"actor_key"`
	// ToolArgs 仅写入审计记录
	ToolArgs string         `json:"tool_args,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result 受保护执行的结果
type Result struct {
	RunID       string             `json:"run_id"`
	Status      Status             `json:"status"`
	Success     bool               `json:"success"`
	Output      string             `json:"output,omitempty"`
	Error       string             `json:"error,omitempty"`
	Code        types.ErrorCode    `json:"code,omitempty"`
	RetryAfter  time.Duration      `json:"retry_after,omitempty"`
	Stage       guardrails.Stage   `json:"stage,omitempty"`
	TriggeredBy string             `json:"triggered_by,omitempty"`
	Issues      []guardrails.Issue `json:"issues,omitempty"`
	Duration    time.Duration      `json:"duration"`
}

// Err 将非成功结果转换为结构化错误，成功时返回 nil
func (r *Result) Err() error {
	if r == nil || r.Status == StatusSuccess {
		return nil
	}

	code := r.Code
	if code == "" {
		code = types.ErrInnerExecution
	}
	msg := r.Error
	if msg == "" {
		msg = string(r.Status)
	}

	err := types.NewError(code, msg)
	if r.RetryAfter > 0 {
		err = err.WithRetryAfter(r.RetryAfter)
	}
	return err
}
