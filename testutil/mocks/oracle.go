// MockOracle 的审核服务测试模拟实现。
//
// 按顺序返回预置回复，用尽后重复最后一条；支持错误注入与调用记录。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentguard/agent/guardrails"
	"github.com/BaSui01/agentguard/testutil"
)

// MockOracle 是 guardrails.ModerationOracle 的模拟实现
type MockOracle struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

// NewMockOracle 创建按顺序返回 replies 的 MockOracle
func NewMockOracle(replies ...string) *MockOracle {
	return &MockOracle{replies: replies}
}

// Allowing 返回始终放行的 MockOracle
func Allowing() *MockOracle {
	return NewMockOracle(`{"allowed": true, "categories": [], "reason": ""}`)
}

// Denying 返回以给定类别拒绝的 MockOracle
func Denying(reason string, categories ...string) *MockOracle {
	return NewMockOracle(MustVerdict(false, reason, categories...))
}

// MustVerdict 构造 JSON 审核结论
func MustVerdict(allowed bool, reason string, categories ...string) string {
	if categories == nil {
		categories = []string{}
	}
	return testutil.MustJSON(map[string]any{
		"allowed":    allowed,
		"categories": categories,
		"reason":     reason,
	})
}

// WithError 设置返回错误
func (m *MockOracle) WithError(err error) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Classify 实现 guardrails.ModerationOracle
func (m *MockOracle) Classify(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

// Prompts 返回收到的提示词
func (m *MockOracle) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

var _ guardrails.ModerationOracle = (*MockOracle)(nil)
