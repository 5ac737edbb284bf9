// MockExecutor 的内部执行器测试模拟实现。
//
// 支持回显、固定输出、业务失败、错误注入、panic 与阻塞直至取消等场景。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentguard/agent/safety"
)

// --- MockExecutor 结构 ---

// MockExecutor 是 safety.InnerExecutor 的模拟实现
type MockExecutor struct {
	mu sync.Mutex

	// 响应配置
	echo    bool
	output  string
	failure string
	err     error
	panicV  any
	block   bool
	fn      func(ctx context.Context, input string) (*safety.ExecResult, error)

	// 调用记录
	inputs []string
}

// --- 构造函数和 Builder 方法 ---

// NewMockExecutor 创建默认回显输入的 MockExecutor
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{echo: true}
}

// WithEcho 原样返回输入
func (m *MockExecutor) WithEcho() *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = true
	return m
}

// WithOutput 返回固定输出
func (m *MockExecutor) WithOutput(output string) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = false
	m.output = output
	return m
}

// WithFailure 返回 Success=false 的业务失败
func (m *MockExecutor) WithFailure(msg string) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = msg
	return m
}

// WithError 返回执行器错误
func (m *MockExecutor) WithError(err error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithPanic 执行时 panic
func (m *MockExecutor) WithPanic(v any) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicV = v
	return m
}

// WithBlockUntilCancelled 阻塞直至 ctx 结束并返回 ctx 错误
func (m *MockExecutor) WithBlockUntilCancelled() *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = true
	return m
}

// WithFunc 使用自定义执行逻辑
func (m *MockExecutor) WithFunc(fn func(ctx context.Context, input string) (*safety.ExecResult, error)) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// --- safety.InnerExecutor 实现 ---

// Execute 实现 safety.InnerExecutor
func (m *MockExecutor) Execute(ctx context.Context, input string) (*safety.ExecResult, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	echo, output, failure, err, panicV, block, fn := m.echo, m.output, m.failure, m.err, m.panicV, m.block, m.fn
	m.mu.Unlock()

	if panicV != nil {
		panic(panicV)
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fn != nil {
		return fn(ctx, input)
	}
	if err != nil {
		return nil, err
	}
	if failure != "" {
		return &safety.ExecResult{Success: false, Output: output, Error: failure}, nil
	}
	if echo {
		output = input
	}
	return &safety.ExecResult{Success: true, Output: output}, nil
}

// --- 调用记录 ---

// Calls 返回调用次数
func (m *MockExecutor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// Inputs 返回每次调用收到的输入
func (m *MockExecutor) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputs...)
}

var _ safety.InnerExecutor = (*MockExecutor)(nil)
