package guardrails

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// MaxLengthValidator 长度校验器，按 rune 计数
type MaxLengthValidator struct {
	name  string
	limit int
}

// NewMaxLengthValidator 创建长度校验器，limit <= 0 时校验器不启用
func NewMaxLengthValidator(limit int) *MaxLengthValidator {
	return &MaxLengthValidator{name: "max_length", limit: limit}
}

// Name 返回校验器名称
func (v *MaxLengthValidator) Name() string { return v.name }

// Description 返回描述
func (v *MaxLengthValidator) Description() string {
	return fmt.Sprintf("rejects content longer than %d characters", v.limit)
}

// Enabled 是否启用
func (v *MaxLengthValidator) Enabled() bool { return v.limit > 0 }

// Limit 返回长度上限
func (v *MaxLengthValidator) Limit() int { return v.limit }

// Check 执行长度校验
func (v *MaxLengthValidator) Check(_ context.Context, content string) (*Outcome, error) {
	n := utf8.RuneCountInString(content)
	if n <= v.limit {
		return Pass(content), nil
	}
	return Fail(v.name, fmt.Sprintf("content length %d exceeds limit %d", n, v.limit), Issue{
		Type:        IssueTypeLengthExceeded,
		Description: fmt.Sprintf("content length %d exceeds limit %d by %d", n, v.limit, n-v.limit),
		Severity:    SeverityError,
	}), nil
}
