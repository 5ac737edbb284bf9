package guardrails

import (
	"context"
)

// Severity 问题严重级别，仅作为描述性元数据，不影响通过与否的判定
type Severity string

// Severity 常量定义
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Issue 类型常量
const (
	IssueTypeLengthExceeded      = "length_exceeded"
	IssueTypeBlockedKeyword      = "blocked_keyword"
	IssueTypeSensitiveData       = "sensitive_data"
	IssueTypeRegexTimeout        = "regex_timeout"
	IssueTypeModerationViolation = "moderation_violation"
	IssueTypeModerationError     = "moderation_unavailable"
	IssueTypeMalformedResponse   = "malformed_moderation_response"
	IssueTypeBlockedDomain       = "blocked_domain"
	IssueTypeUnlistedDomain      = "unlisted_domain"
	IssueTypeValidatorError      = "validator_error"
)

// Issue 单条校验发现
// Position 与 Length 以 rune 计；Length 为 0 表示无定位信息。
// MatchedContent 已经过脱敏，可直接写入日志与审计。
type Issue struct {
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	Position       int      `json:"position,omitempty"`
	Length         int      `json:"length,omitempty"`
	MatchedContent string   `json:"matched_content,omitempty"`
	Severity       Severity `json:"severity"`
}

// Outcome 单个校验器或整条管道的校验结论
// Passed 为 false 时 ProcessedContent 会被管道忽略。
// ProcessedContent 为 nil 表示内容未被修改。
type Outcome struct {
	Passed           bool    `json:"passed"`
	ProcessedContent *string `json:"processed_content,omitempty"`
	Issues           []Issue `json:"issues,omitempty"`
	TriggeredBy      string  `json:"triggered_by,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// Pass 创建通过结果并携带处理后的内容
func Pass(content string, issues ...Issue) *Outcome {
	return &Outcome{
		Passed:           true,
		ProcessedContent: &content,
		Issues:           issues,
	}
}

// PassUnchanged 创建不修改内容的通过结果
func PassUnchanged(issues ...Issue) *Outcome {
	return &Outcome{
		Passed: true,
		Issues: issues,
	}
}

// Fail 创建失败结果
func Fail(triggeredBy, message string, issues ...Issue) *Outcome {
	return &Outcome{
		Passed:      false,
		Issues:      issues,
		TriggeredBy: triggeredBy,
		Message:     message,
	}
}

// Content 返回处理后的内容，未修改时返回 fallback
func (o *Outcome) Content(fallback string) string {
	if o == nil || o.ProcessedContent == nil {
		return fallback
	}
	return *o.ProcessedContent
}

// Validator 校验器接口
// Check 返回的 error 仅用于传播取消；其它错误由管道转换为失败结果。
type Validator interface {
	// Name 返回校验器名称，用作 TriggeredBy
	Name() string
	// Description 返回校验器的用途描述
	Description() string
	// Enabled 返回校验器是否启用，未启用的校验器被管道跳过
	Enabled() bool
	// Check 校验内容
	Check(ctx context.Context, content string) (*Outcome, error)
}
