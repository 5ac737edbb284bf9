package guardrails

import (
	"context"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// FailureBehavior 敏感数据命中后的处理方式
type FailureBehavior string

const (
	// FailureReport 仅上报，不拦截
	FailureReport FailureBehavior = "report"
	// FailureBlockAndReport 上报并拦截
	FailureBlockAndReport FailureBehavior = "block_and_report"
)

// SensitiveRule 敏感数据规则
type SensitiveRule struct {
	Name        string
	Pattern     string
	RevealFirst int
	RevealLast  int
	MaskChar    rune
}

// DefaultSensitiveRules 返回内置规则集
func DefaultSensitiveRules() []SensitiveRule {
	return []SensitiveRule{
		{Name: "cn_mobile", Pattern: `(?<!\d)1[3-9]\d{9}(?!\d)`, RevealFirst: 3, RevealLast: 4, MaskChar: '*'},
		{Name: "email", Pattern: `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`, RevealFirst: 1, RevealLast: 0, MaskChar: '*'},
		{Name: "cn_id_card", Pattern: `(?<!\d)\d{17}[\dXx](?!\d)`, RevealFirst: 6, RevealLast: 4, MaskChar: '*'},
		{Name: "bank_card", Pattern: `(?<!\d)\d{16,19}(?!\d)`, RevealFirst: 4, RevealLast: 4, MaskChar: '*'},
		{Name: "api_key", Pattern: `\bsk-[A-Za-z0-9_\-]{16,}`, RevealFirst: 3, RevealLast: 4, MaskChar: '*'},
	}
}

// SensitiveDataConfig 敏感数据校验器配置
type SensitiveDataConfig struct {
	Rules           []SensitiveRule
	FailureBehavior FailureBehavior
	AutoMask        bool
	MatchTimeout    time.Duration
}

// DefaultSensitiveDataConfig 返回默认配置
func DefaultSensitiveDataConfig() *SensitiveDataConfig {
	return &SensitiveDataConfig{
		Rules:           DefaultSensitiveRules(),
		FailureBehavior: FailureReport,
		AutoMask:        true,
		MatchTimeout:    DefaultMatchTimeout,
	}
}

type compiledRule struct {
	SensitiveRule
	re *regexp2.Regexp
}

// SensitiveDataGuardrail 敏感数据校验器
type SensitiveDataGuardrail struct {
	rules    []compiledRule
	behavior FailureBehavior
	autoMask bool
}

// NewSensitiveDataGuardrail 创建敏感数据校验器，规则编译失败时返回错误
func NewSensitiveDataGuardrail(config *SensitiveDataConfig) (*SensitiveDataGuardrail, error) {
	if config == nil {
		config = DefaultSensitiveDataConfig()
	}

	g := &SensitiveDataGuardrail{
		behavior: config.FailureBehavior,
		autoMask: config.AutoMask,
	}
	if g.behavior == "" {
		g.behavior = FailureReport
	}

	for _, rule := range config.Rules {
		re, err := compileBounded(rule.Pattern, regexp2.None, config.MatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("sensitive rule %s: %w", rule.Name, err)
		}
		if rule.MaskChar == 0 {
			rule.MaskChar = DefaultMaskChar
		}
		g.rules = append(g.rules, compiledRule{SensitiveRule: rule, re: re})
	}
	return g, nil
}

// Name 返回校验器名称
func (g *SensitiveDataGuardrail) Name() string { return "sensitive_data" }

// Description 返回描述
func (g *SensitiveDataGuardrail) Description() string {
	return fmt.Sprintf("detects sensitive data with %d rules (%s)", len(g.rules), g.behavior)
}

// Enabled 存在规则时启用
func (g *SensitiveDataGuardrail) Enabled() bool { return len(g.rules) > 0 }

// Check 扫描并按需脱敏
// 规则按顺序作用于逐步脱敏后的文本；脱敏不改变 rune 长度，位置始终对应原文。
// 已被前一条规则脱敏的片段不会被后续规则重复上报。
func (g *SensitiveDataGuardrail) Check(ctx context.Context, content string) (*Outcome, error) {
	working := content
	var issues []Issue

	for _, rule := range g.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r := rule
		masked, err := r.re.ReplaceFunc(working, func(m regexp2.Match) string {
			value := m.String()
			out := MaskValue(value, r.RevealFirst, r.RevealLast, r.MaskChar)
			issues = append(issues, Issue{
				Type:           IssueTypeSensitiveData,
				Description:    fmt.Sprintf("%s detected", r.Name),
				Position:       m.Index,
				Length:         m.Length,
				MatchedContent: out,
				Severity:       SeverityWarning,
			})
			return out
		}, -1, -1)
		if err != nil {
			return regexTimeoutOutcome(g.Name(), r.Name, err), nil
		}
		working = masked
	}

	if len(issues) == 0 {
		return PassUnchanged(), nil
	}
	if g.behavior == FailureBlockAndReport {
		return Fail(g.Name(), fmt.Sprintf("sensitive data detected (%d match(es))", len(issues)), issues...), nil
	}
	if g.autoMask {
		return Pass(working, issues...), nil
	}
	return PassUnchanged(issues...), nil
}

// Mask 按全部规则脱敏并返回结果，不受失败策略与 AutoMask 影响
// 供审计等旁路使用；匹配超时返回错误，调用方应丢弃内容。
func (g *SensitiveDataGuardrail) Mask(ctx context.Context, content string) (string, error) {
	working := content
	for _, rule := range g.rules {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		r := rule
		masked, err := r.re.ReplaceFunc(working, func(m regexp2.Match) string {
			return MaskValue(m.String(), r.RevealFirst, r.RevealLast, r.MaskChar)
		}, -1, -1)
		if err != nil {
			return "", fmt.Errorf("sensitive rule %s: %w", r.Name, err)
		}
		working = masked
	}
	return working, nil
}
