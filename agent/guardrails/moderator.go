package guardrails

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/agentguard/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ModerationOracle 外部内容分类服务
// 接收分类提示词，返回原始文本回复。
type ModerationOracle interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// ModerationOracleFunc 函数适配器
type ModerationOracleFunc func(ctx context.Context, prompt string) (string, error)

// Classify 实现 ModerationOracle
func (f ModerationOracleFunc) Classify(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ContentModeratorConfig 内容审核校验器配置
type ContentModeratorConfig struct {
	Categories        []string
	MaxContentToCheck int
	FailOpenOnError   bool
	// RequestsPerSecond 审核调用节流，0 表示不限速
	RequestsPerSecond float64
	Burst             int
}

// DefaultContentModeratorConfig 返回默认配置
func DefaultContentModeratorConfig() *ContentModeratorConfig {
	return &ContentModeratorConfig{
		Categories:        []string{"hate", "harassment", "violence", "self_harm", "sexual", "illegal_activity"},
		MaxContentToCheck: 4000,
		FailOpenOnError:   false,
	}
}

// moderationVerdict 审核服务的结构化回复
type moderationVerdict struct {
	Allowed    *bool    `json:"allowed"`
	Categories []string `json:"categories"`
	Reason     string   `json:"reason"`
}

// ContentModerator 基于外部审核服务的内容校验器
type ContentModerator struct {
	oracle     ModerationOracle
	categories []string
	maxContent int
	failOpen   bool
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewContentModerator 创建内容审核校验器
func NewContentModerator(oracle ModerationOracle, config *ContentModeratorConfig, logger *zap.Logger) *ContentModerator {
	if config == nil {
		config = DefaultContentModeratorConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &ContentModerator{
		oracle:     oracle,
		categories: append([]string(nil), config.Categories...),
		maxContent: config.MaxContentToCheck,
		failOpen:   config.FailOpenOnError,
		logger:     logger.With(zap.String("component", "content_moderator")),
	}
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return m
}

// Name 返回校验器名称
func (m *ContentModerator) Name() string { return "content_moderator" }

// Description 返回描述
func (m *ContentModerator) Description() string {
	return "classifies content against moderation categories: " + strings.Join(m.categories, ", ")
}

// Enabled 配置了审核服务时启用
func (m *ContentModerator) Enabled() bool { return m.oracle != nil }

// Check 调用审核服务并解析结论
func (m *ContentModerator) Check(ctx context.Context, content string) (*Outcome, error) {
	prompt := m.buildPrompt(truncateRunes(content, m.maxContent, "..."))

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return m.unavailable(fmt.Errorf("moderation pacing: %w", err)), nil
		}
	}

	reply, err := m.oracle.Classify(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if types.IsCancelled(err) {
			return nil, err
		}
		return m.unavailable(err), nil
	}

	verdict, ok := parseVerdict(reply)
	if !ok {
		if explicitDeny(reply) {
			return Fail(m.Name(), "content rejected by moderation", Issue{
				Type:        IssueTypeModerationViolation,
				Description: "moderation reply signalled a violation: unspecified",
				Severity:    SeverityError,
			}), nil
		}
		m.logger.Warn("malformed moderation reply, allowing", zap.Int("reply_length", len(reply)))
		return PassUnchanged(Issue{
			Type:        IssueTypeMalformedResponse,
			Description: "moderation reply could not be parsed; content allowed",
			Severity:    SeverityInfo,
		}), nil
	}

	if *verdict.Allowed {
		return PassUnchanged(), nil
	}

	reason := verdict.Reason
	if reason == "" {
		reason = "content rejected by moderation"
	}
	violated := verdict.Categories
	if len(violated) == 0 {
		violated = []string{"unspecified"}
	}
	issues := make([]Issue, 0, len(violated))
	for _, c := range violated {
		issues = append(issues, Issue{
			Type:        IssueTypeModerationViolation,
			Description: fmt.Sprintf("%s: %s", c, reason),
			Severity:    SeverityError,
		})
	}
	return Fail(m.Name(), reason, issues...), nil
}

// unavailable 审核服务故障时按 fail-open / fail-closed 策略处理
func (m *ContentModerator) unavailable(err error) *Outcome {
	m.logger.Warn("moderation service unavailable", zap.Bool("fail_open", m.failOpen), zap.Error(err))
	if m.failOpen {
		return PassUnchanged(Issue{
			Type:        IssueTypeModerationError,
			Description: "moderation service unavailable; content allowed",
			Severity:    SeverityWarning,
		})
	}
	return Fail(m.Name(), "moderation service unavailable", Issue{
		Type:        IssueTypeModerationError,
		Description: "moderation service unavailable",
		Severity:    SeverityError,
	})
}

func (m *ContentModerator) buildPrompt(content string) string {
	var b strings.Builder
	b.WriteString("You are a content moderation classifier.\n")
	b.WriteString("Decide whether the content below violates any of these categories: ")
	b.WriteString(strings.Join(m.categories, ", "))
	b.WriteString(".\n")
	b.WriteString(`Respond with JSON only: {"allowed": true|false, "categories": ["<violated category>"], "reason": "<short reason>"}`)
	b.WriteString("\n\nContent:\n\"\"\"\n")
	b.WriteString(content)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

// parseVerdict 截取第一个 { 到最后一个 } 之间的 JSON；缺少 allowed 字段视为无法解析
func parseVerdict(reply string) (*moderationVerdict, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var v moderationVerdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return nil, false
	}
	if v.Allowed == nil {
		return nil, false
	}
	return &v, true
}

// explicitDeny 解析失败时的字面扫描
func explicitDeny(reply string) bool {
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "not allowed") {
		return true
	}
	compact := strings.Join(strings.Fields(lower), "")
	return strings.Contains(compact, `"allowed":false`)
}
