package guardrails

import (
	"fmt"

	"github.com/BaSui01/agentguard/config"
	"go.uber.org/zap"
)

// NewPipelineFromConfig 按配置构建管道
//
// 输入链：长度 → 关键词 → 敏感数据 → 域名 → 内容审核
// 输出链：长度 → 敏感数据 → 域名 → 内容审核
//
// oracle 为 nil 时即使开启审核也不注册内容审核校验器。
func NewPipelineFromConfig(cfg config.GuardrailsConfig, oracle ModerationOracle, logger *zap.Logger) (*Pipeline, error) {
	p := NewPipeline(logger)

	p.AddInput(NewMaxLengthValidator(cfg.MaxInputLength))
	p.AddOutput(NewMaxLengthValidator(cfg.MaxOutputLength))

	if cfg.KeywordFilter.Enabled {
		if kf := NewKeywordFilter(cfg.KeywordFilter.BlockedKeywords); kf.Enabled() {
			p.AddInput(kf)
		}
	}

	if cfg.SensitiveData.Enabled {
		sd, err := NewSensitiveDataGuardrail(sensitiveConfigFrom(cfg.SensitiveData))
		if err != nil {
			return nil, fmt.Errorf("build sensitive data guardrail: %w", err)
		}
		if sd.Enabled() {
			p.AddInput(sd)
			p.AddOutput(sd)
		}
	}

	if cfg.Domains.Enabled {
		dl := NewDomainAllowList(cfg.Domains.Allowed, cfg.Domains.Blocked, cfg.SensitiveData.MatchTimeout)
		if dl.Enabled() {
			p.AddInput(dl)
			p.AddOutput(dl)
		}
	}

	if cfg.Moderation.Enabled && oracle != nil {
		mod := NewContentModerator(oracle, &ContentModeratorConfig{
			Categories:        cfg.Moderation.Categories,
			MaxContentToCheck: cfg.Moderation.MaxContentToCheck,
			FailOpenOnError:   cfg.Moderation.FailOpenOnError,
			RequestsPerSecond: cfg.Moderation.RequestsPerSecond,
			Burst:             cfg.Moderation.Burst,
		}, logger)
		p.AddInput(mod)
		p.AddOutput(mod)
	}

	return p, nil
}

func sensitiveConfigFrom(c config.SensitiveDataConfig) *SensitiveDataConfig {
	out := &SensitiveDataConfig{
		FailureBehavior: FailureBehavior(c.FailureBehavior),
		AutoMask:        c.AutoMask,
		MatchTimeout:    c.MatchTimeout,
	}
	if c.UseDefaultRules {
		out.Rules = DefaultSensitiveRules()
	}
	for _, r := range c.Rules {
		mask := DefaultMaskChar
		if rs := []rune(r.MaskChar); len(rs) > 0 {
			mask = rs[0]
		}
		out.Rules = append(out.Rules, SensitiveRule{
			Name:        r.Name,
			Pattern:     r.Pattern,
			RevealFirst: r.RevealFirst,
			RevealLast:  r.RevealLast,
			MaskChar:    mask,
		})
	}
	return out
}
