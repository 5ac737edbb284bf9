// Package fixtures 提供测试配置与样例文本。
package fixtures

import (
	"time"

	"github.com/BaSui01/agentguard/config"
)

// 样例文本
const (
	// CNMobile 会被默认敏感规则脱敏为 138****5678
	CNMobile       = "13812345678"
	CNMobileMasked = "138****5678"
	Email          = "alice@example.com"
	APIKey         = "sk-abcdefghijklmnopqrstuvwxyz"
)

// Config 返回仅含内存组件的配置：关闭所有持久化 sink 与指标，
// moderation 未配置 provider。
func Config() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Audit.File.Enabled = false
	cfg.Audit.Database.Enabled = false
	cfg.Audit.Redis.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Guardrails.Moderation.Enabled = false
	cfg.Admission.SweepInterval = time.Hour
	return cfg
}

// StrictConfig 返回窗口内只允许一次请求、输入最长 10 字符的配置
func StrictConfig() *config.Config {
	cfg := Config()
	cfg.Admission.MaxRequestsPerWindow = 1
	cfg.Admission.Window = time.Minute
	cfg.Guardrails.MaxInputLength = 10
	return cfg
}
