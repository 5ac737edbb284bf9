// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 护栏默认值
	assert.Equal(t, 10000, cfg.Guardrails.MaxInputLength)
	assert.Equal(t, 50000, cfg.Guardrails.MaxOutputLength)
	assert.Equal(t, "report", cfg.Guardrails.SensitiveData.FailureBehavior)
	assert.True(t, cfg.Guardrails.SensitiveData.UseDefaultRules)
	assert.Equal(t, 100*time.Millisecond, cfg.Guardrails.SensitiveData.MatchTimeout)
	assert.False(t, cfg.Guardrails.Moderation.Enabled)
	assert.Equal(t, 4000, cfg.Guardrails.Moderation.MaxContentToCheck)

	// 准入默认值
	assert.Equal(t, 60, cfg.Admission.MaxRequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.Admission.Window)
	assert.Equal(t, 0, cfg.Admission.MaxTokensPerSession)

	// 审计默认值
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 10000, cfg.Audit.MaxInMemoryEntries)
	assert.Equal(t, "postgres", cfg.Audit.Database.Driver)
	assert.Equal(t, "localhost:6379", cfg.Audit.Redis.Addr)

	// 日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 10000, cfg.Guardrails.MaxInputLength)
	assert.Equal(t, "agentguard", cfg.Metrics.Namespace)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentguard.yaml")

	yamlContent := `
guardrails:
  max_input_length: 10
  keyword_filter:
    enabled: true
    blocked_keywords: ["drop table", "rm -rf"]
  sensitive_data:
    failure_behavior: block_and_report
    rules:
      - name: order_id
        pattern: 'ORD-\d{8}'
        reveal_first: 4
        reveal_last: 2
        mask_char: "#"
  domains:
    blocked: ["*.evil.com"]
  moderation:
    categories: ["violence"]
    fail_open_on_error: true

admission:
  max_requests_per_window: 2
  window: 10s
  max_tokens_per_request: 500
  max_tokens_per_session: 1000

audit:
  max_in_memory_entries: 50
  max_content_length: 20
  log_input: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	g := cfg.Guardrails
	assert.Equal(t, 10, g.MaxInputLength)
	assert.Equal(t, []string{"drop table", "rm -rf"}, g.KeywordFilter.BlockedKeywords)
	assert.Equal(t, "block_and_report", g.SensitiveData.FailureBehavior)
	require.Len(t, g.SensitiveData.Rules, 1)
	assert.Equal(t, "#", g.SensitiveData.Rules[0].MaskChar)
	assert.Equal(t, 4, g.SensitiveData.Rules[0].RevealFirst)
	assert.Equal(t, []string{"*.evil.com"}, g.Domains.Blocked)
	assert.True(t, g.Moderation.FailOpenOnError)

	assert.Equal(t, 2, cfg.Admission.MaxRequestsPerWindow)
	assert.Equal(t, 10*time.Second, cfg.Admission.Window)
	assert.Equal(t, 500, cfg.Admission.MaxTokensPerRequest)

	assert.Equal(t, 50, cfg.Audit.MaxInMemoryEntries)
	assert.False(t, cfg.Audit.LogInput)
	// 未出现在文件中的字段保留默认值
	assert.True(t, cfg.Audit.LogOutput)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTGUARD_ADMISSION_MAX_REQUESTS_PER_WINDOW", "5")
	t.Setenv("AGENTGUARD_ADMISSION_WINDOW", "30s")
	t.Setenv("AGENTGUARD_GUARDRAILS_KEYWORD_FILTER_BLOCKED_KEYWORDS", "foo, bar,,baz")
	t.Setenv("AGENTGUARD_GUARDRAILS_MODERATION_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("AGENTGUARD_AUDIT_LOG_OUTPUT", "false")
	t.Setenv("AGENTGUARD_AUDIT_REDIS_MAX_ENTRIES", "42")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Admission.MaxRequestsPerWindow)
	assert.Equal(t, 30*time.Second, cfg.Admission.Window)
	assert.Equal(t, []string{"foo", "bar", "baz"}, cfg.Guardrails.KeywordFilter.BlockedKeywords)
	assert.Equal(t, 2.5, cfg.Guardrails.Moderation.RequestsPerSecond)
	assert.False(t, cfg.Audit.LogOutput)
	assert.Equal(t, int64(42), cfg.Audit.Redis.MaxEntries)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentguard.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("admission:\n  max_requests_per_window: 3\n"), 0644))

	t.Setenv("AGENTGUARD_ADMISSION_MAX_REQUESTS_PER_WINDOW", "9")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Admission.MaxRequestsPerWindow)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYGUARD_LOG_LEVEL", "debug")

	cfg, err := NewLoader().WithEnvPrefix("MYGUARD").Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTGUARD_ADMISSION_WINDOW", "ten seconds")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTGUARD_ADMISSION_WINDOW")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("AGENTGUARD_ADMISSION_MAX_REQUESTS_PER_WINDOW", "-1")

	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/agentguard.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Admission, cfg.Admission)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("guardrails: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "negative input length",
			mutate:  func(c *Config) { c.Guardrails.MaxInputLength = -1 },
			wantErr: "max_input_length",
		},
		{
			name:    "invalid failure behavior",
			mutate:  func(c *Config) { c.Guardrails.SensitiveData.FailureBehavior = "explode" },
			wantErr: "failure_behavior",
		},
		{
			name: "multi-rune mask char",
			mutate: func(c *Config) {
				c.Guardrails.SensitiveData.Rules = []SensitiveRuleConfig{{Name: "x", Pattern: "x", MaskChar: "**"}}
			},
			wantErr: "mask_char",
		},
		{
			name:    "negative token limit",
			mutate:  func(c *Config) { c.Admission.MaxTokensPerSession = -5 },
			wantErr: "admission limits",
		},
		{
			name: "request limit without window",
			mutate: func(c *Config) {
				c.Admission.MaxRequestsPerWindow = 1
				c.Admission.Window = 0
			},
			wantErr: "window",
		},
		{
			name:    "negative content length",
			mutate:  func(c *Config) { c.Audit.MaxContentLength = -1 },
			wantErr: "max_content_length",
		},
		{
			name: "unsupported database driver",
			mutate: func(c *Config) {
				c.Audit.Database.Enabled = true
				c.Audit.Database.Driver = "oracle"
			},
			wantErr: "unsupported audit database driver",
		},
		{
			name:    "unsupported moderation provider",
			mutate:  func(c *Config) { c.Guardrails.Moderation.Provider = "magic" },
			wantErr: "unsupported moderation provider",
		},
		{
			name: "versioned migrations on sqlite",
			mutate: func(c *Config) {
				c.Audit.Database.Enabled = true
				c.Audit.Database.Driver = "sqlite"
				c.Audit.Database.Migrations = "versioned"
			},
			wantErr: "not available for sqlite",
		},
		{
			name: "unknown migrations mode",
			mutate: func(c *Config) {
				c.Audit.Database.Enabled = true
				c.Audit.Database.Migrations = "manual"
			},
			wantErr: "invalid audit.database.migrations",
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "telemetry.sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg:  DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "audit", SSLMode: "disable"},
			want: "host=db port=5432 user=u password=p dbname=audit sslmode=disable",
		},
		{
			name: "mysql",
			cfg:  DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "audit"},
			want: "u:p@tcp(db:3306)/audit?parseTime=true",
		},
		{
			name: "sqlite",
			cfg:  DatabaseConfig{Driver: "sqlite", Name: "file::memory:"},
			want: "file::memory:",
		},
		{
			name: "unknown",
			cfg:  DatabaseConfig{Driver: "oracle"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentguard.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("audit:\n  max_content_length: -3\n"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
