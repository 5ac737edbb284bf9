// =============================================================================
// 📦 agentguard 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentguard.yaml").
//	    WithEnvPrefix("AGENTGUARD").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 agentguard 的完整配置结构
type Config struct {
	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Guardrails 护栏配置
	Guardrails GuardrailsConfig `yaml:"guardrails" env:"GUARDRAILS"`

	// Admission 准入控制配置
	Admission AdmissionConfig `yaml:"admission" env:"ADMISSION"`

	// Audit 审计配置
	Audit AuditConfig `yaml:"audit" env:"AUDIT"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// =============================================================================
// 🛡️ 护栏配置
// =============================================================================

// GuardrailsConfig 护栏配置
type GuardrailsConfig struct {
	// 输入最大长度（字符数），0 表示不限制
	MaxInputLength int `yaml:"max_input_length" env:"MAX_INPUT_LENGTH"`
	// 输出最大长度（字符数），0 表示不限制
	MaxOutputLength int `yaml:"max_output_length" env:"MAX_OUTPUT_LENGTH"`

	KeywordFilter KeywordFilterConfig `yaml:"keyword_filter" env:"KEYWORD_FILTER"`
	SensitiveData SensitiveDataConfig `yaml:"sensitive_data" env:"SENSITIVE_DATA"`
	Domains       DomainConfig        `yaml:"domains" env:"DOMAINS"`
	Moderation    ModerationConfig    `yaml:"moderation" env:"MODERATION"`
}

// KeywordFilterConfig 关键词过滤配置
type KeywordFilterConfig struct {
	Enabled         bool     `yaml:"enabled" env:"ENABLED"`
	BlockedKeywords []string `yaml:"blocked_keywords" env:"BLOCKED_KEYWORDS"`
}

// SensitiveDataConfig 敏感数据检测配置
type SensitiveDataConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 失败处理: report, block_and_report
	FailureBehavior string `yaml:"failure_behavior" env:"FAILURE_BEHAVIOR"`
	// 自动脱敏（仅 report 模式生效）
	AutoMask bool `yaml:"auto_mask" env:"AUTO_MASK"`
	// 是否附加内置规则集
	UseDefaultRules bool `yaml:"use_default_rules" env:"USE_DEFAULT_RULES"`
	// 单次正则匹配超时
	MatchTimeout time.Duration `yaml:"match_timeout" env:"MATCH_TIMEOUT"`
	// 自定义规则（仅支持 YAML）
	Rules []SensitiveRuleConfig `yaml:"rules" env:"-"`
}

// SensitiveRuleConfig 单条敏感数据规则
type SensitiveRuleConfig struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	RevealFirst int    `yaml:"reveal_first"`
	RevealLast  int    `yaml:"reveal_last"`
	MaskChar    string `yaml:"mask_char"`
}

// DomainConfig 域名白名单/黑名单配置
type DomainConfig struct {
	Enabled bool     `yaml:"enabled" env:"ENABLED"`
	Allowed []string `yaml:"allowed" env:"ALLOWED"`
	Blocked []string `yaml:"blocked" env:"BLOCKED"`
}

// ModerationConfig 内容审核配置
type ModerationConfig struct {
	Enabled           bool     `yaml:"enabled" env:"ENABLED"`
	Categories        []string `yaml:"categories" env:"CATEGORIES"`
	MaxContentToCheck int      `yaml:"max_content_to_check" env:"MAX_CONTENT_TO_CHECK"`
	FailOpenOnError   bool     `yaml:"fail_open_on_error" env:"FAIL_OPEN_ON_ERROR"`
	// 审核服务调用节流，0 表示不限速
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" env:"BURST"`

	// Provider 审核服务适配器: openai_moderation, chat；为空时需由调用方注入 Oracle
	Provider string        `yaml:"provider" env:"PROVIDER"`
	BaseURL  string        `yaml:"base_url" env:"BASE_URL"`
	APIKey   string        `yaml:"api_key" env:"API_KEY"`
	Model    string        `yaml:"model" env:"MODEL"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
	TLS      TLSConfig     `yaml:"tls" env:"TLS"`
}

// =============================================================================
// 🚦 准入控制配置
// =============================================================================

// AdmissionConfig 准入控制配置，任一限制为 0 表示关闭该项检查
type AdmissionConfig struct {
	Enabled              bool          `yaml:"enabled" env:"ENABLED"`
	MaxRequestsPerWindow int           `yaml:"max_requests_per_window" env:"MAX_REQUESTS_PER_WINDOW"`
	Window               time.Duration `yaml:"window" env:"WINDOW"`
	MaxTokensPerRequest  int           `yaml:"max_tokens_per_request" env:"MAX_TOKENS_PER_REQUEST"`
	MaxTokensPerSession  int           `yaml:"max_tokens_per_session" env:"MAX_TOKENS_PER_SESSION"`
	// 空闲状态回收
	IdleTTL       time.Duration `yaml:"idle_ttl" env:"IDLE_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	// 用于 Token 配额计数的模型名，为空时使用估算器
	TokenizerModel string `yaml:"tokenizer_model" env:"TOKENIZER_MODEL"`
}

// =============================================================================
// 📝 审计配置
// =============================================================================

// AuditConfig 审计配置
type AuditConfig struct {
	Enabled            bool `yaml:"enabled" env:"ENABLED"`
	MaxInMemoryEntries int  `yaml:"max_in_memory_entries" env:"MAX_IN_MEMORY_ENTRIES"`
	// 单字段最大保留长度，0 表示不截断
	MaxContentLength int  `yaml:"max_content_length" env:"MAX_CONTENT_LENGTH"`
	LogInput         bool `yaml:"log_input" env:"LOG_INPUT"`
	LogOutput        bool `yaml:"log_output" env:"LOG_OUTPUT"`
	LogToolArgs      bool `yaml:"log_tool_args" env:"LOG_TOOL_ARGS"`
	// 异步落盘队列长度
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`

	File     FileSinkConfig  `yaml:"file" env:"FILE"`
	Database DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis    RedisSinkConfig `yaml:"redis" env:"REDIS"`
}

// FileSinkConfig JSONL 文件落盘配置
type FileSinkConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Dir         string `yaml:"dir" env:"DIR"`
	MaxFileSize int64  `yaml:"max_file_size" env:"MAX_FILE_SIZE"`
	RotateDaily bool   `yaml:"rotate_daily" env:"ROTATE_DAILY"`
}

// DatabaseConfig 数据库落盘配置
type DatabaseConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 驱动类型: postgres, mysql, sqlite
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`

	// Migrations 表结构维护方式: auto（GORM AutoMigrate）, versioned（内嵌 SQL 迁移，仅 postgres/mysql）
	Migrations string `yaml:"migrations" env:"MIGRATIONS"`
}

// RedisSinkConfig Redis 落盘配置
type RedisSinkConfig struct {
	Enabled    bool   `yaml:"enabled" env:"ENABLED"`
	Addr       string `yaml:"addr" env:"ADDR"`
	Password   string `yaml:"password" env:"PASSWORD"`
	DB         int    `yaml:"db" env:"DB"`
	KeyPrefix  string `yaml:"key_prefix" env:"KEY_PREFIX"`
	MaxEntries int64  `yaml:"max_entries" env:"MAX_ENTRIES"`

	TLS TLSConfig `yaml:"tls" env:"TLS"`
}

// TLSConfig 客户端 TLS 配置
type TLSConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// CAFile 额外信任的 PEM 格式 CA 证书
	CAFile     string `yaml:"ca_file" env:"CA_FILE"`
	ServerName string `yaml:"server_name" env:"SERVER_NAME"`
	// InsecureSkipVerify 仅用于测试环境
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// Addr 命令行模式下 /metrics 的监听地址，为空时不启动
	Addr string `yaml:"addr" env:"ADDR"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTGUARD",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体（time.Duration 除外），递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片，空项会被丢弃
		if field.Type().Elem().Kind() == reflect.String {
			parts := make([]string, 0)
			for _, p := range strings.Split(value, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).WithValidator((*Config).Validate).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	g := c.Guardrails
	if g.MaxInputLength < 0 || g.MaxOutputLength < 0 {
		errs = append(errs, "max_input_length and max_output_length must not be negative")
	}
	switch g.SensitiveData.FailureBehavior {
	case "", "report", "block_and_report":
	default:
		errs = append(errs, fmt.Sprintf("invalid sensitive_data.failure_behavior %q", g.SensitiveData.FailureBehavior))
	}
	for _, r := range g.SensitiveData.Rules {
		if r.Pattern == "" {
			errs = append(errs, fmt.Sprintf("sensitive rule %q has empty pattern", r.Name))
		}
		if r.RevealFirst < 0 || r.RevealLast < 0 {
			errs = append(errs, fmt.Sprintf("sensitive rule %q has negative reveal counts", r.Name))
		}
		if len([]rune(r.MaskChar)) > 1 {
			errs = append(errs, fmt.Sprintf("sensitive rule %q mask_char must be a single character", r.Name))
		}
	}
	if g.Moderation.MaxContentToCheck < 0 {
		errs = append(errs, "moderation.max_content_to_check must not be negative")
	}
	if g.Moderation.RequestsPerSecond < 0 || g.Moderation.Burst < 0 {
		errs = append(errs, "moderation pacing must not be negative")
	}
	switch g.Moderation.Provider {
	case "", "openai_moderation", "chat":
	default:
		errs = append(errs, fmt.Sprintf("unsupported moderation provider %q", g.Moderation.Provider))
	}

	a := c.Admission
	if a.MaxRequestsPerWindow < 0 || a.MaxTokensPerRequest < 0 || a.MaxTokensPerSession < 0 {
		errs = append(errs, "admission limits must not be negative")
	}
	if a.MaxRequestsPerWindow > 0 && a.Window <= 0 {
		errs = append(errs, "admission window must be positive when a request limit is set")
	}

	au := c.Audit
	if au.MaxInMemoryEntries < 0 {
		errs = append(errs, "audit.max_in_memory_entries must not be negative")
	}
	if au.MaxContentLength < 0 {
		errs = append(errs, "audit.max_content_length must not be negative")
	}
	if au.QueueSize < 0 {
		errs = append(errs, "audit.queue_size must not be negative")
	}
	if au.Database.Enabled {
		switch au.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("unsupported audit database driver %q", au.Database.Driver))
		}
		switch au.Database.Migrations {
		case "", "auto":
		case "versioned":
			if au.Database.Driver == "sqlite" {
				errs = append(errs, "audit.database.migrations=versioned is not available for sqlite")
			}
		default:
			errs = append(errs, fmt.Sprintf("invalid audit.database.migrations %q", au.Database.Migrations))
		}
	}
	if au.Redis.Enabled && au.Redis.Addr == "" {
		errs = append(errs, "audit.redis.addr is required when the redis sink is enabled")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
