// =============================================================================
// 📦 agentguard 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Log:        DefaultLogConfig(),
		Guardrails: DefaultGuardrailsConfig(),
		Admission:  DefaultAdmissionConfig(),
		Audit:      DefaultAuditConfig(),
		Metrics:    DefaultMetricsConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultGuardrailsConfig 返回默认护栏配置
func DefaultGuardrailsConfig() GuardrailsConfig {
	return GuardrailsConfig{
		MaxInputLength:  10000,
		MaxOutputLength: 50000,
		KeywordFilter: KeywordFilterConfig{
			Enabled:         true,
			BlockedKeywords: []string{},
		},
		SensitiveData: SensitiveDataConfig{
			Enabled:         true,
			FailureBehavior: "report",
			AutoMask:        true,
			UseDefaultRules: true,
			MatchTimeout:    100 * time.Millisecond,
		},
		Domains: DomainConfig{
			Enabled: true,
			Allowed: []string{},
			Blocked: []string{},
		},
		Moderation: ModerationConfig{
			Enabled:           false,
			Categories:        []string{"hate", "harassment", "violence", "self_harm", "sexual", "illegal_activity"},
			MaxContentToCheck: 4000,
			FailOpenOnError:   false,
			Model:             "omni-moderation-latest",
			Timeout:           10 * time.Second,
		},
	}
}

// DefaultAdmissionConfig 返回默认准入控制配置
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		Enabled:              true,
		MaxRequestsPerWindow: 60,
		Window:               time.Minute,
		MaxTokensPerRequest:  0,
		MaxTokensPerSession:  0,
		IdleTTL:              10 * time.Minute,
		SweepInterval:        time.Minute,
	}
}

// DefaultAuditConfig 返回默认审计配置
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:            true,
		MaxInMemoryEntries: 10000,
		MaxContentLength:   2000,
		LogInput:           true,
		LogOutput:          true,
		LogToolArgs:        true,
		QueueSize:          1000,
		File: FileSinkConfig{
			Dir:         "./audit_logs",
			MaxFileSize: 100 * 1024 * 1024,
			RotateDaily: true,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "agentguard",
			Name:            "agentguard",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			Migrations:      "auto",
		},
		Redis: RedisSinkConfig{
			Addr:       "localhost:6379",
			KeyPrefix:  "agentguard:audit",
			MaxEntries: 10000,
		},
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "agentguard",
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentguard",
		SampleRate:   0.1,
	}
}
