package safety

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/agentguard/agent/admission"
	"github.com/BaSui01/agentguard/agent/audit"
	"github.com/BaSui01/agentguard/agent/guardrails"
	"github.com/BaSui01/agentguard/config"
	"github.com/BaSui01/agentguard/internal/database"
	"github.com/BaSui01/agentguard/internal/metrics"
	"github.com/BaSui01/agentguard/internal/migration"
	"github.com/BaSui01/agentguard/internal/tlsutil"
	"github.com/BaSui01/agentguard/llm/moderation"
	"github.com/BaSui01/agentguard/llm/tokenizer"
	"github.com/BaSui01/agentguard/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// errNoInner 未提供内部执行器
var errNoInner = errors.New("safety: inner executor is required")

// BuildOptions 注入无法从配置构造的依赖
type BuildOptions struct {
	Logger *zap.Logger
	// Registerer 指标注册器，nil 时使用默认注册器
	Registerer prometheus.Registerer
	// Oracle 覆盖按配置构造的审核服务
	Oracle guardrails.ModerationOracle
	Tracer trace.Tracer
	// RedisClient 覆盖按配置创建的 Redis 客户端，由调用方负责关闭
	RedisClient redis.UniversalClient
	// Tokenizer 覆盖按配置选择的 Token 计数器
	Tokenizer tokenizer.Tokenizer
}

// NewFromConfig 按配置装配完整的 SafeExecutor
// 返回的执行器持有后台资源，使用完毕需调用 Close。
func NewFromConfig(ctx context.Context, cfg *config.Config, inner InnerExecutor, bo BuildOptions) (_ *SafeExecutor, err error) {
	if inner == nil {
		return nil, errNoInner
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewError(types.ErrInvalidConfig, "invalid configuration").WithCause(err)
	}

	logger := bo.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	opts := []Option{WithLogger(logger), WithTracer(bo.Tracer)}

	// 指标
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, bo.Registerer, logger)
		opts = append(opts, WithMetrics(collector))
	}

	// 准入
	if cfg.Admission.Enabled {
		controller := admission.NewController(admissionConfigFrom(cfg.Admission), admission.WithLogger(logger))
		controller.Start(ctx)
		closers = append(closers, controller.Close)
		opts = append(opts, WithAdmission(controller))

		if cfg.Admission.MaxTokensPerRequest > 0 || cfg.Admission.MaxTokensPerSession > 0 {
			tok := bo.Tokenizer
			if tok == nil {
				tok = tokenizer.ForModel(cfg.Admission.TokenizerModel)
			}
			opts = append(opts, WithTokenizer(tok))
		}
	}

	// 校验管线
	oracle := bo.Oracle
	if oracle == nil && cfg.Guardrails.Moderation.Enabled {
		if oracle, err = OracleFromConfig(cfg.Guardrails.Moderation); err != nil {
			return nil, types.NewError(types.ErrInvalidConfig, "build moderation oracle").WithCause(err)
		}
	}
	pipeline, err := guardrails.NewPipelineFromConfig(cfg.Guardrails, oracle, logger)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidConfig, "build guardrail pipeline").WithCause(err)
	}
	opts = append(opts, WithPipeline(pipeline))

	// 审计
	if cfg.Audit.Enabled {
		sinks, sinkClosers, err := buildSinks(ctx, cfg.Audit, bo, logger)
		closers = append(closers, sinkClosers...)
		if err != nil {
			return nil, err
		}

		trail := audit.NewTrail(audit.Config{
			Enabled:            true,
			MaxInMemoryEntries: cfg.Audit.MaxInMemoryEntries,
			Redaction: audit.UniformRedactionPolicy(
				cfg.Audit.MaxContentLength, cfg.Audit.LogInput, cfg.Audit.LogOutput, cfg.Audit.LogToolArgs),
			QueueSize: cfg.Audit.QueueSize,
			OnDrop:    func(*audit.Record) { collector.RecordAuditDropped() },
		}, logger, sinks...)
		// trail 关闭时负责关闭各 sink，先于连接池释放
		closers = append(closers, trail.Close)
		opts = append(opts, WithAudit(trail))
	}

	for _, fn := range closers {
		opts = append(opts, WithCloser(fn))
	}

	logger.Info("safe executor assembled",
		zap.Bool("admission", cfg.Admission.Enabled),
		zap.Int("input_validators", len(pipeline.InputValidators())),
		zap.Int("output_validators", len(pipeline.OutputValidators())),
		zap.Bool("audit", cfg.Audit.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	return New(inner, opts...), nil
}

func admissionConfigFrom(c config.AdmissionConfig) admission.Config {
	return admission.Config{
		MaxRequestsPerWindow: c.MaxRequestsPerWindow,
		Window:               c.Window,
		MaxTokensPerRequest:  c.MaxTokensPerRequest,
		MaxTokensPerSession:  c.MaxTokensPerSession,
		IdleTTL:              c.IdleTTL,
		SweepInterval:        c.SweepInterval,
	}
}

// OracleFromConfig 按 provider 构造审核服务；未配置 provider 时返回 nil
func OracleFromConfig(c config.ModerationConfig) (guardrails.ModerationOracle, error) {
	tlsCfg, err := tlsutil.ClientConfig(c.TLS)
	if err != nil {
		return nil, fmt.Errorf("moderation tls: %w", err)
	}
	client := moderation.OpenAIConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
		TLS:     tlsCfg,
	}
	switch c.Provider {
	case "openai_moderation":
		return moderation.NewProviderOracle(moderation.NewOpenAIProvider(client), c.Categories), nil
	case "chat":
		return moderation.NewChatOracle(client), nil
	default:
		return nil, nil
	}
}

// buildSinks 创建已启用的审计 sink；返回的 closers 释放 sink 之外的底层资源
func buildSinks(ctx context.Context, c config.AuditConfig, bo BuildOptions, logger *zap.Logger) ([]audit.Sink, []func() error, error) {
	var (
		sinks   []audit.Sink
		closers []func() error
	)
	fail := func(err error) ([]audit.Sink, []func() error, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, closers, err
	}

	if c.File.Enabled {
		fs, err := audit.NewFileSink(audit.FileSinkConfig{
			Dir:         c.File.Dir,
			MaxFileSize: c.File.MaxFileSize,
			RotateDaily: c.File.RotateDaily,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("audit file sink: %w", err))
		}
		sinks = append(sinks, fs)
	}

	if c.Database.Enabled {
		pool, err := database.Open(c.Database, logger)
		if err != nil {
			return fail(fmt.Errorf("audit database sink: %w", err))
		}
		closers = append(closers, pool.Close)
		var sinkOpts []audit.GormSinkOption
		if c.Database.Migrations == "versioned" {
			if err := applyMigrations(ctx, c.Database, logger); err != nil {
				return fail(fmt.Errorf("audit database sink: %w", err))
			}
			sinkOpts = append(sinkOpts, audit.SkipAutoMigrate())
		}
		gs, err := audit.NewGormSink(ctx, pool, sinkOpts...)
		if err != nil {
			return fail(fmt.Errorf("audit database sink: %w", err))
		}
		sinks = append(sinks, gs)
	}

	if c.Redis.Enabled {
		client := bo.RedisClient
		owned := client == nil
		if owned {
			tlsCfg, err := tlsutil.ClientConfig(c.Redis.TLS)
			if err != nil {
				return fail(fmt.Errorf("audit redis sink: %w", err))
			}
			client = redis.NewClient(&redis.Options{
				Addr:      c.Redis.Addr,
				Password:  c.Redis.Password,
				DB:        c.Redis.DB,
				TLSConfig: tlsCfg,
			})
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return fail(fmt.Errorf("audit redis sink: %w", err))
			}
		}
		sinks = append(sinks, audit.NewRedisSink(client, audit.RedisSinkConfig{
			KeyPrefix:   c.Redis.KeyPrefix,
			MaxEntries:  c.Redis.MaxEntries,
			CloseClient: owned,
		}))
	}

	return sinks, closers, nil
}

// applyMigrations 在独立连接上执行内嵌的版本化迁移
func applyMigrations(ctx context.Context, c config.DatabaseConfig, logger *zap.Logger) error {
	mc, err := migration.ConfigFromDatabase(c)
	if err != nil {
		return err
	}
	m, err := migration.New(ctx, mc, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}
