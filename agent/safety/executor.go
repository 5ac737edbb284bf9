package safety

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentguard/agent/admission"
	"github.com/BaSui01/agentguard/agent/audit"
	"github.com/BaSui01/agentguard/agent/guardrails"
	"github.com/BaSui01/agentguard/internal/ctxkeys"
	"github.com/BaSui01/agentguard/internal/metrics"
	"github.com/BaSui01/agentguard/llm/tokenizer"
	"github.com/BaSui01/agentguard/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/agentguard/agent/safety"

// genericInnerError 返回给调用方的内部错误描述，细节只写入审计
const genericInnerError = "inner execution failed"

// Option 配置 SafeExecutor
type Option func(*SafeExecutor)

// WithAdmission 设置准入控制器
func WithAdmission(c *admission.Controller) Option {
	return func(s *SafeExecutor) { s.admission = c }
}

// WithPipeline 设置校验管线
func WithPipeline(p *guardrails.Pipeline) Option {
	return func(s *SafeExecutor) { s.pipeline = p }
}

// WithAuditMasker 设置写入审计前的脱敏器；未设置时使用校验管线中的脱敏校验器
func WithAuditMasker(m guardrails.Masker) Option {
	return func(s *SafeExecutor) { s.masker = m }
}

// WithAudit 设置审计日志
func WithAudit(l audit.Logger) Option {
	return func(s *SafeExecutor) { s.audit = l }
}

// WithMetrics 设置指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(s *SafeExecutor) { s.metrics = c }
}

// WithTracer 设置 tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(s *SafeExecutor) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithTokenizer 设置 Token 计数器，需同时配置准入控制器才会计费
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(s *SafeExecutor) { s.tokenizer = t }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(s *SafeExecutor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock 替换时钟，用于测试耗时
func WithClock(now func() time.Time) Option {
	return func(s *SafeExecutor) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCloser 注册 Close 时需要释放的资源
func WithCloser(fn func() error) Option {
	return func(s *SafeExecutor) {
		if fn != nil {
			s.closers = append(s.closers, fn)
		}
	}
}

// SafeExecutor 在内部执行器外围依次执行准入、输入校验、输出校验与审计
// 所有协作组件均可选，缺失时对应步骤直接放行。
type SafeExecutor struct {
	inner     InnerExecutor
	admission *admission.Controller
	pipeline  *guardrails.Pipeline
	audit     audit.Logger
	masker    guardrails.Masker
	metrics   *metrics.Collector
	tokenizer tokenizer.Tokenizer
	fallback  tokenizer.Tokenizer
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
	closers   []func() error
}

// New 创建 SafeExecutor
func New(inner InnerExecutor, opts ...Option) *SafeExecutor {
	s := &SafeExecutor{
		inner:    inner,
		fallback: tokenizer.NewEstimatorTokenizer(""),
		tracer:   otel.Tracer(instrumentationName),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.masker == nil && s.pipeline != nil {
		s.masker = s.pipeline
	}
	s.logger = s.logger.With(zap.String("component", "safe_executor"))
	return s
}

// Admission 返回准入控制器，可能为 nil
func (s *SafeExecutor) Admission() *admission.Controller { return s.admission }

// Pipeline 返回校验管线，可能为 nil
func (s *SafeExecutor) Pipeline() *guardrails.Pipeline { return s.pipeline }

// AuditLog 返回审计日志，可能为 nil
func (s *SafeExecutor) AuditLog() audit.Logger { return s.audit }

// Run 以 actorKey 身份执行 input
// 取消时返回 (nil, ctx error)；其余拒绝、拦截与内部错误都以 *Result 返回。
func (s *SafeExecutor) Run(ctx context.Context, input, actorKey string) (*Result, error) {
	return s.Execute(ctx, &Request{Input: input, ActorKey: actorKey})
}

// run 单次执行的上下文
// input 与 toolArgs 是可写入审计的版本：输入校验前为脱敏后的原文，校验后为改写结果。
type run struct {
	id       string
	req      *Request
	input    string
	toolArgs string
	start    time.Time
	span     trace.Span
	logger   *zap.Logger
	issues   []guardrails.Issue
}

// Execute 执行完整请求
func (s *SafeExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		req = &Request{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID, ok := ctxkeys.RunID(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = ctxkeys.WithRunID(ctx, runID)
	}
	ctx = ctxkeys.WithActorKey(ctx, req.ActorKey)

	ctx, span := s.tracer.Start(ctx, "agentguard.run",
		trace.WithAttributes(
			attribute.String("agentguard.run_id", runID),
			attribute.String("agentguard.actor_key", req.ActorKey),
		))
	defer span.End()

	r := &run{
		id:     runID,
		req:    req,
		start:  s.now(),
		span:   span,
		logger: s.logger.With(zap.String("run_id", runID), zap.String("actor_key", req.ActorKey)),
	}

	r.input = s.auditText(ctx, r, req.Input)
	r.toolArgs = s.auditText(ctx, r, req.ToolArgs)
	s.log(ctx, r, &audit.Record{EventType: audit.EventRunStart})

	// 1. 准入
	if res, err := s.admit(ctx, r); res != nil || err != nil {
		return res, err
	}

	// 2. 输入校验
	input := req.Input
	if s.pipeline != nil {
		outcome, err := s.pipeline.CheckInput(ctx, input)
		if err != nil {
			return s.cancelled(r, err)
		}
		s.collectIssues(r, outcome)
		if !outcome.Passed {
			return s.blocked(ctx, r, guardrails.StageInput, outcome, "")
		}
		input = outcome.Content(input)
		r.input = s.auditText(ctx, r, input)
		span.AddEvent("input_validated", trace.WithAttributes(attribute.Int("agentguard.issues", len(outcome.Issues))))
	}

	// 3. 内部执行
	if err := ctx.Err(); err != nil {
		return s.cancelled(r, err)
	}
	execResult, err := s.callInner(ctx, input)
	if err != nil {
		if ctx.Err() != nil || types.IsCancelled(err) {
			return s.cancelled(r, cancelCause(ctx, err))
		}
		return s.innerError(ctx, r, err)
	}
	span.AddEvent("inner_executed", trace.WithAttributes(attribute.Bool("agentguard.inner_success", execResult.Success)))

	// 4. 内部失败原样返回
	if !execResult.Success {
		if err := ctx.Err(); err != nil {
			return s.cancelled(r, err)
		}
		s.log(ctx, r, &audit.Record{
			EventType:    audit.EventRunEnd,
			Status:       audit.StatusFailed,
			Output:       s.auditText(ctx, r, execResult.Output),
			ErrorMessage: execResult.Error,
			DurationMs:   s.elapsed(r).Milliseconds(),
		})
		return s.finish(r, &Result{
			Status: StatusFailed,
			Output: execResult.Output,
			Error:  execResult.Error,
		}), nil
	}

	// 5. 输出校验
	output := execResult.Output
	if s.pipeline != nil {
		outcome, err := s.pipeline.CheckOutput(ctx, output)
		if err != nil {
			return s.cancelled(r, err)
		}
		s.collectIssues(r, outcome)
		if !outcome.Passed {
			return s.blocked(ctx, r, guardrails.StageOutput, outcome, output)
		}
		output = outcome.Content(output)
		span.AddEvent("output_validated", trace.WithAttributes(attribute.Int("agentguard.issues", len(outcome.Issues))))
	}

	// 6. 成功
	if err := ctx.Err(); err != nil {
		return s.cancelled(r, err)
	}
	s.log(ctx, r, &audit.Record{
		EventType:  audit.EventRunEnd,
		Status:     audit.StatusSuccess,
		Output:     s.auditText(ctx, r, output),
		DurationMs: s.elapsed(r).Milliseconds(),
	})
	r.logger.Debug("run succeeded", zap.Int("issues", len(r.issues)))
	return s.finish(r, &Result{
		Status:  StatusSuccess,
		Success: true,
		Output:  output,
	}), nil
}

// admit 执行请求窗口与 Token 配额检查；两个返回值均为 nil 表示放行
func (s *SafeExecutor) admit(ctx context.Context, r *run) (*Result, error) {
	if s.admission == nil {
		return nil, nil
	}

	decision := s.admission.TryAcquire(r.req.ActorKey)
	if err := ctx.Err(); err != nil {
		return s.cancelled(r, err)
	}
	if !decision.Allowed {
		return s.denied(ctx, r, types.ErrAdmissionDenied, decision.Reason, decision.RetryAfter,
			fmt.Sprintf("rate limit exceeded, retry after %s", decision.RetryAfter)), nil
	}
	r.span.AddEvent("admitted", trace.WithAttributes(attribute.Int("agentguard.remaining", decision.Remaining)))

	if s.tokenizer == nil {
		return nil, nil
	}

	n, err := s.tokenizer.CountTokens(r.req.Input)
	if err != nil {
		r.logger.Warn("token count failed, using estimator",
			zap.String("tokenizer", s.tokenizer.Name()), zap.Error(err))
		n, _ = s.fallback.CountTokens(r.req.Input)
	}

	sessionKey, ok := ctxkeys.SessionID(ctx)
	if !ok {
		sessionKey = r.req.ActorKey
	}
	tokens := s.admission.TryUseTokens(sessionKey, n)
	if err := ctx.Err(); err != nil {
		return s.cancelled(r, err)
	}
	if !tokens.Allowed {
		return s.denied(ctx, r, types.ErrQuotaExceeded, tokens.Reason, 0,
			fmt.Sprintf("token quota exceeded: requested %d, remaining %d", n, tokens.Remaining)), nil
	}
	s.metrics.RecordTokensCharged(n)
	return nil, nil
}

func (s *SafeExecutor) denied(ctx context.Context, r *run, code types.ErrorCode, reason string, retryAfter time.Duration, msg string) *Result {
	s.log(ctx, r, &audit.Record{
		EventType:    audit.EventAdmissionDenied,
		Status:       audit.StatusRateLimited,
		ErrorMessage: msg,
		DurationMs:   s.elapsed(r).Milliseconds(),
		Metadata: map[string]any{
			"reason":         reason,
			"code":           string(code),
			"retry_after_ms": retryAfter.Milliseconds(),
		},
	})
	s.metrics.RecordAdmissionDenied(reason)
	r.logger.Info("run denied by admission",
		zap.String("reason", reason),
		zap.Duration("retry_after", retryAfter))

	return s.finish(r, &Result{
		Status:     StatusRateLimited,
		Error:      msg,
		Code:       code,
		RetryAfter: retryAfter,
	})
}

func (s *SafeExecutor) blocked(ctx context.Context, r *run, stage guardrails.Stage, outcome *guardrails.Outcome, output string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return s.cancelled(r, err)
	}

	reason := outcome.Message
	if reason == "" {
		reason = "content blocked by " + outcome.TriggeredBy
	}
	s.log(ctx, r, &audit.Record{
		EventType:           audit.EventValidationBlocked,
		Status:              audit.StatusBlocked,
		Output:              s.auditText(ctx, r, output),
		ErrorMessage:        reason,
		DurationMs:          s.elapsed(r).Milliseconds(),
		TriggeredValidators: []string{outcome.TriggeredBy},
		Metadata: map[string]any{
			"stage":     string(stage),
			"validator": outcome.TriggeredBy,
			"reason":    reason,
		},
	})
	s.metrics.RecordValidationBlocked(string(stage), outcome.TriggeredBy)
	r.logger.Info("run blocked by validator",
		zap.String("stage", string(stage)),
		zap.String("validator", outcome.TriggeredBy),
		zap.String("reason", reason))

	return s.finish(r, &Result{
		Status:      StatusBlocked,
		Error:       reason,
		Code:        types.ErrValidationBlocked,
		Stage:       stage,
		TriggeredBy: outcome.TriggeredBy,
	}), nil
}

func (s *SafeExecutor) innerError(ctx context.Context, r *run, err error) (*Result, error) {
	s.log(ctx, r, &audit.Record{
		EventType:    audit.EventError,
		Status:       audit.StatusFailed,
		ErrorMessage: err.Error(),
		DurationMs:   s.elapsed(r).Milliseconds(),
	})
	r.logger.Error("inner executor failed", zap.Error(err))
	r.span.RecordError(err)

	return s.finish(r, &Result{
		Status: StatusFailed,
		Error:  genericInnerError,
		Code:   types.ErrInnerExecution,
	}), nil
}

// callInner 调用内部执行器并把 panic 转换为错误
func (s *SafeExecutor) callInner(ctx context.Context, input string) (res *ExecResult, err error) {
	if s.inner == nil {
		return nil, errors.New("no inner executor configured")
	}
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("inner executor panic: %v", p)
		}
	}()

	res, err = s.inner.Execute(ctx, input)
	if err == nil && res == nil {
		err = errors.New("inner executor returned no result")
	}
	return res, err
}

func (s *SafeExecutor) cancelled(r *run, err error) (*Result, error) {
	r.span.SetStatus(codes.Error, "cancelled")
	r.span.SetAttributes(attribute.Bool("agentguard.cancelled", true))
	r.logger.Debug("run cancelled", zap.Error(err))
	return nil, err
}

// cancelCause 优先返回 ctx 的原始错误
func cancelCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *SafeExecutor) collectIssues(r *run, outcome *guardrails.Outcome) {
	for _, issue := range outcome.Issues {
		s.metrics.RecordValidationIssue(issue.Type, string(issue.Severity))
	}
	r.issues = append(r.issues, outcome.Issues...)
}

func (s *SafeExecutor) finish(r *run, res *Result) *Result {
	res.RunID = r.id
	res.Duration = s.elapsed(r)
	if len(r.issues) > 0 {
		res.Issues = r.issues
	}

	s.metrics.RecordRun(string(res.Status), res.Duration)
	r.span.SetAttributes(attribute.String("agentguard.status", string(res.Status)))
	if res.Code != "" {
		r.span.SetAttributes(attribute.String("agentguard.code", string(res.Code)))
	}
	if res.Status == StatusSuccess {
		r.span.SetStatus(codes.Ok, "")
	} else {
		r.span.SetStatus(codes.Error, res.Error)
	}
	return res
}

func (s *SafeExecutor) elapsed(r *run) time.Duration {
	return s.now().Sub(r.start)
}

// auditText 返回可写入审计的文本，脱敏失败时丢弃内容
func (s *SafeExecutor) auditText(ctx context.Context, r *run, text string) string {
	if s.audit == nil || s.masker == nil || text == "" {
		return text
	}
	masked, err := s.masker.Mask(ctx, text)
	if err != nil {
		r.logger.Warn("audit masking failed, content omitted", zap.Error(err))
		return ""
	}
	return masked
}

// log 尽力写入审计，调用方不感知失败
func (s *SafeExecutor) log(ctx context.Context, r *run, rec *audit.Record) {
	if s.audit == nil {
		return
	}
	rec.RunID = r.id
	rec.ActorKey = r.req.ActorKey
	rec.Input = r.input
	rec.ToolArgs = r.toolArgs
	if len(r.req.Metadata) > 0 {
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any, len(r.req.Metadata))
		}
		for k, v := range r.req.Metadata {
			if _, exists := rec.Metadata[k]; !exists {
				rec.Metadata[k] = v
			}
		}
	}
	s.audit.Log(ctx, rec)
}

// Close 释放通过 WithCloser 注册的资源，按注册的逆序执行
func (s *SafeExecutor) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
