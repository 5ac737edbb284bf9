package guardrails

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BaSui01/agentguard/types"
	"go.uber.org/zap"
)

// Stage 校验阶段
type Stage string

const (
	// StageInput 执行前的输入校验
	StageInput Stage = "input"
	// StageOutput 执行后的输出校验
	StageOutput Stage = "output"
)

// Pipeline 护栏校验管道
// 输入链与输出链各自按注册顺序执行，遇到第一个失败立即返回；
// 通过的校验器可改写内容，改写结果作为下一个校验器的输入。
type Pipeline struct {
	mu     sync.RWMutex
	input  []Validator
	output []Validator
	logger *zap.Logger
}

// NewPipeline 创建空管道
func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		logger: logger.With(zap.String("component", "guardrail_pipeline")),
	}
}

// AddInput 追加输入校验器
func (p *Pipeline) AddInput(validators ...Validator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = append(p.input, validators...)
}

// AddOutput 追加输出校验器
func (p *Pipeline) AddOutput(validators ...Validator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = append(p.output, validators...)
}

// InputValidators 返回输入链快照
func (p *Pipeline) InputValidators() []Validator {
	return p.snapshot(StageInput)
}

// OutputValidators 返回输出链快照
func (p *Pipeline) OutputValidators() []Validator {
	return p.snapshot(StageOutput)
}

// CheckInput 执行输入链
func (p *Pipeline) CheckInput(ctx context.Context, content string) (*Outcome, error) {
	return p.run(ctx, StageInput, content)
}

// CheckOutput 执行输出链
func (p *Pipeline) CheckOutput(ctx context.Context, content string) (*Outcome, error) {
	return p.run(ctx, StageOutput, content)
}

// Mask 依次应用两条链中实现 Masker 的校验器，同一实例只应用一次
// 未注册任何 Masker 时原样返回。
func (p *Pipeline) Mask(ctx context.Context, content string) (string, error) {
	seen := make(map[Masker]struct{})
	current := content
	for _, v := range append(p.snapshot(StageInput), p.snapshot(StageOutput)...) {
		m, ok := v.(Masker)
		if !ok || !v.Enabled() {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}

		masked, err := m.Mask(ctx, current)
		if err != nil {
			return "", fmt.Errorf("%s: %w", v.Name(), err)
		}
		current = masked
	}
	return current, nil
}

func (p *Pipeline) snapshot(stage Stage) []Validator {
	p.mu.RLock()
	defer p.mu.RUnlock()

	src := p.input
	if stage == StageOutput {
		src = p.output
	}
	chain := make([]Validator, len(src))
	copy(chain, src)
	return chain
}

func (p *Pipeline) run(ctx context.Context, stage Stage, content string) (*Outcome, error) {
	current := content
	var issues []Issue

	for _, v := range p.snapshot(stage) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !v.Enabled() {
			continue
		}

		outcome, err := v.Check(ctx, current)
		if err != nil {
			if types.IsCancelled(err) {
				return nil, err
			}
			p.logger.Warn("validator error, failing closed",
				zap.String("stage", string(stage)),
				zap.String("validator", v.Name()),
				zap.Error(err))
			return validatorErrorOutcome(v.Name(), err), nil
		}
		if outcome == nil {
			return validatorErrorOutcome(v.Name(), errors.New("validator returned no outcome")), nil
		}

		if !outcome.Passed {
			failed := *outcome
			if failed.TriggeredBy == "" {
				failed.TriggeredBy = v.Name()
			}
			p.logger.Debug("validation blocked",
				zap.String("stage", string(stage)),
				zap.String("validator", failed.TriggeredBy),
				zap.Int("issues", len(failed.Issues)))
			return &failed, nil
		}

		issues = append(issues, outcome.Issues...)
		if outcome.ProcessedContent != nil {
			current = *outcome.ProcessedContent
		}
		p.logger.Debug("validator passed",
			zap.String("stage", string(stage)),
			zap.String("validator", v.Name()),
			zap.Bool("rewritten", outcome.ProcessedContent != nil && *outcome.ProcessedContent != content))
	}

	return Pass(current, issues...), nil
}

func validatorErrorOutcome(name string, err error) *Outcome {
	return Fail(name, fmt.Sprintf("validator %s failed", name), Issue{
		Type:        IssueTypeValidatorError,
		Description: err.Error(),
		Severity:    SeverityCritical,
	})
}
