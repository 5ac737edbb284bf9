package guardrails

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingValidator 记录执行顺序的测试校验器
type recordingValidator struct {
	name     string
	enabled  bool
	outcome  func(content string) *Outcome
	err      error
	mu       sync.Mutex
	seen     []string
	recorder *[]string
}

func newRecording(name string, recorder *[]string, outcome func(string) *Outcome) *recordingValidator {
	return &recordingValidator{name: name, enabled: true, outcome: outcome, recorder: recorder}
}

func (v *recordingValidator) Name() string        { return v.name }
func (v *recordingValidator) Description() string { return "recording validator " + v.name }
func (v *recordingValidator) Enabled() bool       { return v.enabled }

func (v *recordingValidator) Check(_ context.Context, content string) (*Outcome, error) {
	v.mu.Lock()
	v.seen = append(v.seen, content)
	if v.recorder != nil {
		*v.recorder = append(*v.recorder, v.name)
	}
	v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return v.outcome(content), nil
}

func passThrough(string) *Outcome { return PassUnchanged() }

func failWith(name string) func(string) *Outcome {
	return func(string) *Outcome { return Fail("", name+" says no") }
}

func TestPipeline_EmptyChainPasses(t *testing.T) {
	p := NewPipeline(nil)

	out, err := p.CheckInput(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, "hello", out.Content(""))
	assert.Empty(t, out.Issues)
}

func TestPipeline_RegistrationOrderAndFailFast(t *testing.T) {
	var order []string
	a := newRecording("a", &order, passThrough)
	b := newRecording("b", &order, failWith("b"))
	c := newRecording("c", &order, passThrough)

	p := NewPipeline(nil)
	p.AddInput(a, b, c)

	out, err := p.CheckInput(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.Equal(t, "b", out.TriggeredBy, "TriggeredBy is filled with the validator name")
	assert.Equal(t, []string{"a", "b"}, order, "validators after a failure never run")
}

func TestPipeline_OrderSensitivity(t *testing.T) {
	ctx := context.Background()

	var order1 []string
	p1 := NewPipeline(nil)
	p1.AddInput(newRecording("A", &order1, failWith("A")), newRecording("B", &order1, passThrough))
	out1, err := p1.CheckInput(ctx, "x")
	require.NoError(t, err)

	var order2 []string
	p2 := NewPipeline(nil)
	p2.AddInput(newRecording("B", &order2, passThrough), newRecording("A", &order2, failWith("A")))
	out2, err := p2.CheckInput(ctx, "x")
	require.NoError(t, err)

	assert.Equal(t, "A", out1.TriggeredBy)
	assert.Equal(t, "A", out2.TriggeredBy)
	assert.Equal(t, []string{"A"}, order1, "B is never invoked when A fails first")
	assert.Equal(t, []string{"B", "A"}, order2)
}

func TestPipeline_ContentThreading(t *testing.T) {
	upper := newRecording("upper", nil, func(s string) *Outcome { return Pass(strings.ToUpper(s)) })
	suffix := newRecording("suffix", nil, func(s string) *Outcome {
		return Pass(s+"!", Issue{Type: "note", Description: "suffixed", Severity: SeverityInfo})
	})
	observer := newRecording("observer", nil, passThrough)

	p := NewPipeline(nil)
	p.AddOutput(upper, suffix, observer)

	out, err := p.CheckOutput(context.Background(), "hi")
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, "HI!", out.Content(""))
	assert.Equal(t, []string{"HI"}, suffix.seen)
	assert.Equal(t, []string{"HI!"}, observer.seen)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "note", out.Issues[0].Type)
}

func TestPipeline_FailedOutcomeContentIgnored(t *testing.T) {
	rewriteThenFail := newRecording("bad", nil, func(string) *Outcome {
		o := Fail("bad", "nope")
		rewritten := "rewritten"
		o.ProcessedContent = &rewritten
		return o
	})
	p := NewPipeline(nil)
	p.AddInput(rewriteThenFail)

	out, err := p.CheckInput(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, out.Passed)
}

func TestPipeline_SkipsDisabled(t *testing.T) {
	var order []string
	disabled := newRecording("disabled", &order, failWith("disabled"))
	disabled.enabled = false
	enabled := newRecording("enabled", &order, passThrough)

	p := NewPipeline(nil)
	p.AddInput(disabled, enabled)

	out, err := p.CheckInput(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, []string{"enabled"}, order)
}

func TestPipeline_InputAndOutputChainsAreSeparate(t *testing.T) {
	var order []string
	p := NewPipeline(nil)
	p.AddInput(newRecording("in", &order, passThrough))
	p.AddOutput(newRecording("out", &order, passThrough))

	_, err := p.CheckOutput(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, order)
	assert.Len(t, p.InputValidators(), 1)
	assert.Len(t, p.OutputValidators(), 1)
}

func TestPipeline_CancelledBeforeFirstValidator(t *testing.T) {
	var order []string
	p := NewPipeline(nil)
	p.AddInput(newRecording("a", &order, passThrough))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := p.CheckInput(ctx, "x")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, order)
}

func TestPipeline_ValidatorCancellationPropagates(t *testing.T) {
	v := newRecording("slow", nil, passThrough)
	v.err = context.DeadlineExceeded

	p := NewPipeline(nil)
	p.AddInput(v)

	out, err := p.CheckInput(context.Background(), "x")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeline_ValidatorErrorFailsClosed(t *testing.T) {
	var order []string
	broken := newRecording("broken", &order, passThrough)
	broken.err = errors.New("boom")
	after := newRecording("after", &order, passThrough)

	p := NewPipeline(nil)
	p.AddInput(broken, after)

	out, err := p.CheckInput(context.Background(), "x")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.False(t, out.Passed)
	assert.Equal(t, "broken", out.TriggeredBy)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, IssueTypeValidatorError, out.Issues[0].Type)
	assert.Equal(t, SeverityCritical, out.Issues[0].Severity)
	assert.Equal(t, []string{"broken"}, order)
}

func TestPipeline_ConcurrentChecks(t *testing.T) {
	p := NewPipeline(nil)
	p.AddInput(NewMaxLengthValidator(100), NewKeywordFilter([]string{"secret"}))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := "hello"
			if i%2 == 0 {
				content = "my secret"
			}
			out, err := p.CheckInput(context.Background(), content)
			assert.NoError(t, err)
			assert.Equal(t, i%2 != 0, out.Passed)
		}(i)
	}
	wg.Wait()
}

func TestPipeline_MaskAppliesSharedMaskerOnce(t *testing.T) {
	sensitive, err := NewSensitiveDataGuardrail(DefaultSensitiveDataConfig())
	require.NoError(t, err)

	p := NewPipeline(nil)
	p.AddInput(NewMaxLengthValidator(5), sensitive)
	p.AddOutput(sensitive)

	masked, err := p.Mask(context.Background(), "call 13812345678")
	require.NoError(t, err)
	assert.Equal(t, "call 138****5678", masked)

	empty := NewPipeline(nil)
	same, err := empty.Mask(context.Background(), "call 13812345678")
	require.NoError(t, err)
	assert.Equal(t, "call 13812345678", same)
}
