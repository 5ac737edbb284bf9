package guardrails

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout 单次正则匹配的默认超时
const DefaultMatchTimeout = 100 * time.Millisecond

// compileBounded 编译带匹配超时的正则，防止灾难性回溯拖垮校验路径
func compileBounded(pattern string, opts regexp2.RegexOptions, timeout time.Duration) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	re.MatchTimeout = timeout
	return re, nil
}

// mustCompileBounded 用于包内固定模式
func mustCompileBounded(pattern string, opts regexp2.RegexOptions, timeout time.Duration) *regexp2.Regexp {
	re, err := compileBounded(pattern, opts, timeout)
	if err != nil {
		panic(err)
	}
	return re
}

// regexTimeoutOutcome 正则超时时按失败关闭处理
func regexTimeoutOutcome(validator, rule string, err error) *Outcome {
	return Fail(validator, "content inspection timed out", Issue{
		Type:        IssueTypeRegexTimeout,
		Description: fmt.Sprintf("pattern %s exceeded its match budget: %v", rule, err),
		Severity:    SeverityCritical,
	})
}
