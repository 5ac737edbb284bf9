package guardrails

import (
	"context"
	"strings"
)

// DefaultMaskChar 默认脱敏字符
const DefaultMaskChar = '*'

// Masker 对文本做不可逆脱敏，不做放行或拦截判定
type Masker interface {
	Mask(ctx context.Context, content string) (string, error)
}

// MaskValue 对值做部分脱敏：保留前 revealFirst 与后 revealLast 个字符，中间替换为 maskChar。
// 长度按 rune 计算；当 revealFirst+revealLast >= 长度时原样返回。
// 脱敏前后 rune 长度一致。
func MaskValue(value string, revealFirst, revealLast int, maskChar rune) string {
	if revealFirst < 0 {
		revealFirst = 0
	}
	if revealLast < 0 {
		revealLast = 0
	}
	if maskChar == 0 {
		maskChar = DefaultMaskChar
	}

	runes := []rune(value)
	n := len(runes)
	if revealFirst+revealLast >= n {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))
	b.WriteString(string(runes[:revealFirst]))
	b.WriteString(strings.Repeat(string(maskChar), n-revealFirst-revealLast))
	b.WriteString(string(runes[n-revealLast:]))
	return b.String()
}

// truncateRunes 按 rune 截断，超长时追加 suffix
func truncateRunes(s string, limit int, suffix string) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + suffix
}
