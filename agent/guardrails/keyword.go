package guardrails

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// KeywordFilter 关键词过滤器
// 大小写不敏感，同一关键词的多次出现互不重叠；任何命中都会导致失败。
type KeywordFilter struct {
	keywords []keyword
}

type keyword struct {
	raw   string
	lower []rune
}

// NewKeywordFilter 创建关键词过滤器，空白关键词会被忽略
func NewKeywordFilter(blocked []string) *KeywordFilter {
	f := &KeywordFilter{}
	for _, k := range blocked {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		f.keywords = append(f.keywords, keyword{raw: k, lower: lowerRunes(k)})
	}
	return f
}

// Name 返回校验器名称
func (f *KeywordFilter) Name() string { return "keyword_filter" }

// Description 返回描述
func (f *KeywordFilter) Description() string {
	return fmt.Sprintf("blocks content containing any of %d keywords", len(f.keywords))
}

// Enabled 关键词列表非空时启用
func (f *KeywordFilter) Enabled() bool { return len(f.keywords) > 0 }

// Check 执行关键词扫描
func (f *KeywordFilter) Check(_ context.Context, content string) (*Outcome, error) {
	original := []rune(content)
	lowered := lowerRunes(content)

	var issues []Issue
	for _, kw := range f.keywords {
		for _, pos := range indexAll(lowered, kw.lower) {
			matched := string(original[pos : pos+len(kw.lower)])
			issues = append(issues, Issue{
				Type:           IssueTypeBlockedKeyword,
				Description:    "blocked keyword detected",
				Position:       pos,
				Length:         len(kw.lower),
				MatchedContent: MaskValue(matched, 1, 1, DefaultMaskChar),
				Severity:       SeverityError,
			})
		}
	}

	if len(issues) == 0 {
		return PassUnchanged(), nil
	}
	return Fail(f.Name(), fmt.Sprintf("content contains %d blocked keyword occurrence(s)", len(issues)), issues...), nil
}

// lowerRunes 逐 rune 转小写，保证与原文的 rune 下标一一对应
func lowerRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

// indexAll 返回 needle 在 haystack 中所有不重叠出现的位置
func indexAll(haystack, needle []rune) []int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return nil
	}
	var positions []int
	for i := 0; i+len(needle) <= len(haystack); {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			positions = append(positions, i)
			i += len(needle)
			continue
		}
		i++
	}
	return positions
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
