package guardrails

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// urlPattern 提取 URL 主机部分，去除 userinfo 与端口
const urlPattern = `\b(?:https?|ftp)://(?:[^\s/?#@]+@)?([a-z0-9](?:[a-z0-9\-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?)*)(?::\d+)?`

// DomainAllowList 域名白名单/黑名单校验器
// 命中黑名单即失败；白名单非空时未列入白名单的域名只产生警告，不拦截。
// "*.example.com" 同时匹配 example.com 及其所有子域名。
type DomainAllowList struct {
	allowed []string
	blocked []string
	re      *regexp2.Regexp
}

// NewDomainAllowList 创建域名校验器
func NewDomainAllowList(allowed, blocked []string, matchTimeout time.Duration) *DomainAllowList {
	return &DomainAllowList{
		allowed: normalizeDomains(allowed),
		blocked: normalizeDomains(blocked),
		re:      mustCompileBounded(urlPattern, regexp2.IgnoreCase, matchTimeout),
	}
}

// Name 返回校验器名称
func (d *DomainAllowList) Name() string { return "domain_allow_list" }

// Description 返回描述
func (d *DomainAllowList) Description() string {
	return fmt.Sprintf("checks URLs against %d allowed and %d blocked domains", len(d.allowed), len(d.blocked))
}

// Enabled 任一名单非空时启用
func (d *DomainAllowList) Enabled() bool { return len(d.allowed) > 0 || len(d.blocked) > 0 }

type foundDomain struct {
	host     string
	position int
	length   int
}

// Check 提取 URL 并逐个域名校验
func (d *DomainAllowList) Check(_ context.Context, content string) (*Outcome, error) {
	domains, err := d.extract(content)
	if err != nil {
		return regexTimeoutOutcome(d.Name(), "url", err), nil
	}

	var issues []Issue
	blocked := 0
	for _, fd := range domains {
		if matchAny(fd.host, d.blocked) {
			blocked++
			issues = append(issues, Issue{
				Type:           IssueTypeBlockedDomain,
				Description:    fmt.Sprintf("domain %s is blocked", fd.host),
				Position:       fd.position,
				Length:         fd.length,
				MatchedContent: fd.host,
				Severity:       SeverityError,
			})
			continue
		}
		if len(d.allowed) > 0 && !matchAny(fd.host, d.allowed) {
			issues = append(issues, Issue{
				Type:           IssueTypeUnlistedDomain,
				Description:    fmt.Sprintf("domain %s is not in the allow list", fd.host),
				Position:       fd.position,
				Length:         fd.length,
				MatchedContent: fd.host,
				Severity:       SeverityWarning,
			})
		}
	}

	if blocked > 0 {
		return Fail(d.Name(), fmt.Sprintf("content references %d blocked domain(s)", blocked), issues...), nil
	}
	return PassUnchanged(issues...), nil
}

// extract 按首次出现顺序返回去重后的域名
func (d *DomainAllowList) extract(content string) ([]foundDomain, error) {
	seen := make(map[string]struct{})
	var out []foundDomain

	m, err := d.re.FindStringMatch(content)
	for ; m != nil && err == nil; m, err = d.re.FindNextMatch(m) {
		host := strings.ToLower(m.GroupByNumber(1).String())
		if host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		out = append(out, foundDomain{host: host, position: m.Index, length: m.Length})
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// matchAny 精确匹配或 *.domain 后缀匹配
func matchAny(host string, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasPrefix(p, "*.") {
			base := p[2:]
			if host == base || strings.HasSuffix(host, "."+base) {
				return true
			}
			continue
		}
		if host == p {
			return true
		}
	}
	return false
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimSuffix(d, ".")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
