package processor

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
)

// 兜底值
const (
	NoHeadline      = "No headline available"
	UnknownAuthor   = "Unknown Author"
	UnknownCategory = "Unknown Category"
	UnknownDate     = "Unknown Date"
)

// isoLayout 与浏览器 Date.toISOString 的输出一致，保证重复规范化结果不变
const isoLayout = "2006-01-02T15:04:05.000Z"

// Rule 一条字段解析规则：从 Path 读取字符串，经 Transform 转换，结果非空即命中
type Rule struct {
	Path      string
	Transform func(string) (string, bool)
}

// Chain 按顺序尝试的一组规则
type Chain []Rule

// Resolve 返回第一个命中规则的结果，全部未命中时返回 fallback
func (c Chain) Resolve(a collector.RawArticle, fallback string) string {
	for _, r := range c {
		v := strings.TrimSpace(a.String(r.Path))
		if v == "" {
			continue
		}
		if r.Transform != nil {
			var ok bool
			if v, ok = r.Transform(v); !ok || v == "" {
				continue
			}
		}
		return v
	}
	return fallback
}

// Resolver 每个规范字段对应一条规则链
type Resolver struct {
	Headline    Chain
	Description Chain
	Author      Chain
	Category    Chain
	PublishedAt Chain
	URL         Chain
}

func plain(path string) Rule { return Rule{Path: path} }

func with(path string, fn func(string) (string, bool)) Rule {
	return Rule{Path: path, Transform: fn}
}

// DefaultResolver 覆盖 NewsAPI / Guardian / NYT / Hacker News / RSS 的字段命名
func DefaultResolver() Resolver {
	return Resolver{
		Headline: Chain{
			plain("headline"),
			plain("headline.main"), // NYT 的 headline 是对象
			plain("webTitle"),
			plain("title"),
		},
		Description: Chain{
			with("description", sanitizeText),
			with("fields.trailText", sanitizeText),
			with("abstract", sanitizeText),
			with("summary", sanitizeText),
		},
		Author: Chain{
			with("byline.original", stripBy),
			with("fields.byline", stripBy),
			with("author", stripBy),
		},
		Category: Chain{
			plain("category"),
			plain("sectionName"),
			plain("section"),
			plain("section_name"),
		},
		PublishedAt: Chain{
			with("publishedAt", toISO),
			with("webPublicationDate", toISO),
			with("pub_date", toISO),
		},
		URL: Chain{
			plain("url"),
			plain("webUrl"),
			plain("web_url"),
			plain("link"),
		},
	}
}

var byPrefix = regexp.MustCompile(`(?i)^by\s+`)

// stripBy 去掉一次开头的 "By "
func stripBy(s string) (string, bool) {
	return strings.TrimSpace(byPrefix.ReplaceAllString(s, "")), true
}

// toISO 统一为 UTC 的 ISO-8601；无法解析时视为缺失
func toISO(s string) (string, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return "", false
		}
	}
	return t.UTC().Format(isoLayout), true
}

var textPolicy = bluemonday.StrictPolicy()

// maxSanitizePasses 多层转义（如 &amp;lt;b&amp;gt;）最多展开的次数
const maxSanitizePasses = 8

// sanitizeText 去掉摘要里的 HTML 标签（Guardian trailText、RSS description 常带标签）。
// 反转义可能还原出新的标签，因此重复处理直到结果不再变化，保证再次规范化结果不变。
func sanitizeText(s string) (string, bool) {
	cur := strings.TrimSpace(s)
	for i := 0; i < maxSanitizePasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(cur)))
		if next == cur {
			break
		}
		cur = next
	}
	return cur, true
}
