package collector

import (
	"log/slog"
	"strings"
)

// 通用分类到各数据源自有分类的映射，未映射的分类降级为“不限分类”
var (
	guardianSections = map[string]string{
		"technology":    "technology",
		"business":      "business",
		"entertainment": "culture",
		"sports":        "sport",
		"politics":      "politics",
		"science":       "science",
		"health":        "society",
		"world":         "world",
	}

	nytDesks = map[string]string{
		"technology":    "Technology",
		"business":      "Business",
		"entertainment": "Arts",
		"sports":        "Sports",
		"politics":      "U.S.",
		"science":       "Science",
		"health":        "Health",
		"world":         "World",
	}
)

// mapCategory 查表，未命中时记录告警并返回空串
func mapCategory(log *slog.Logger, provider string, table map[string]string, category string) string {
	if category == "" {
		return ""
	}
	if v, ok := table[strings.ToLower(strings.TrimSpace(category))]; ok {
		return v
	}
	log.Warn("unmapped category, fetching without category constraint", "provider", provider, "category", category)
	return ""
}

// matchesQuery 客户端兜底：标题或摘要包含关键词（忽略大小写）。部分数据源会忽略 q 参数。
func matchesQuery(a RawArticle, query string, fields ...string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(a.String(f)), q) {
			return true
		}
	}
	return false
}

// matchesCategory 在数据源不支持分类时，对其返回的分类字段做子串匹配
func matchesCategory(a RawArticle, category string, fields ...string) bool {
	if category == "" {
		return true
	}
	c := strings.ToLower(category)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(a.String(f)), c) {
			return true
		}
	}
	return false
}

func keep(items []RawArticle, pred func(RawArticle) bool) []RawArticle {
	out := items[:0]
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}
