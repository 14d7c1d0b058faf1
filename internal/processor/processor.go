package processor

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/LJTian/NewsHub/internal/collector"
)

// Article 规范化后的文章，与数据源无关。
// Description 为空串表示数据源没有提供摘要。
type Article struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	PublishedAt string `json:"publishedAt"`
	URL         string `json:"url"`
}

// FilterFields 供筛选引擎使用
func (a Article) FilterFields() (string, string, string) {
	return a.PublishedAt, a.Author, a.Category
}

// ToRaw 转回原始结构，规范字段名本身也在解析链中，再次规范化结果不变
func (a Article) ToRaw() collector.RawArticle {
	fields := map[string]any{
		"headline":    a.Headline,
		"author":      a.Author,
		"category":    a.Category,
		"publishedAt": a.PublishedAt,
		"url":         a.URL,
	}
	if a.Description != "" {
		fields["description"] = a.Description
	}
	return collector.RawArticle{Provider: a.Provider, Fields: fields}
}

// Normalizer 把各数据源的原始文章映射为统一结构。纯函数，不会失败，保持输入顺序，不去重。
type Normalizer struct {
	resolver Resolver
}

func NewNormalizer() *Normalizer {
	return &Normalizer{resolver: DefaultResolver()}
}

// NewNormalizerWith 使用自定义规则链
func NewNormalizerWith(r Resolver) *Normalizer {
	return &Normalizer{resolver: r}
}

func (p *Normalizer) Normalize(items []collector.RawArticle) []Article {
	out := make([]Article, 0, len(items))
	for _, it := range items {
		out = append(out, p.NormalizeOne(it))
	}
	return out
}

func (p *Normalizer) NormalizeOne(it collector.RawArticle) Article {
	r := p.resolver
	a := Article{
		Provider:    it.Provider,
		Headline:    r.Headline.Resolve(it, NoHeadline),
		Description: r.Description.Resolve(it, ""),
		Author:      r.Author.Resolve(it, UnknownAuthor),
		Category:    r.Category.Resolve(it, UnknownCategory),
		PublishedAt: r.PublishedAt.Resolve(it, UnknownDate),
		URL:         r.URL.Resolve(it, ""),
	}
	if a.URL != "" {
		a.ID = hashURL(a.URL)
	} else {
		a.ID = hashURL(a.Provider + "\x00" + a.Headline + "\x00" + a.PublishedAt)
	}
	return a
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
