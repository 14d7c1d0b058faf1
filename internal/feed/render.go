package feed

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/mattn/go-runewidth"
)

// DisplayDateLayout 列表中展示发布时间的格式
const DisplayDateLayout = "January 2, 2006"

const (
	minRenderWidth = 40
	ellipsis       = "…"
)

// FormatDate 将规范化后的 ISO 时间转为展示格式，兜底值原样返回
func FormatDate(publishedAt string) string {
	t, err := time.Parse(time.RFC3339Nano, publishedAt)
	if err != nil {
		return publishedAt
	}
	return t.UTC().Format(DisplayDateLayout)
}

// Render 以纯文本输出一页结果，按显示宽度截断，兼容中日韩宽字符
func Render(w io.Writer, res Result, width int) error {
	if width < minRenderWidth {
		width = minRenderWidth
	}
	var b strings.Builder

	if res.Empty() {
		b.WriteString(NoArticlesMessage + "\n")
		if res.AllFailed {
			b.WriteString("(all providers failed, try again later)\n")
		}
	}

	for i, a := range res.Articles {
		n := (res.Page-1)*res.PageSize + i + 1
		writeArticle(&b, n, a, width)
	}

	if !res.Empty() {
		fmt.Fprintf(&b, "page %d · %d of %d articles", res.Page, len(res.Articles), res.Total)
		if res.HasNext {
			b.WriteString(" · more available")
		}
		b.WriteString("\n")
	}

	if len(res.ProviderErrors) > 0 {
		names := make([]string, 0, len(res.ProviderErrors))
		for name := range res.ProviderErrors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			line := fmt.Sprintf("! %s: %s", name, res.ProviderErrors[name])
			b.WriteString(runewidth.Truncate(line, width, ellipsis) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeArticle(b *strings.Builder, n int, a processor.Article, width int) {
	prefix := fmt.Sprintf("[%d] ", n)
	indent := strings.Repeat(" ", runewidth.StringWidth(prefix))
	body := width - runewidth.StringWidth(prefix)

	b.WriteString(prefix + runewidth.Truncate(a.Headline, body, ellipsis) + "\n")
	if a.Description != "" {
		b.WriteString(indent + runewidth.Truncate(a.Description, body, ellipsis) + "\n")
	}
	meta := fmt.Sprintf("%s · %s · %s", a.Author, FormatDate(a.PublishedAt), a.Provider)
	b.WriteString(indent + runewidth.Truncate(meta, body, ellipsis) + "\n")
	if a.URL != "" {
		b.WriteString(indent + a.URL + "\n")
	}
	b.WriteString("\n")
}
