package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/filter"
)

const (
	maxResponseBytes     = 4 << 20 // 4MB
	defaultClientTimeout = 10 * time.Second
	userAgent            = "NewsHubBot/1.0"
)

// RawArticle 数据源返回的原始文章，字段名随数据源变化，读取时一律按可选处理
type RawArticle struct {
	Provider string         `json:"provider"`
	Fields   map[string]any `json:"fields"`
}

// Fetcher 抽象每一个新闻数据源。
// 每次调用只请求一次，不做重试；错误由聚合器统一记录并转成空结果。
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, query string, filters filter.FilterSet) ([]RawArticle, error)
}

// StatusError 数据源返回非 2xx 状态码
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Code)
}

// IsRateLimited 判断错误是否为 429 限流
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// Lookup 按点号路径读取嵌套字段，例如 "byline.original"、"fields.trailText"
func (r RawArticle) Lookup(path string) (any, bool) {
	var cur any = r.Fields
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String 读取字符串字段，缺失或类型不符时返回空串
func (r RawArticle) String(path string) string {
	v, ok := r.Lookup(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func newHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultClientTimeout}
}

// getJSON 发起一次 GET 并把 JSON 解码到 out
func getJSON(ctx context.Context, client *http.Client, provider, endpoint string, params url.Values, out any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &StatusError{Provider: provider, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

// toRaw 将解码后的对象数组包装为 RawArticle，非对象元素直接丢弃
func toRaw(provider string, items []any) []RawArticle {
	out := make([]RawArticle, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, RawArticle{Provider: provider, Fields: m})
	}
	return out
}

// dig 从任意 JSON 值中按路径取出数组，路径不存在时返回 nil
func dig(v any, path ...string) []any {
	cur := v
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	arr, _ := cur.([]any)
	return arr
}

// fromDate 将筛选日期格式化为数据源需要的格式，空值或非法值返回空串
func fromDate(date, layout string) string {
	if date == "" {
		return ""
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return ""
	}
	return t.Format(layout)
}

func setIf(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}
