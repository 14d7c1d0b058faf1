package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// 维度名称，与 JSON 字段保持一致
const (
	FieldDate     = "date"
	FieldSources  = "sources"
	FieldAuthor   = "author"
	FieldCategory = "category"
)

// FilterSet 用户当前生效的筛选条件，空字符串表示该维度不做约束。
// 每一轮采集使用一个不可变的值，变更时整体替换。
type FilterSet struct {
	Date     string `json:"date"`
	Sources  string `json:"sources"`
	Author   string `json:"author"`
	Category string `json:"category"`
}

// IsEmpty 所有维度均未设置
func (f FilterSet) IsEmpty() bool {
	return f == FilterSet{}
}

// Patch 描述一次偏好变更：nil 表示保持原值，非 nil（包括空字符串）表示覆盖
type Patch struct {
	Date     *string `json:"date,omitempty"`
	Sources  *string `json:"sources,omitempty"`
	Author   *string `json:"author,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Merge 按字段合并 Patch，返回新的 FilterSet。日期统一规范为 YYYY-MM-DD，无法解析的日期返回错误。
func (f FilterSet) Merge(p Patch) (FilterSet, error) {
	out := f
	if p.Date != nil {
		d, err := NormalizeDate(*p.Date)
		if err != nil {
			return f, err
		}
		out.Date = d
	}
	if p.Sources != nil {
		out.Sources = strings.TrimSpace(*p.Sources)
	}
	if p.Author != nil {
		out.Author = strings.TrimSpace(*p.Author)
	}
	if p.Category != nil {
		out.Category = strings.TrimSpace(*p.Category)
	}
	return out, nil
}

// Without 清除单个维度
func (f FilterSet) Without(field string) (FilterSet, error) {
	switch field {
	case FieldDate:
		f.Date = ""
	case FieldSources:
		f.Sources = ""
	case FieldAuthor:
		f.Author = ""
	case FieldCategory:
		f.Category = ""
	default:
		return f, fmt.Errorf("filter: unknown field %q", field)
	}
	return f, nil
}

// NormalizeDate 将用户输入的日期转为 YYYY-MM-DD；空输入返回空
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(time.DateOnly, raw); err == nil {
		return raw, nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return "", fmt.Errorf("filter: invalid date %q: %w", raw, err)
	}
	return t.UTC().Format(time.DateOnly), nil
}
