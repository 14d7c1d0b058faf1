package filter

import "strings"

// DefaultPageSize 每页条数
const DefaultPageSize = 5

// Filterable 由规范化后的文章实现，暴露参与筛选的三个字段
type Filterable interface {
	FilterFields() (publishedAt, author, category string)
}

// Match 判断单条记录是否满足所有生效的约束。sources 在采集阶段已经处理，这里不再检查。
func Match(f FilterSet, publishedAt, author, category string) bool {
	if f.Date != "" {
		// 只比较 T 之前的日期部分；"Unknown Date" 永远不会与具体日期相等
		day, _, _ := strings.Cut(publishedAt, "T")
		if day != f.Date {
			return false
		}
	}
	if f.Author != "" && !containsFold(author, f.Author) {
		return false
	}
	if f.Category != "" && !containsFold(category, f.Category) {
		return false
	}
	return true
}

// Apply 按原有顺序过滤，不做排序
func Apply[T Filterable](items []T, f FilterSet) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		pub, author, category := it.FilterFields()
		if Match(f, pub, author, category) {
			out = append(out, it)
		}
	}
	return out
}

// Page 取 [(page-1)*size, page*size) 的切片；越界返回空切片。
// page < 1 视为 1，size < 1 使用 DefaultPageSize。先用除法判断越界，避免乘法溢出。
func Page[T any](items []T, page, size int) []T {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if len(items) == 0 || page-1 > (len(items)-1)/size {
		return []T{}
	}
	start := (page - 1) * size
	end := len(items)
	if size < end-start {
		end = start + size
	}
	return items[start:end]
}

// HasNext 第 page 页之后是否还有数据，参数约定与 Page 相同
func HasNext(total, page, size int) bool {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	return total > 0 && page-1 < (total-1)/size
}

// Select 过滤后分页
func Select[T Filterable](items []T, f FilterSet, page, size int) []T {
	return Page(Apply(items, f), page, size)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
