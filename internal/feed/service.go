package feed

import (
	"context"
	"log/slog"
	"strings"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/filter"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/google/uuid"
)

// NoArticlesMessage 空结果时展示给用户的文案
const NoArticlesMessage = "No articles found"

// Collector 由 collector.Aggregator 实现
type Collector interface {
	Collect(ctx context.Context, query string, filters filter.FilterSet) collector.Outcome
}

// Request 一轮采集的输入，整轮内不可变
type Request struct {
	Query    string           `json:"query"`
	Filters  filter.FilterSet `json:"filters"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// Result 一轮采集的输出。
// AllFailed 区分“全部数据源失败”与“没有匹配结果”；Stale 表示已被更新的一轮取代。
type Result struct {
	Seq            uint64              `json:"seq"`
	CycleID        string              `json:"cycleId"`
	Query          string              `json:"query"`
	Filters        filter.FilterSet    `json:"filters"`
	Articles       []processor.Article `json:"articles"`
	Page           int                 `json:"page"`
	PageSize       int                 `json:"pageSize"`
	Total          int                 `json:"total"`
	HasNext        bool                `json:"hasNext"`
	ProviderErrors map[string]string   `json:"providerErrors,omitempty"`
	AllFailed      bool                `json:"allFailed"`
	Stale          bool                `json:"stale,omitempty"`
}

// Empty 当前页没有文章
func (r Result) Empty() bool {
	return len(r.Articles) == 0
}

// Service 采集 → 规范化 → 筛选 → 分页
type Service struct {
	collector  Collector
	normalizer *processor.Normalizer
	pageSize   int
	log        *slog.Logger
}

func NewService(c Collector, n *processor.Normalizer, pageSize int, log *slog.Logger) *Service {
	if pageSize < 1 {
		pageSize = filter.DefaultPageSize
	}
	if n == nil {
		n = processor.NewNormalizer()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{collector: c, normalizer: n, pageSize: pageSize, log: log}
}

// PageSize 默认每页条数
func (s *Service) PageSize() int {
	return s.pageSize
}

// Fetch 根据查询、筛选条件与页码返回一页规范化后的文章，不会返回错误
func (s *Service) Fetch(ctx context.Context, req Request) Result {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = s.pageSize
	}
	req.Query = strings.TrimSpace(req.Query)

	cycleID := uuid.NewString()
	log := s.log.With("cycle", cycleID)

	outcome := s.collector.Collect(ctx, req.Query, req.Filters)
	articles := s.normalizer.Normalize(outcome.Articles)
	matched := filter.Apply(articles, req.Filters)
	page := filter.Page(matched, req.Page, req.PageSize)

	res := Result{
		CycleID:   cycleID,
		Query:     req.Query,
		Filters:   req.Filters,
		Articles:  page,
		Page:      req.Page,
		PageSize:  req.PageSize,
		Total:     len(matched),
		HasNext:   filter.HasNext(len(matched), req.Page, req.PageSize),
		AllFailed: outcome.AllFailed(),
	}
	if len(outcome.Errors) > 0 {
		res.ProviderErrors = make(map[string]string, len(outcome.Errors))
		for name, err := range outcome.Errors {
			res.ProviderErrors[name] = err.Error()
		}
	}

	log.Info("feed cycle done",
		"query", req.Query,
		"page", req.Page,
		"fetched", len(articles),
		"matched", len(matched),
		"returned", len(page),
		"failed_providers", len(outcome.Errors),
	)
	return res
}
