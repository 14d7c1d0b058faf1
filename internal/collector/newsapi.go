package collector

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/LJTian/NewsHub/internal/filter"
)

const (
	ProviderNewsAPI       = "newsapi"
	defaultNewsAPIBaseURL = "https://newsapi.org"
	newsAPIDefaultSortBy  = "publishedAt"
)

// NewsAPIFetcher 通过 NewsAPI 的 top-headlines 接口拉取头条
type NewsAPIFetcher struct {
	BaseURL string
	APIKey  string
	SortBy  string
	Client  *http.Client
	Log     *slog.Logger
}

func (n *NewsAPIFetcher) Name() string {
	return ProviderNewsAPI
}

func (n *NewsAPIFetcher) Fetch(ctx context.Context, query string, filters filter.FilterSet) ([]RawArticle, error) {
	log := loggerOr(n.Log)
	log.Debug("fetch NewsAPI top headlines...", "query", query)

	params := url.Values{}
	setIf(params, "q", query)
	setIf(params, "from", fromDate(filters.Date, "2006-01-02"))
	sortBy := n.SortBy
	if sortBy == "" {
		sortBy = newsAPIDefaultSortBy
	}
	params.Set("sortBy", sortBy)
	params.Set("apiKey", n.APIKey)

	// NewsAPI 原生支持分类；sources 与 category 不能同时使用，有分类时忽略 sources
	if filters.Category != "" {
		params.Set("category", filters.Category)
	} else if filters.Sources != "" && filters.Sources != ProviderNewsAPI {
		params.Set("sources", filters.Sources)
	}

	var body map[string]any
	if err := getJSON(ctx, newHTTPClient(n.Client), ProviderNewsAPI, baseOr(n.BaseURL, defaultNewsAPIBaseURL)+"/v2/top-headlines", params, &body); err != nil {
		return nil, err
	}

	items := toRaw(ProviderNewsAPI, dig(body, "articles"))
	return keep(items, func(a RawArticle) bool {
		return matchesQuery(a, query, "title", "description")
	}), nil
}

func baseOr(base, def string) string {
	if base == "" {
		return def
	}
	return base
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
