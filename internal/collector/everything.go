package collector

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/LJTian/NewsHub/internal/filter"
)

const (
	ProviderBBC     = "bbc-news"
	sourceCNN       = "cnn"
	defaultBBCScope = ProviderBBC
)

// EverythingFetcher 通过 NewsAPI 的 everything 接口按 source 范围拉取（默认 BBC，可切换到 CNN）
type EverythingFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Log     *slog.Logger
}

func (e *EverythingFetcher) Name() string {
	return ProviderBBC
}

// Aliases 本数据源能承接的其它 sources 取值
func (e *EverythingFetcher) Aliases() []string {
	return []string{sourceCNN}
}

func (e *EverythingFetcher) Fetch(ctx context.Context, query string, filters filter.FilterSet) ([]RawArticle, error) {
	log := loggerOr(e.Log)

	scope := defaultBBCScope
	if filters.Sources == sourceCNN {
		scope = sourceCNN
	}
	log.Debug("fetch NewsAPI everything...", "scope", scope, "query", query)

	params := url.Values{}
	setIf(params, "q", query)
	setIf(params, "from", fromDate(filters.Date, "2006-01-02"))
	params.Set("sources", scope)
	params.Set("apiKey", e.APIKey)

	var body map[string]any
	if err := getJSON(ctx, newHTTPClient(e.Client), ProviderBBC, baseOr(e.BaseURL, defaultNewsAPIBaseURL)+"/v2/everything", params, &body); err != nil {
		return nil, err
	}

	items := toRaw(ProviderBBC, dig(body, "articles"))
	return keep(items, func(a RawArticle) bool {
		if !matchesQuery(a, query, "title", "description") {
			return false
		}
		// 该接口不支持分类，CNN 没有栏目字段，跳过分类过滤
		if scope == sourceCNN {
			return true
		}
		return matchesCategory(a, filters.Category, "sectionName", "category")
	}), nil
}
