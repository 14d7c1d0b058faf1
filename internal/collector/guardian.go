package collector

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/LJTian/NewsHub/internal/filter"
)

const (
	ProviderGuardian       = "guardian"
	defaultGuardianBaseURL = "https://content.guardianapis.com"
)

// GuardianFetcher 调用 The Guardian 内容搜索接口
type GuardianFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Log     *slog.Logger
}

func (g *GuardianFetcher) Name() string {
	return ProviderGuardian
}

func (g *GuardianFetcher) Aliases() []string {
	return []string{"the-guardian"}
}

func (g *GuardianFetcher) Fetch(ctx context.Context, query string, filters filter.FilterSet) ([]RawArticle, error) {
	log := loggerOr(g.Log)
	log.Debug("fetch Guardian search...", "query", query)

	section := mapCategory(log, ProviderGuardian, guardianSections, filters.Category)

	params := url.Values{}
	setIf(params, "q", query)
	setIf(params, "from-date", fromDate(filters.Date, "2006-01-02"))
	setIf(params, "section", section)
	params.Set("show-fields", "all")
	params.Set("order-by", "newest")
	params.Set("api-key", g.APIKey)

	var body map[string]any
	if err := getJSON(ctx, newHTTPClient(g.Client), ProviderGuardian, baseOr(g.BaseURL, defaultGuardianBaseURL)+"/search", params, &body); err != nil {
		return nil, err
	}

	items := toRaw(ProviderGuardian, dig(body, "response", "results"))
	return keep(items, func(a RawArticle) bool {
		if !matchesQuery(a, query, "webTitle", "fields.trailText") {
			return false
		}
		// 有映射时再校验一次 sectionId，防止接口返回其它栏目
		return section == "" || a.String("sectionId") == section
	}), nil
}
