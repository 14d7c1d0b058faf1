package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/LJTian/NewsHub/internal/filter"
)

const (
	ProviderNYT       = "nyt"
	defaultNYTBaseURL = "https://api.nytimes.com"
)

// NYTFetcher 调用 New York Times Article Search 接口
type NYTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Log     *slog.Logger
}

func (n *NYTFetcher) Name() string {
	return ProviderNYT
}

func (n *NYTFetcher) Aliases() []string {
	return []string{"new-york-times"}
}

func (n *NYTFetcher) Fetch(ctx context.Context, query string, filters filter.FilterSet) ([]RawArticle, error) {
	log := loggerOr(n.Log)
	log.Debug("fetch NYT article search...", "query", query)

	desk := mapCategory(log, ProviderNYT, nytDesks, filters.Category)

	params := url.Values{}
	setIf(params, "q", query)
	setIf(params, "begin_date", fromDate(filters.Date, "20060102"))
	if desk != "" {
		params.Set("fq", fmt.Sprintf("section_name:(%q)", desk))
	}
	params.Set("api-key", n.APIKey)

	var body map[string]any
	if err := getJSON(ctx, newHTTPClient(n.Client), ProviderNYT, baseOr(n.BaseURL, defaultNYTBaseURL)+"/svc/search/v2/articlesearch.json", params, &body); err != nil {
		return nil, err
	}

	items := toRaw(ProviderNYT, dig(body, "response", "docs"))
	return keep(items, func(a RawArticle) bool {
		return matchesQuery(a, query, "headline.main", "abstract")
	}), nil
}
