package collector

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/LJTian/NewsHub/internal/config"
)

// ChannelInfo 数据源的展示信息，用于初始化渠道表
type ChannelInfo struct {
	Code    string
	Name    string
	BaseURL string
}

var channels = map[string]ChannelInfo{
	ProviderNewsAPI:    {Code: ProviderNewsAPI, Name: "NewsAPI Top Headlines", BaseURL: "https://newsapi.org"},
	ProviderGuardian:   {Code: ProviderGuardian, Name: "The Guardian", BaseURL: "https://www.theguardian.com"},
	ProviderBBC:        {Code: ProviderBBC, Name: "BBC News", BaseURL: "https://www.bbc.co.uk/news"},
	ProviderNYT:        {Code: ProviderNYT, Name: "The New York Times", BaseURL: "https://www.nytimes.com"},
	ProviderHackerNews: {Code: ProviderHackerNews, Name: "Hacker News", BaseURL: "https://news.ycombinator.com"},
	ProviderRSS:        {Code: ProviderRSS, Name: "RSS Feeds", BaseURL: ""},
}

// Channel 返回数据源的展示信息，未登记的数据源以名称兜底
func Channel(name string) ChannelInfo {
	if ch, ok := channels[name]; ok {
		return ch
	}
	return ChannelInfo{Code: name, Name: name}
}

// FromConfig 按固定顺序构造启用的数据源：newsapi → guardian → bbc-news → nyt → hackernews → rss。
// 该顺序即合并结果中各数据源的先后顺序。
func FromConfig(p config.Providers, timeout time.Duration, log *slog.Logger) []Fetcher {
	log = loggerOr(log)
	client := &http.Client{Timeout: timeout}

	var out []Fetcher
	if p.NewsAPI.Enabled {
		out = append(out, &NewsAPIFetcher{BaseURL: p.NewsAPI.BaseURL, APIKey: p.NewsAPI.APIKey, Client: client, Log: log})
	}
	if p.Guardian.Enabled {
		out = append(out, &GuardianFetcher{BaseURL: p.Guardian.BaseURL, APIKey: p.Guardian.APIKey, Client: client, Log: log})
	}
	if p.BBC.Enabled {
		out = append(out, &EverythingFetcher{BaseURL: p.BBC.BaseURL, APIKey: p.BBC.APIKey, Client: client, Log: log})
	}
	if p.NYT.Enabled {
		out = append(out, &NYTFetcher{BaseURL: p.NYT.BaseURL, APIKey: p.NYT.APIKey, Client: client, Log: log})
	}
	if p.HackerNews.Enabled {
		out = append(out, &HackerNewsFetcher{BaseURL: p.HackerNews.BaseURL, Client: client, Log: log})
	}
	if len(p.RSSFeeds) > 0 {
		out = append(out, &RSSFetcher{Feeds: p.RSSFeeds, Client: client, Log: log})
	}

	for _, f := range out {
		log.Debug("provider registered", "provider", f.Name())
	}
	return out
}
