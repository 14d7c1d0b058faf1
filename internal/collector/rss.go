package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/LJTian/NewsHub/internal/filter"
	"github.com/mmcdole/gofeed"
)

const ProviderRSS = "rss"

// RSSFetcher 解析配置的 RSS/Atom 订阅源。订阅源不支持任何查询参数，筛选全部在客户端完成。
type RSSFetcher struct {
	Feeds  []string
	Client *http.Client
	Log    *slog.Logger
}

func (r *RSSFetcher) Name() string {
	return ProviderRSS
}

func (r *RSSFetcher) Fetch(ctx context.Context, query string, filters filter.FilterSet) ([]RawArticle, error) {
	log := loggerOr(r.Log)

	fp := gofeed.NewParser()
	fp.Client = newHTTPClient(r.Client)
	fp.UserAgent = userAgent

	var from time.Time
	if filters.Date != "" {
		from, _ = time.Parse(time.DateOnly, filters.Date)
	}

	var (
		results []RawArticle
		lastErr error
		okFeeds int
	)
	for _, feedURL := range r.Feeds {
		feed, err := fp.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			var he gofeed.HTTPError
			if errors.As(err, &he) {
				err = &StatusError{Provider: ProviderRSS, Code: he.StatusCode}
			}
			log.Warn("rss: parse feed failed", "provider", ProviderRSS, "feed", feedURL, "err", err)
			lastErr = err
			continue
		}
		okFeeds++

		for _, item := range feed.Items {
			raw := rssItemToRaw(feed, item)
			if item.PublishedParsed != nil && !from.IsZero() && item.PublishedParsed.Before(from) {
				continue
			}
			if !matchesQuery(raw, query, "title", "description") || !matchesCategory(raw, filters.Category, "category") {
				continue
			}
			results = append(results, raw)
		}
	}

	if okFeeds == 0 && lastErr != nil {
		return nil, fmt.Errorf("rss: all feeds failed: %w", lastErr)
	}
	return results, nil
}

func rssItemToRaw(feed *gofeed.Feed, item *gofeed.Item) RawArticle {
	fields := map[string]any{
		"title":       item.Title,
		"description": item.Description,
		"url":         item.Link,
		"feedTitle":   feed.Title,
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
		fields["author"] = item.Authors[0].Name
	}
	if len(item.Categories) > 0 {
		fields["category"] = item.Categories[0]
	}
	if item.PublishedParsed != nil {
		fields["publishedAt"] = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.Published != "" {
		fields["publishedAt"] = item.Published
	}
	return RawArticle{Provider: ProviderRSS, Fields: fields}
}
