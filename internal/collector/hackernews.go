package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/filter"
)

const (
	ProviderHackerNews  = "hackernews"
	defaultHNBaseURL    = "https://hacker-news.firebaseio.com/v0"
	hnMaxItems          = 30
	hnConcurrency       = 10
	hnItemClientTimeout = 5 * time.Second
)

// HackerNewsFetcher 通过官方 Firebase API 抓取 Hacker News 热门故事。
// 接口不支持关键词、日期和分类，全部在客户端过滤。
type HackerNewsFetcher struct {
	BaseURL  string
	MaxItems int
	Client   *http.Client
	Log      *slog.Logger
}

func (h *HackerNewsFetcher) Name() string {
	return ProviderHackerNews
}

type hnItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Score int    `json:"score"`
	By    string `json:"by"`
	Time  int64  `json:"time"`
	Type  string `json:"type"`
	Text  string `json:"text"`
}

func (h *HackerNewsFetcher) Fetch(ctx context.Context, query string, filters filter.FilterSet) ([]RawArticle, error) {
	log := loggerOr(h.Log)
	log.Debug("fetch Hacker News top stories...")

	base := baseOr(h.BaseURL, defaultHNBaseURL)
	client := newHTTPClient(h.Client)

	var ids []int
	if err := getJSON(ctx, client, ProviderHackerNews, base+"/topstories.json", nil, &ids); err != nil {
		return nil, err
	}

	limit := h.MaxItems
	if limit <= 0 {
		limit = hnMaxItems
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	type indexedItem struct {
		idx  int
		item hnItem
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, hnConcurrency)
		items = make([]indexedItem, 0, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, id int) {
			defer wg.Done()
			defer func() { <-sem }()

			itemCtx, cancel := context.WithTimeout(ctx, hnItemClientTimeout)
			defer cancel()

			var it hnItem
			if err := getJSON(itemCtx, client, ProviderHackerNews, fmt.Sprintf("%s/item/%d.json", base, id), nil, &it); err != nil {
				log.Debug("hackernews: fetch item failed", "id", id, "err", err)
				return
			}
			if it.Title == "" || it.Type != "story" {
				return
			}

			mu.Lock()
			items = append(items, indexedItem{idx: idx, item: it})
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	// 并发返回顺序不定，按榜单排名恢复顺序
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	var from time.Time
	if filters.Date != "" {
		from, _ = time.Parse(time.DateOnly, filters.Date)
	}

	results := make([]RawArticle, 0, len(items))
	for _, ii := range items {
		it := ii.item
		published := time.Unix(it.Time, 0).UTC()
		if !from.IsZero() && published.Before(from) {
			continue
		}

		itemURL := it.URL
		if itemURL == "" {
			itemURL = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
		}

		raw := RawArticle{
			Provider: ProviderHackerNews,
			Fields: map[string]any{
				"title":       it.Title,
				"url":         itemURL,
				"author":      it.By,
				"publishedAt": published.Format(time.RFC3339),
				"type":        it.Type,
				"score":       it.Score,
				"hn_id":       it.ID,
			},
		}
		if it.Text != "" {
			raw.Fields["description"] = it.Text
		}
		if !matchesQuery(raw, query, "title", "description") || !matchesCategory(raw, filters.Category, "type") {
			continue
		}
		results = append(results, raw)
	}

	if len(results) == 0 {
		log.Debug("hackernews: no items matched")
	}
	return results, nil
}
