package collector

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/filter"
)

// Cache 数据源结果缓存，由存储层注入（如 Redis）
type Cache interface {
	Get(ctx context.Context, key string) ([]RawArticle, bool)
	Set(ctx context.Context, key string, items []RawArticle, ttl time.Duration)
}

// aliased 由能承接额外 sources 取值的数据源实现
type aliased interface {
	Aliases() []string
}

type Options struct {
	// Parallel 为 true 时并发请求各数据源，合并顺序仍按注册顺序
	Parallel bool
	Cache    Cache
	CacheTTL time.Duration
	Log      *slog.Logger
}

// Aggregator 按注册顺序向数据源扇出请求，单个数据源失败不影响其它数据源
type Aggregator struct {
	fetchers []Fetcher
	opts     Options
	log      *slog.Logger
}

// Outcome 一轮采集的结果，Errors 按数据源记录失败原因
type Outcome struct {
	Articles []RawArticle
	Called   []string
	Errors   map[string]error
}

// AllFailed 被调用的数据源全部失败
func (o Outcome) AllFailed() bool {
	return len(o.Called) > 0 && len(o.Errors) == len(o.Called)
}

func NewAggregator(fetchers []Fetcher, opts Options) *Aggregator {
	return &Aggregator{
		fetchers: fetchers,
		opts:     opts,
		log:      loggerOr(opts.Log),
	}
}

// Providers 返回已注册的数据源名称（即合并顺序）
func (a *Aggregator) Providers() []string {
	names := make([]string, 0, len(a.fetchers))
	for _, f := range a.fetchers {
		names = append(names, f.Name())
	}
	return names
}

// Select 根据 sources 取值决定本轮调用哪些数据源：
// 命中某个数据源名称或别名时只调用它，否则调用全部
func (a *Aggregator) Select(sources string) []Fetcher {
	s := strings.ToLower(strings.TrimSpace(sources))
	if s == "" {
		return a.fetchers
	}
	for _, f := range a.fetchers {
		if f.Name() == s {
			return []Fetcher{f}
		}
		if al, ok := f.(aliased); ok {
			for _, alias := range al.Aliases() {
				if alias == s {
					return []Fetcher{f}
				}
			}
		}
	}
	a.log.Warn("sources filter does not name a known provider, fetching from all", "sources", sources)
	return a.fetchers
}

// Aggregate 返回拼接后的原始文章，失败的数据源贡献空结果
func (a *Aggregator) Aggregate(ctx context.Context, query string, filters filter.FilterSet) []RawArticle {
	return a.Collect(ctx, query, filters).Articles
}

// Collect 同 Aggregate，但额外返回每个数据源的失败信息
func (a *Aggregator) Collect(ctx context.Context, query string, filters filter.FilterSet) Outcome {
	selected := a.Select(filters.Sources)

	parts := make([][]RawArticle, len(selected))
	errs := make([]error, len(selected))

	if a.opts.Parallel {
		var wg sync.WaitGroup
		for i, f := range selected {
			wg.Add(1)
			go func(i int, f Fetcher) {
				defer wg.Done()
				parts[i], errs[i] = a.fetchOne(ctx, f, query, filters)
			}(i, f)
		}
		wg.Wait()
	} else {
		for i, f := range selected {
			parts[i], errs[i] = a.fetchOne(ctx, f, query, filters)
		}
	}

	out := Outcome{
		Called: make([]string, 0, len(selected)),
		Errors: make(map[string]error),
	}
	for i, f := range selected {
		name := f.Name()
		out.Called = append(out.Called, name)
		if errs[i] != nil {
			out.Errors[name] = errs[i]
			continue
		}
		out.Articles = append(out.Articles, parts[i]...)
	}

	a.log.Info("aggregate done", "providers", len(selected), "failed", len(out.Errors), "articles", len(out.Articles))
	return out
}

// fetchOne 调用单个数据源：命中缓存直接返回；出错或 panic 时记录日志并返回空结果
func (a *Aggregator) fetchOne(ctx context.Context, f Fetcher, query string, filters filter.FilterSet) (items []RawArticle, err error) {
	name := f.Name()

	var key string
	if a.opts.Cache != nil && a.opts.CacheTTL > 0 {
		key = cacheKey(name, query, filters)
		if cached, ok := a.opts.Cache.Get(ctx, key); ok {
			a.log.Debug("provider cache hit", "provider", name, "articles", len(cached))
			return cached, nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("%s: panic: %v", name, r)
		}
		if err != nil {
			a.log.Error("fetch news failed", "provider", name, "err", err)
			if IsRateLimited(err) {
				a.log.Warn("rate limit exceeded, consider waiting or upgrading the API plan", "provider", name)
			}
		}
	}()

	items, err = f.Fetch(ctx, query, filters)
	if err != nil {
		return nil, err
	}
	a.log.Debug("fetch news done", "provider", name, "articles", len(items))

	if key != "" {
		a.opts.Cache.Set(ctx, key, items, a.opts.CacheTTL)
	}
	return items, nil
}

func cacheKey(provider, query string, filters filter.FilterSet) string {
	bs, _ := json.Marshal(struct {
		Q string           `json:"q"`
		F filter.FilterSet `json:"f"`
	}{query, filters})
	h := sha1.Sum(bs)
	return "news:provider:" + provider + ":" + hex.EncodeToString(h[:])
}
