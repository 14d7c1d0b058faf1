package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/LJTian/NewsHub/internal/filter"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingServer 返回固定 JSON，并记录最后一次请求的 path 与参数
type recordingServer struct {
	*httptest.Server
	mu     sync.Mutex
	path   string
	params url.Values
}

func newRecordingServer(t *testing.T, status int, body string) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.path = r.URL.Path
		rs.params = r.URL.Query()
		rs.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) last() (string, url.Values) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.path, rs.params
}

const newsAPIBody = `{"status":"ok","articles":[
	{"title":"Go 1.24 released","description":"The Go team ships a new version","author":"By Jane Doe","publishedAt":"2024-01-05T10:00:00Z","url":"https://example.com/go"},
	{"title":"Football results","description":"Weekend roundup","author":"John","publishedAt":"2024-01-05T11:00:00Z","url":"https://example.com/football"},
	"not-an-object"
]}`

func TestNewsAPIFetcherBuildsRequestAndFiltersClientSide(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, newsAPIBody)
	f := &NewsAPIFetcher{BaseURL: srv.URL, APIKey: "k", Log: quietLogger()}

	items, err := f.Fetch(context.Background(), "go", filter.FilterSet{Date: "2024-01-05", Category: "technology", Sources: "bbc-news"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || items[0].String("title") != "Go 1.24 released" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[0].Provider != ProviderNewsAPI {
		t.Fatalf("provider = %q", items[0].Provider)
	}

	path, params := srv.last()
	if path != "/v2/top-headlines" {
		t.Fatalf("path = %q", path)
	}
	if params.Get("q") != "go" || params.Get("from") != "2024-01-05" || params.Get("apiKey") != "k" {
		t.Fatalf("unexpected params: %v", params)
	}
	if params.Get("category") != "technology" {
		t.Fatalf("category param = %q", params.Get("category"))
	}
	// 有分类时不能再带 sources
	if params.Has("sources") {
		t.Fatalf("sources must be omitted when category is set: %v", params)
	}
	if params.Get("sortBy") != "publishedAt" {
		t.Fatalf("sortBy = %q", params.Get("sortBy"))
	}
}

func TestNewsAPIFetcherNonOKStatus(t *testing.T) {
	srv := newRecordingServer(t, http.StatusTooManyRequests, `{"status":"error"}`)
	f := &NewsAPIFetcher{BaseURL: srv.URL, Log: quietLogger()}

	_, err := f.Fetch(context.Background(), "", filter.FilterSet{})
	if err == nil {
		t.Fatalf("expected error on 429")
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

const guardianBody = `{"response":{"status":"ok","results":[
	{"webTitle":"Film review","sectionId":"culture","sectionName":"Culture","webPublicationDate":"2024-01-05T08:00:00Z","webUrl":"https://g.example/film","fields":{"byline":"Ann Critic","trailText":"A <b>great</b> film"}},
	{"webTitle":"Other news","sectionId":"world","sectionName":"World news","webUrl":"https://g.example/world","fields":{"trailText":"Elsewhere"}}
]}}`

func TestGuardianFetcherMapsCategoryToSection(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, guardianBody)
	f := &GuardianFetcher{BaseURL: srv.URL, APIKey: "gk", Log: quietLogger()}

	items, err := f.Fetch(context.Background(), "", filter.FilterSet{Category: "Entertainment", Date: "2024-01-05"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || items[0].String("sectionId") != "culture" {
		t.Fatalf("expected only the culture article, got %+v", items)
	}

	path, params := srv.last()
	if path != "/search" {
		t.Fatalf("path = %q", path)
	}
	if params.Get("section") != "culture" || params.Get("from-date") != "2024-01-05" || params.Get("api-key") != "gk" {
		t.Fatalf("unexpected params: %v", params)
	}
	if params.Get("show-fields") != "all" {
		t.Fatalf("show-fields = %q", params.Get("show-fields"))
	}
}

func TestGuardianFetcherUnmappedCategoryDegrades(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, guardianBody)
	f := &GuardianFetcher{BaseURL: srv.URL, Log: quietLogger()}

	items, err := f.Fetch(context.Background(), "", filter.FilterSet{Category: "astrology"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("unmapped category should not constrain results, got %d", len(items))
	}
	if _, params := srv.last(); params.Has("section") {
		t.Fatalf("section must be omitted for unmapped category: %v", params)
	}
}

func TestGuardianFetcherQueryMatchesTrailText(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, guardianBody)
	f := &GuardianFetcher{BaseURL: srv.URL, Log: quietLogger()}

	items, err := f.Fetch(context.Background(), "ELSEWHERE", filter.FilterSet{})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || items[0].String("webTitle") != "Other news" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

const everythingBody = `{"articles":[
	{"title":"Tech story","description":"chips","sectionName":"Technology","url":"https://b.example/1"},
	{"title":"Sport story","description":"goals","sectionName":"Sport","url":"https://b.example/2"},
	{"title":"No section","description":"plain","url":"https://b.example/3"}
]}`

func TestEverythingFetcherCategoryPostFilter(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, everythingBody)
	f := &EverythingFetcher{BaseURL: srv.URL, Log: quietLogger()}

	items, err := f.Fetch(context.Background(), "", filter.FilterSet{Category: "tech"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || items[0].String("title") != "Tech story" {
		t.Fatalf("unexpected items: %+v", items)
	}
	path, params := srv.last()
	if path != "/v2/everything" || params.Get("sources") != "bbc-news" {
		t.Fatalf("unexpected request %s %v", path, params)
	}
}

func TestEverythingFetcherCNNSkipsCategory(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, everythingBody)
	f := &EverythingFetcher{BaseURL: srv.URL, Log: quietLogger()}

	items, err := f.Fetch(context.Background(), "", filter.FilterSet{Category: "tech", Sources: "cnn"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("cnn scope should skip category filtering, got %d", len(items))
	}
	if _, params := srv.last(); params.Get("sources") != "cnn" {
		t.Fatalf("sources = %q", params.Get("sources"))
	}
}

const nytBody = `{"response":{"docs":[
	{"headline":{"main":"Senate passes bill"},"abstract":"A vote","byline":{"original":"By Mary Roe"},"section_name":"U.S.","pub_date":"2024-01-05T12:00:00+0000","web_url":"https://n.example/1"},
	{"headline":{"main":"Recipe"},"abstract":"Soup","section_name":"Food","web_url":"https://n.example/2"}
]}}`

func TestNYTFetcherParams(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, nytBody)
	f := &NYTFetcher{BaseURL: srv.URL, APIKey: "nk", Log: quietLogger()}

	items, err := f.Fetch(context.Background(), "vote", filter.FilterSet{Date: "2024-01-05", Category: "politics"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || items[0].String("headline.main") != "Senate passes bill" {
		t.Fatalf("unexpected items: %+v", items)
	}
	path, params := srv.last()
	if path != "/svc/search/v2/articlesearch.json" {
		t.Fatalf("path = %q", path)
	}
	if params.Get("begin_date") != "20240105" || params.Get("api-key") != "nk" {
		t.Fatalf("unexpected params: %v", params)
	}
	if params.Get("fq") != `section_name:("U.S.")` {
		t.Fatalf("fq = %q", params.Get("fq"))
	}
}

func TestHackerNewsFetcherKeepsRankOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/topstories.json":
			_, _ = io.WriteString(w, `[3,1,2]`)
		case strings.HasPrefix(r.URL.Path, "/item/"):
			var id int
			_, _ = fmt.Sscanf(r.URL.Path, "/item/%d.json", &id)
			typ := "story"
			if id == 2 {
				typ = "job"
			}
			fmt.Fprintf(w, `{"id":%d,"title":"Story %d","by":"user%d","time":1704448800,"type":%q}`, id, id, id, typ)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HackerNewsFetcher{BaseURL: srv.URL, Log: quietLogger()}
	items, err := f.Fetch(context.Background(), "", filter.FilterSet{})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(items))
	}
	if items[0].String("title") != "Story 3" || items[1].String("title") != "Story 1" {
		t.Fatalf("rank order lost: %q, %q", items[0].String("title"), items[1].String("title"))
	}
	if items[0].String("url") != "https://news.ycombinator.com/item?id=3" {
		t.Fatalf("fallback url = %q", items[0].String("url"))
	}
	if items[0].String("publishedAt") != "2024-01-05T10:00:00Z" {
		t.Fatalf("publishedAt = %q", items[0].String("publishedAt"))
	}
}

const rssBody = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Example feed</title>
<item><title>Rust and Go</title><link>https://r.example/1</link><description>Languages</description><category>Technology</category><pubDate>Fri, 05 Jan 2024 10:00:00 GMT</pubDate></item>
<item><title>Old item</title><link>https://r.example/2</link><description>History</description><pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate></item>
</channel></rss>`

func TestRSSFetcherParsesAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, rssBody)
	}))
	defer srv.Close()

	f := &RSSFetcher{Feeds: []string{srv.URL}, Log: quietLogger()}
	items, err := f.Fetch(context.Background(), "", filter.FilterSet{Date: "2024-01-03"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after date lower bound, got %d", len(items))
	}
	if items[0].String("category") != "Technology" || items[0].String("publishedAt") != "2024-01-05T10:00:00Z" {
		t.Fatalf("unexpected fields: %+v", items[0].Fields)
	}
}

func TestRSSFetcherAllFeedsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := &RSSFetcher{Feeds: []string{srv.URL}, Log: quietLogger()}
	_, err := f.Fetch(context.Background(), "", filter.FilterSet{})
	if err == nil || !IsRateLimited(err) {
		t.Fatalf("expected wrapped rate limit error, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Provider != ProviderRSS {
		t.Fatalf("expected StatusError from rss, got %v", err)
	}
}

func TestRawArticleLookup(t *testing.T) {
	a := RawArticle{Fields: map[string]any{
		"byline": map[string]any{"original": "By X"},
		"title":  42,
		"empty":  nil,
	}}
	if a.String("byline.original") != "By X" {
		t.Fatalf("nested lookup failed")
	}
	if a.String("title") != "" {
		t.Fatalf("non-string must read as empty")
	}
	if _, ok := a.Lookup("empty"); ok {
		t.Fatalf("nil value must be treated as absent")
	}
	if _, ok := a.Lookup("byline.original.deeper"); ok {
		t.Fatalf("path through a string must be absent")
	}
}
