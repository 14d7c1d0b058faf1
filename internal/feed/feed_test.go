package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/filter"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubFetcher struct {
	name  string
	items []collector.RawArticle
	err   error
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(context.Context, string, filter.FilterSet) ([]collector.RawArticle, error) {
	return s.items, s.err
}

func newService(fetchers ...collector.Fetcher) *Service {
	agg := collector.NewAggregator(fetchers, collector.Options{Log: quietLogger()})
	return NewService(agg, processor.NewNormalizer(), 5, quietLogger())
}

func TestFetchScenarioByPrefixAndFilters(t *testing.T) {
	p1 := &stubFetcher{name: "p1", items: []collector.RawArticle{{
		Provider: "p1",
		Fields:   map[string]any{"title": "A", "publishedAt": "2024-01-05T10:00:00Z", "author": "By Jane Doe"},
	}}}
	p2 := &stubFetcher{name: "p2"}

	res := newService(p1, p2).Fetch(context.Background(), Request{
		Filters: filter.FilterSet{Date: "2024-01-05", Author: "doe"},
		Page:    1,
	})

	require.Len(t, res.Articles, 1)
	require.Equal(t, "A", res.Articles[0].Headline)
	require.Equal(t, "Jane Doe", res.Articles[0].Author)
	require.Equal(t, 5, res.PageSize)
	require.False(t, res.HasNext)
	require.False(t, res.AllFailed)
	require.NotEmpty(t, res.CycleID)
}

func TestFetchUnknownDateNeverMatchesDateFilter(t *testing.T) {
	p := &stubFetcher{name: "p", items: []collector.RawArticle{{Provider: "p", Fields: map[string]any{"title": "undated"}}}}
	res := newService(p).Fetch(context.Background(), Request{Filters: filter.FilterSet{Date: "2024-01-05"}})
	require.True(t, res.Empty())
	require.Zero(t, res.Total)
}

func TestFetchReportsProviderFailures(t *testing.T) {
	ok := &stubFetcher{name: "ok", items: []collector.RawArticle{{Provider: "ok", Fields: map[string]any{"title": "fine"}}}}
	bad := &stubFetcher{name: "bad", err: errors.New("network down")}

	res := newService(ok, bad).Fetch(context.Background(), Request{})
	require.Len(t, res.Articles, 1)
	require.Equal(t, map[string]string{"bad": "network down"}, res.ProviderErrors)
	require.False(t, res.AllFailed)

	res = newService(bad).Fetch(context.Background(), Request{})
	require.True(t, res.Empty())
	require.True(t, res.AllFailed)
}

func TestFetchPagination(t *testing.T) {
	items := make([]collector.RawArticle, 0, 12)
	for i := 0; i < 12; i++ {
		items = append(items, collector.RawArticle{Provider: "p", Fields: map[string]any{"title": fmt.Sprintf("%d", i)}})
	}
	svc := newService(&stubFetcher{name: "p", items: items})

	res := svc.Fetch(context.Background(), Request{Page: 2})
	require.Len(t, res.Articles, 5)
	require.Equal(t, "5", res.Articles[0].Headline)
	require.Equal(t, "9", res.Articles[4].Headline)
	require.Equal(t, 12, res.Total)
	require.True(t, res.HasNext)

	res = svc.Fetch(context.Background(), Request{Page: 3})
	require.Len(t, res.Articles, 2)
	require.False(t, res.HasNext)
}

type memPrefs struct {
	mu      sync.Mutex
	stored  *filter.FilterSet
	deleted int
}

func (m *memPrefs) Load(context.Context) (filter.FilterSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		return filter.FilterSet{}, nil
	}
	return *m.stored, nil
}

func (m *memPrefs) Save(_ context.Context, f filter.FilterSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = &f
	return nil
}

func (m *memPrefs) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = nil
	m.deleted++
	return nil
}

func TestSessionPreferencesLifecycle(t *testing.T) {
	ctx := context.Background()
	prefs := &memPrefs{stored: &filter.FilterSet{Sources: "guardian"}}

	s, err := NewSession(ctx, newService(&stubFetcher{name: "guardian"}), prefs, quietLogger())
	require.NoError(t, err)
	require.Equal(t, filter.FilterSet{Sources: "guardian"}, s.Filters())

	author := "doe"
	_, err = s.UpdatePreferences(ctx, filter.Patch{Author: &author})
	require.NoError(t, err)
	require.Equal(t, filter.FilterSet{Sources: "guardian", Author: "doe"}, s.Filters())
	require.Equal(t, filter.FilterSet{Sources: "guardian", Author: "doe"}, *prefs.stored)

	_, err = s.RemoveFilter(ctx, filter.FieldSources)
	require.NoError(t, err)
	require.Equal(t, filter.FilterSet{Author: "doe"}, *prefs.stored)

	s.SetQuery(ctx, "go")
	s.SetPage(ctx, 3)
	require.Equal(t, 3, s.Page())

	res := s.Reset(ctx)
	require.Equal(t, 1, prefs.deleted)
	require.Nil(t, prefs.stored)
	require.Equal(t, filter.FilterSet{}, s.Filters())
	require.Equal(t, "", s.Query())
	require.Equal(t, 1, res.Page)

	latest, ok := s.Latest()
	require.True(t, ok)
	require.Equal(t, res.Seq, latest.Seq)
}

func TestSessionRejectsInvalidDate(t *testing.T) {
	s, err := NewSession(context.Background(), newService(), nil, quietLogger())
	require.NoError(t, err)

	bad := "yesterday-ish"
	_, err = s.UpdatePreferences(context.Background(), filter.Patch{Date: &bad})
	require.Error(t, err)
	require.Equal(t, filter.FilterSet{}, s.Filters())
}

func TestSessionConcurrentPatchesKeepEveryField(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		prefs := &memPrefs{}
		s, err := NewSession(ctx, newService(&stubFetcher{name: "p"}), prefs, quietLogger())
		require.NoError(t, err)

		author, category, date := "doe", "sports", "2024-01-05"
		patches := []filter.Patch{{Author: &author}, {Category: &category}, {Date: &date}}

		var wg sync.WaitGroup
		errs := make(chan error, len(patches))
		for _, p := range patches {
			wg.Add(1)
			go func(p filter.Patch) {
				defer wg.Done()
				_, err := s.UpdatePreferences(ctx, p)
				errs <- err
			}(p)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		want := filter.FilterSet{Author: author, Category: category, Date: date}
		require.Equal(t, want, s.Filters())
		stored, err := prefs.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, want, stored)
	}
}

// blockingCollector 第一次调用阻塞，直到收到放行信号
type blockingCollector struct {
	once      sync.Once
	started   chan struct{}
	release   chan struct{}
	cancelled chan struct{}
}

func (b *blockingCollector) Collect(ctx context.Context, query string, _ filter.FilterSet) collector.Outcome {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.started)
		<-b.release
		select {
		case <-ctx.Done():
			close(b.cancelled)
		default:
		}
	}
	return collector.Outcome{
		Called:   []string{"p"},
		Errors:   map[string]error{},
		Articles: []collector.RawArticle{{Provider: "p", Fields: map[string]any{"title": query}}},
	}
}

func TestSessionDiscardsSupersededCycle(t *testing.T) {
	bc := &blockingCollector{
		started:   make(chan struct{}),
		release:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	svc := NewService(bc, nil, 5, quietLogger())
	s, err := NewSession(context.Background(), svc, nil, quietLogger())
	require.NoError(t, err)

	firstDone := make(chan Result, 1)
	go func() { firstDone <- s.SetQuery(context.Background(), "old") }()
	<-bc.started

	second := s.SetQuery(context.Background(), "new")
	require.False(t, second.Stale)

	close(bc.release)
	var first Result
	select {
	case first = <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not finish")
	}

	require.True(t, first.Stale)
	require.Less(t, first.Seq, second.Seq)
	select {
	case <-bc.cancelled:
	default:
		t.Fatal("superseded cycle context should be cancelled")
	}

	latest, ok := s.Latest()
	require.True(t, ok)
	require.Equal(t, second.Seq, latest.Seq)
	require.Equal(t, "new", latest.Articles[0].Headline)
}
