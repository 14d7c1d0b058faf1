package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/filter"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/robfig/cron/v3"
)

const (
	// jobTimeout 单个查询一轮归档的最长耗时
	jobTimeout = 2 * time.Minute
	// 延迟执行首轮归档，避免与用户首次打开页面的请求争抢数据源配额
	defaultStartupDelay = 15 * time.Second
)

// Collector 由 collector.Aggregator 实现
type Collector interface {
	Collect(ctx context.Context, query string, filters filter.FilterSet) collector.Outcome
}

// Archiver 由 storage.Store 实现
type Archiver interface {
	SaveBatch(articles []processor.Article, raws []collector.RawArticle) (int, error)
}

// Scheduler 定时按配置的关键词采集全部数据源并归档
type Scheduler struct {
	cron       *cron.Cron
	collector  Collector
	normalizer *processor.Normalizer
	archive    Archiver
	queries    []string
	log        *slog.Logger

	startupDelay time.Duration

	mu      sync.Mutex
	stopped bool
	startup *time.Timer
	running sync.WaitGroup
}

func New(spec string, c Collector, n *processor.Normalizer, archive Archiver, queries []string, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(queries) == 0 {
		queries = []string{""}
	}

	s := &Scheduler{
		cron:       cron.New(),
		collector:  c,
		normalizer: n,
		archive:    archive,
		queries:    queries,
		log:        log,

		startupDelay: defaultStartupDelay,
	}

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.startup = time.AfterFunc(s.startupDelay, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.running.Add(1)
		s.mu.Unlock()

		defer s.running.Done()
		s.runAll()
	})
}

// Stop 取消尚未触发的首轮归档，停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.startup != nil {
		s.startup.Stop()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.running.Wait()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发归档
func (s *Scheduler) RunOnce() int {
	return s.runAll()
}

func (s *Scheduler) runOnce() {
	s.runAll()
}

// runAll 依次处理每个关键词，返回写入的文章数
func (s *Scheduler) runAll() int {
	s.log.Info("start archive job...", "queries", len(s.queries))

	total := 0
	for _, q := range s.queries {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		outcome := s.collector.Collect(ctx, q, filter.FilterSet{})
		cancel()

		if len(outcome.Articles) == 0 {
			s.log.Info("archive query got 0 articles", "query", q, "failed", len(outcome.Errors))
			continue
		}
		articles := s.normalizer.Normalize(outcome.Articles)
		saved, err := s.archive.SaveBatch(articles, outcome.Articles)
		if err != nil {
			s.log.Error("save archive batch failed", "query", q, "saved", saved, "err", err)
		}
		total += saved
		// 条数 = 本轮采集解析到的数量（非“新增数”，已存在会更新）
		s.log.Info("archive query done", "query", q, "fetched", len(articles), "saved", saved)
	}

	s.log.Info("archive job done", "saved", total)
	return total
}
