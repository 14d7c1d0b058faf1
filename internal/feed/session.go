package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/LJTian/NewsHub/internal/filter"
)

// PreferenceStore 持久化用户偏好，未保存过时 Load 返回空的 FilterSet
type PreferenceStore interface {
	Load(ctx context.Context) (filter.FilterSet, error)
	Save(ctx context.Context, f filter.FilterSet) error
	Delete(ctx context.Context) error
}

// Session 保存一个用户的查询、筛选条件与页码，每次变更触发新一轮采集。
// 每轮分配单调递增的序号；新一轮开始时取消旧一轮，旧一轮的结果标记为 Stale 且不会成为 Latest。
type Session struct {
	svc   *Service
	prefs PreferenceStore
	log   *slog.Logger

	mu      sync.Mutex
	query   string
	filters filter.FilterSet
	page    int
	seq     uint64
	cancel  context.CancelFunc
	latest  *Result
}

// NewSession 读取已保存的偏好作为初始筛选条件
func NewSession(ctx context.Context, svc *Service, prefs PreferenceStore, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{svc: svc, prefs: prefs, log: log, page: 1}
	if prefs != nil {
		f, err := prefs.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("feed: load preferences: %w", err)
		}
		s.filters = f
	}
	return s, nil
}

// Filters 当前筛选条件
func (s *Session) Filters() filter.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Query 当前关键词
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Page 当前页码
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Latest 最近一轮未被取代的结果
func (s *Session) Latest() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Result{}, false
	}
	return *s.latest, true
}

// Refresh 用当前状态重新采集
func (s *Session) Refresh(ctx context.Context) Result {
	res, _ := s.run(ctx, nil)
	return res
}

// SetQuery 修改关键词并回到第一页
func (s *Session) SetQuery(ctx context.Context, q string) Result {
	res, _ := s.run(ctx, func() error {
		s.query = q
		s.page = 1
		return nil
	})
	return res
}

// SetPage 翻页
func (s *Session) SetPage(ctx context.Context, page int) Result {
	if page < 1 {
		page = 1
	}
	res, _ := s.run(ctx, func() error {
		s.page = page
		return nil
	})
	return res
}

// UpdatePreferences 合并偏好变更并持久化。持久化失败只记录日志，不影响本轮采集。
// 合并与持久化都在锁内完成，并发的变更不会互相覆盖。
func (s *Session) UpdatePreferences(ctx context.Context, p filter.Patch) (Result, error) {
	return s.run(ctx, func() error {
		next, err := s.filters.Merge(p)
		if err != nil {
			return err
		}
		s.save(ctx, next)
		s.filters = next
		return nil
	})
}

// RemoveFilter 清除单个筛选维度
func (s *Session) RemoveFilter(ctx context.Context, field string) (Result, error) {
	return s.run(ctx, func() error {
		next, err := s.filters.Without(field)
		if err != nil {
			return err
		}
		s.save(ctx, next)
		s.filters = next
		return nil
	})
}

// Reset 清空关键词、筛选条件与页码，并删除已保存的偏好
func (s *Session) Reset(ctx context.Context) Result {
	res, _ := s.run(ctx, func() error {
		if s.prefs != nil {
			if err := s.prefs.Delete(ctx); err != nil {
				s.log.Warn("delete preferences failed", "err", err)
			}
		}
		s.query = ""
		s.page = 1
		s.filters = filter.FilterSet{}
		return nil
	})
	return res
}

func (s *Session) save(ctx context.Context, f filter.FilterSet) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.Save(ctx, f); err != nil {
		s.log.Warn("save preferences failed", "err", err)
	}
}

// run 在锁内应用变更并生成快照，锁外执行采集。mutate 返回错误时状态不变，也不会开始新一轮。
func (s *Session) run(ctx context.Context, mutate func() error) (Result, error) {
	s.mu.Lock()
	if mutate != nil {
		if err := mutate(); err != nil {
			s.mu.Unlock()
			return Result{}, err
		}
	}
	s.seq++
	seq := s.seq
	if s.cancel != nil {
		s.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	req := Request{Query: s.query, Filters: s.filters, Page: s.page}
	s.mu.Unlock()

	res := s.svc.Fetch(cctx, req)
	res.Seq = seq

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if seq != s.seq {
		res.Stale = true
		s.log.Debug("discard superseded cycle", "seq", seq, "latest", s.seq)
		return res, nil
	}
	s.cancel = nil
	s.latest = &res
	return res, nil
}
