package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LJTian/NewsHub/internal/feed"
	"github.com/LJTian/NewsHub/internal/filter"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

// MaxPageSize 单页最多返回的文章数
const MaxPageSize = 100

// Feeder 由 feed.Service 实现
type Feeder interface {
	Fetch(ctx context.Context, req feed.Request) feed.Result
	PageSize() int
}

// Archive 由 storage.Store 实现；为 nil 时归档接口返回 503
type Archive interface {
	ListNews(ctx context.Context, provider, date string, limit int) ([]storage.News, error)
	ListChannels() ([]storage.Channel, error)
}

// ProviderLister 由 collector.Aggregator 实现
type ProviderLister interface {
	Providers() []string
}

type Server struct {
	feed      Feeder
	prefs     feed.PreferenceStore
	archive   Archive
	providers ProviderLister
	log       *slog.Logger
}

func NewServer(f Feeder, prefs feed.PreferenceStore, archive Archive, providers ProviderLister, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{feed: f, prefs: prefs, archive: archive, providers: providers, log: log}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/providers", s.listProviders)
		v1.GET("/archive", s.listArchive)
		v1.GET("/channels", s.listChannels)

		v1.GET("/preferences", s.getPreferences)
		v1.PUT("/preferences", s.updatePreferences)
		v1.DELETE("/preferences", s.resetPreferences)
		v1.DELETE("/preferences/:field", s.removePreference)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": message,
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.log.Error(op+" failed", "err", err)
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

// queryPatch 将请求中出现的筛选参数转为 Patch，未出现的参数不覆盖已保存的偏好
func queryPatch(c *gin.Context) filter.Patch {
	var p filter.Patch
	if v, ok := c.GetQuery(filter.FieldDate); ok {
		p.Date = &v
	}
	if v, ok := c.GetQuery(filter.FieldSources); ok {
		p.Sources = &v
	}
	if v, ok := c.GetQuery(filter.FieldAuthor); ok {
		p.Author = &v
	}
	if v, ok := c.GetQuery(filter.FieldCategory); ok {
		p.Category = &v
	}
	return p
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) loadPreferences(ctx context.Context) (filter.FilterSet, error) {
	if s.prefs == nil {
		return filter.FilterSet{}, nil
	}
	return s.prefs.Load(ctx)
}

func (s *Server) listArticles(c *gin.Context) {
	ctx := c.Request.Context()

	stored, err := s.loadPreferences(ctx)
	if err != nil {
		// 偏好读取失败时按空偏好继续，列表接口不因此失败
		s.log.Warn("load preferences failed", "err", err)
		stored = filter.FilterSet{}
	}
	filters, err := stored.Merge(queryPatch(c))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	res := s.feed.Fetch(ctx, feed.Request{
		Query:    c.Query("q"),
		Filters:  filters,
		Page:     positiveInt(c.Query("page"), 1),
		PageSize: min(positiveInt(c.Query("pageSize"), s.feed.PageSize()), MaxPageSize),
	})

	message := "success"
	if res.Empty() {
		message = feed.NoArticlesMessage
	}
	ok(c, message, res)
}

func (s *Server) listProviders(c *gin.Context) {
	var names []string
	if s.providers != nil {
		names = s.providers.Providers()
	}
	ok(c, "success", names)
}

func (s *Server) listArchive(c *gin.Context) {
	if s.archive == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "archive is not configured")
		return
	}

	date := c.Query("date")
	if date != "" {
		d, err := filter.NormalizeDate(date)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}
		date = d
	}

	items, err := s.archive.ListNews(c.Request.Context(), c.Query("provider"), date, positiveInt(c.DefaultQuery("limit", "20"), 20))
	if err != nil {
		s.internalError(c, "list archive", err)
		return
	}
	message := "success"
	if len(items) == 0 {
		message = feed.NoArticlesMessage
	}
	ok(c, message, items)
}

// listChannels 返回已登记的数据源及其展示名称
func (s *Server) listChannels(c *gin.Context) {
	if s.archive == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "archive is not configured")
		return
	}
	list, err := s.archive.ListChannels()
	if err != nil {
		s.internalError(c, "list channels", err)
		return
	}
	ok(c, "success", list)
}

func (s *Server) getPreferences(c *gin.Context) {
	f, err := s.loadPreferences(c.Request.Context())
	if err != nil {
		s.internalError(c, "load preferences", err)
		return
	}
	ok(c, "success", f)
}

func (s *Server) updatePreferences(c *gin.Context) {
	if s.prefs == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "preferences are not configured")
		return
	}
	ctx := c.Request.Context()

	var p filter.Patch
	if err := c.ShouldBindJSON(&p); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	current, err := s.prefs.Load(ctx)
	if err != nil {
		s.internalError(c, "load preferences", err)
		return
	}
	next, err := current.Merge(p)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	if err := s.prefs.Save(ctx, next); err != nil {
		s.internalError(c, "save preferences", err)
		return
	}
	ok(c, "success", next)
}

func (s *Server) resetPreferences(c *gin.Context) {
	if s.prefs == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "preferences are not configured")
		return
	}
	if err := s.prefs.Delete(c.Request.Context()); err != nil {
		s.internalError(c, "delete preferences", err)
		return
	}
	ok(c, "success", filter.FilterSet{})
}

func (s *Server) removePreference(c *gin.Context) {
	if s.prefs == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "preferences are not configured")
		return
	}
	ctx := c.Request.Context()

	current, err := s.prefs.Load(ctx)
	if err != nil {
		s.internalError(c, "load preferences", err)
		return
	}
	next, err := current.Without(c.Param("field"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	if err := s.prefs.Save(ctx, next); err != nil {
		s.internalError(c, "save preferences", err)
		return
	}
	ok(c, "success", next)
}
