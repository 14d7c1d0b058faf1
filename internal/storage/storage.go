package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Channel 描述一个数据源，例如 newsapi / guardian / nyt
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// News 归档的规范化文章，以 URL 作为幂等键
type News struct {
	ID          string `gorm:"primaryKey;size:40" json:"id"`
	Provider    string `gorm:"size:64;index" json:"provider"`
	Headline    string `gorm:"size:512" json:"headline"`
	Description string `gorm:"size:2000" json:"description"`
	Author      string `gorm:"size:256;index" json:"author"`
	Category    string `gorm:"size:128;index" json:"category"`
	PublishedAt string `gorm:"size:32" json:"publishedAt"`
	// 日期 YYYY-MM-DD，PublishedAt 为 "Unknown Date" 时为空
	PublishedDate string            `gorm:"size:10;index" json:"publishedDate"`
	URL           string            `gorm:"size:1024;uniqueIndex" json:"url"`
	RawData       datatypes.JSONMap `gorm:"type:jsonb" json:"rawData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   *slog.Logger
}

func NewStore(dsn, redisAddr string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}

	if err := db.AutoMigrate(&Channel{}, &News{}, &Preference{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis ping failed", "addr", redisAddr, "err", err)
	}

	return &Store{DB: db, Redis: rdb, log: log}, nil
}

// Close 释放数据库与 Redis 连接
func (s *Store) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// EnsureChannel 确保某个渠道存在
func (s *Store) EnsureChannel(code, name, baseURL string) (*Channel, error) {
	ch := &Channel{}
	if err := s.DB.Where("code = ?", code).First(ch).Error; err == nil {
		return ch, nil
	}

	ch = &Channel{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, fmt.Errorf("storage: create channel %s: %w", code, err)
	}
	return ch, nil
}

// ListChannels 返回所有渠道
func (s *Store) ListChannels() ([]Channel, error) {
	var list []Channel
	err := s.DB.Order("id ASC").Find(&list).Error
	return list, err
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// publishedDate 从 ISO 时间中取日期部分，兜底值返回空
func publishedDate(publishedAt string) string {
	if publishedAt == processor.UnknownDate {
		return ""
	}
	day, _, _ := strings.Cut(publishedAt, "T")
	if len(day) != len("2006-01-02") {
		return ""
	}
	return day
}

// toNews 组装归档记录；raw 为对应的原始字段，可为 nil
func toNews(a processor.Article, raw map[string]any) News {
	return News{
		ID:            a.ID,
		Provider:      a.Provider,
		Headline:      truncateRunesDB(toValidUTF8(a.Headline), 512),
		Description:   truncateRunesDB(toValidUTF8(a.Description), 2000),
		Author:        truncateRunesDB(toValidUTF8(a.Author), 256),
		Category:      truncateRunesDB(toValidUTF8(a.Category), 128),
		PublishedAt:   a.PublishedAt,
		PublishedDate: publishedDate(a.PublishedAt),
		URL:           a.URL,
		RawData:       datatypes.JSONMap(raw),
	}
}

// SaveBatch 归档一批文章，已存在的 URL 更新内容；没有 URL 的文章无法幂等写入，直接跳过
func (s *Store) SaveBatch(articles []processor.Article, raws []collector.RawArticle) (int, error) {
	saved := 0
	for i, a := range articles {
		if a.URL == "" {
			continue
		}
		var raw map[string]any
		if i < len(raws) {
			raw = raws[i].Fields
		}
		n := toNews(a, raw)

		if err := s.DB.Where("url = ?", n.URL).FirstOrCreate(&n).Error; err != nil {
			return saved, fmt.Errorf("storage: save %s: %w", n.URL, err)
		}
		if err := s.DB.Model(&n).Updates(map[string]any{
			"headline":       n.Headline,
			"description":    n.Description,
			"author":         n.Author,
			"category":       n.Category,
			"published_at":   n.PublishedAt,
			"published_date": n.PublishedDate,
		}).Error; err != nil {
			s.log.Warn("update archived article failed", "url", n.URL, "err", err)
		}
		saved++
	}

	// 不做按 key 通配删除，依赖短 TTL 的缓存自然过期
	return saved, nil
}

// ListNews 按数据源与可选日期返回归档文章，最新的在前，并使用 Redis 做简单缓存
func (s *Store) ListNews(ctx context.Context, provider, date string, limit int) ([]News, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("news:archive:%s:%s:%d", provider, date, limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []News
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []News
	db := s.DB.WithContext(ctx).Model(&News{})
	if provider != "" {
		db = db.Where("provider = ?", provider)
	}
	if date != "" {
		db = db.Where("published_date = ?", date)
	}
	if err := db.Order("published_date DESC").Order("published_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("storage: list news: %w", err)
	}

	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return list, nil
}
