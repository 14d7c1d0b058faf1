package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LJTian/NewsHub/internal/filter"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPreferencesKey 偏好保存使用的键
const DefaultPreferencesKey = "userPreferences"

// RedisPreferences 把 FilterSet 序列化为 JSON 存在单个 Redis 键下，不设置过期
type RedisPreferences struct {
	rdb *redis.Client
	key string
}

func NewRedisPreferences(rdb *redis.Client, key string) *RedisPreferences {
	if key == "" {
		key = DefaultPreferencesKey
	}
	return &RedisPreferences{rdb: rdb, key: key}
}

// Load 键不存在时返回全空的默认值
func (p *RedisPreferences) Load(ctx context.Context) (filter.FilterSet, error) {
	bs, err := p.rdb.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return filter.FilterSet{}, nil
	}
	if err != nil {
		return filter.FilterSet{}, fmt.Errorf("storage: load preferences: %w", err)
	}
	return decodePreferences(bs), nil
}

func (p *RedisPreferences) Save(ctx context.Context, f filter.FilterSet) error {
	bs, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("storage: encode preferences: %w", err)
	}
	if err := p.rdb.Set(ctx, p.key, bs, 0).Err(); err != nil {
		return fmt.Errorf("storage: save preferences: %w", err)
	}
	return nil
}

func (p *RedisPreferences) Delete(ctx context.Context) error {
	if err := p.rdb.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("storage: delete preferences: %w", err)
	}
	return nil
}

// Preference 偏好表：一个键对应一份 JSON
type Preference struct {
	Key       string         `gorm:"primaryKey;size:128" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb" json:"value"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// GormPreferences 把偏好存在 PostgreSQL 中
type GormPreferences struct {
	db  *gorm.DB
	key string
}

func NewGormPreferences(db *gorm.DB, key string) *GormPreferences {
	if key == "" {
		key = DefaultPreferencesKey
	}
	return &GormPreferences{db: db, key: key}
}

func (p *GormPreferences) Load(ctx context.Context) (filter.FilterSet, error) {
	var row Preference
	err := p.db.WithContext(ctx).Where("key = ?", p.key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return filter.FilterSet{}, nil
	}
	if err != nil {
		return filter.FilterSet{}, fmt.Errorf("storage: load preferences: %w", err)
	}
	return decodePreferences(row.Value), nil
}

func (p *GormPreferences) Save(ctx context.Context, f filter.FilterSet) error {
	bs, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("storage: encode preferences: %w", err)
	}
	row := Preference{Key: p.key, Value: datatypes.JSON(bs), UpdatedAt: time.Now()}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("storage: save preferences: %w", err)
	}
	return nil
}

func (p *GormPreferences) Delete(ctx context.Context) error {
	if err := p.db.WithContext(ctx).Where("key = ?", p.key).Delete(&Preference{}).Error; err != nil {
		return fmt.Errorf("storage: delete preferences: %w", err)
	}
	return nil
}

// decodePreferences 解码失败（例如旧版本写入的脏数据）时返回默认值
func decodePreferences(bs []byte) filter.FilterSet {
	var f filter.FilterSet
	if err := json.Unmarshal(bs, &f); err != nil {
		return filter.FilterSet{}
	}
	return f
}
