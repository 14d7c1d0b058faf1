package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider 单个数据源的接入配置
type Provider struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type Providers struct {
	NewsAPI    Provider `yaml:"newsapi"`
	Guardian   Provider `yaml:"guardian"`
	BBC        Provider `yaml:"bbc"`
	NYT        Provider `yaml:"nyt"`
	HackerNews Provider `yaml:"hackernews"`
	RSSFeeds   []string `yaml:"rss_feeds"`
}

type Config struct {
	AppPort string `yaml:"app_port"`

	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`

	CronSpec       string   `yaml:"cron_spec"`
	ArchiveQueries []string `yaml:"archive_queries"`

	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`

	// PrefsBackend: redis / postgres
	PrefsBackend string `yaml:"prefs_backend"`
	PrefsKey     string `yaml:"prefs_key"`

	PageSize          int           `yaml:"page_size"`
	ProviderCacheTTL  time.Duration `yaml:"provider_cache_ttl"`
	AggregateParallel bool          `yaml:"aggregate_parallel"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`

	Providers Providers `yaml:"providers"`
}

func defaults() *Config {
	return &Config{
		AppPort:        "9000",
		PostgresDSN:    "host=localhost user=newshub password=newshub dbname=newshub port=5432 sslmode=disable TimeZone=UTC",
		RedisAddr:      "localhost:6380",
		CronSpec:       "*/30 * * * *",
		ArchiveQueries: []string{""},
		PrefsBackend:   "redis",
		PrefsKey:       "userPreferences",
		PageSize:       5,
		HTTPTimeout:    10 * time.Second,
		Providers: Providers{
			NewsAPI:    Provider{Enabled: true},
			Guardian:   Provider{Enabled: true},
			BBC:        Provider{Enabled: true},
			NYT:        Provider{Enabled: true},
			HackerNews: Provider{Enabled: false},
		},
	}
}

// Load 依次读取：默认值 → .env → NEWSHUB_CONFIG 指向的 YAML → 环境变量（优先级最高）
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := defaults()
	if path := os.Getenv("NEWSHUB_CONFIG"); path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(bs, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.AppPort = getEnv("APP_PORT", cfg.AppPort)
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.CronSpec = getEnv("CRON_SPEC", cfg.CronSpec)
	if v := os.Getenv("ARCHIVE_QUERIES"); v != "" {
		cfg.ArchiveQueries = splitAndTrim(v)
	}
	cfg.BasicAuthUser = getEnv("APP_BASIC_USER", cfg.BasicAuthUser)
	cfg.BasicAuthPass = getEnv("APP_BASIC_PASS", cfg.BasicAuthPass)
	cfg.PrefsBackend = strings.ToLower(getEnv("PREFS_BACKEND", cfg.PrefsBackend))
	cfg.PrefsKey = getEnv("PREFS_KEY", cfg.PrefsKey)
	cfg.PageSize = getInt("PAGE_SIZE", cfg.PageSize)
	cfg.ProviderCacheTTL = getDuration("PROVIDER_CACHE_TTL", cfg.ProviderCacheTTL)
	cfg.AggregateParallel = getBool("AGGREGATE_PARALLEL", cfg.AggregateParallel)
	cfg.HTTPTimeout = getDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)

	p := &cfg.Providers
	p.NewsAPI.APIKey = getEnv("NEWSAPI_KEY", p.NewsAPI.APIKey)
	p.NewsAPI.BaseURL = getEnv("NEWSAPI_BASE_URL", p.NewsAPI.BaseURL)
	// BBC 走 NewsAPI 的 everything 接口，默认共用同一个 key
	p.BBC.APIKey = getEnv("NEWSAPI_KEY", p.BBC.APIKey)
	p.BBC.BaseURL = getEnv("NEWSAPI_BASE_URL", p.BBC.BaseURL)
	p.Guardian.APIKey = getEnv("GUARDIAN_KEY", p.Guardian.APIKey)
	p.Guardian.BaseURL = getEnv("GUARDIAN_BASE_URL", p.Guardian.BaseURL)
	p.NYT.APIKey = getEnv("NYT_KEY", p.NYT.APIKey)
	p.NYT.BaseURL = getEnv("NYT_BASE_URL", p.NYT.BaseURL)
	p.HackerNews.Enabled = getBool("HACKERNEWS_ENABLED", p.HackerNews.Enabled)
	p.HackerNews.BaseURL = getEnv("HACKERNEWS_BASE_URL", p.HackerNews.BaseURL)
	if v := os.Getenv("RSS_FEEDS"); v != "" {
		p.RSSFeeds = splitAndTrim(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("config loaded", "port", cfg.AppPort, "cron", cfg.CronSpec, "prefs", cfg.PrefsBackend, "page_size", cfg.PageSize)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("config: PAGE_SIZE must be positive")
	}
	if c.ProviderCacheTTL < 0 {
		return fmt.Errorf("config: PROVIDER_CACHE_TTL cannot be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: HTTP_TIMEOUT must be positive")
	}
	switch c.PrefsBackend {
	case "redis", "postgres":
	default:
		return fmt.Errorf("config: PREFS_BACKEND must be redis or postgres, got %q", c.PrefsBackend)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
