package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsHub/internal/api"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/feed"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	log := logger.New("newshub-api")

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config failed", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, log)
	if err != nil {
		log.Error("init store failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	fetchers := collector.FromConfig(cfg.Providers, cfg.HTTPTimeout, log)
	// 确保各个渠道存在
	for _, f := range fetchers {
		ch := collector.Channel(f.Name())
		if _, err := store.EnsureChannel(ch.Code, ch.Name, ch.BaseURL); err != nil {
			log.Error("ensure channel failed", "channel", ch.Code, "err", err)
			os.Exit(1)
		}
	}

	opts := collector.Options{Parallel: cfg.AggregateParallel, Log: log}
	if cfg.ProviderCacheTTL > 0 {
		opts.Cache = storage.NewRedisCache(store.Redis, log)
		opts.CacheTTL = cfg.ProviderCacheTTL
	}
	agg := collector.NewAggregator(fetchers, opts)
	norm := processor.NewNormalizer()
	svc := feed.NewService(agg, norm, cfg.PageSize, log)

	var prefs feed.PreferenceStore
	switch cfg.PrefsBackend {
	case "postgres":
		prefs = storage.NewGormPreferences(store.DB, cfg.PrefsKey)
	default:
		prefs = storage.NewRedisPreferences(store.Redis, cfg.PrefsKey)
	}

	s, err := scheduler.New(cfg.CronSpec, agg, norm, store, cfg.ArchiveQueries, log)
	if err != nil {
		log.Error("init scheduler failed", "err", err)
		os.Exit(1)
	}
	s.Start()
	defer s.Stop()

	// API
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(log))
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}
	api.NewServer(svc, prefs, store, agg, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting api server", "addr", srv.Addr, "providers", agg.Providers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server exit", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
	log.Info("api server stopped")
}
