package main

import (
	"os"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
)

// 一个仅执行一次归档任务的命令行入口：适合手动触发采集
func main() {
	log := logger.New("newshub-collect")

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

	// 注册采集器（与 cmd/api 保持一致）
	fetchers := collector.FromConfig(cfg.Providers, cfg.HTTPTimeout, log)
	for _, f := range fetchers {
		ch := collector.Channel(f.Name())
		if _, err := store.EnsureChannel(ch.Code, ch.Name, ch.BaseURL); err != nil {
			log.Error("ensure channel failed", "channel", ch.Code, "err", err)
			os.Exit(1)
		}
	}

	// 手动归档不走缓存，保证拿到最新数据
	agg := collector.NewAggregator(fetchers, collector.Options{Parallel: cfg.AggregateParallel, Log: log})
	s, err := scheduler.New(cfg.CronSpec, agg, processor.NewNormalizer(), store, cfg.ArchiveQueries, log)
	if err != nil {
		log.Error("init scheduler failed", "err", err)
		os.Exit(1)
	}

	// 只执行一轮归档任务后退出
	saved := s.RunOnce()
	log.Info("collect finished", "saved", saved)
}
