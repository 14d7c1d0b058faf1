package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/feed"
	"github.com/LJTian/NewsHub/internal/filter"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/redis/go-redis/v9"
)

const help = `commands:
  q <text>            search (resets to page 1)
  next | prev | page N
  date|sources|author|category <value>   save a preference
  clear <field>       remove one preference
  reset               clear query, page and preferences
  refresh | help | quit`

// 终端版阅读器：每条命令触发一轮采集并打印当前页
func main() {
	query := flag.String("q", "", "search query")
	page := flag.Int("page", 1, "page number")
	width := flag.Int("width", 100, "output width in columns")
	once := flag.Bool("once", false, "print one page and exit")
	flag.Parse()

	log := logger.New("newshub-feed")

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	opts := collector.Options{Parallel: cfg.AggregateParallel, Log: log}
	if cfg.ProviderCacheTTL > 0 {
		opts.Cache = storage.NewRedisCache(rdb, log)
		opts.CacheTTL = cfg.ProviderCacheTTL
	}
	agg := collector.NewAggregator(collector.FromConfig(cfg.Providers, cfg.HTTPTimeout, log), opts)
	svc := feed.NewService(agg, processor.NewNormalizer(), cfg.PageSize, log)

	ctx := context.Background()
	sess, err := feed.NewSession(ctx, svc, storage.NewRedisPreferences(rdb, cfg.PrefsKey), log)
	if err != nil {
		log.Error("init session failed", "err", err)
		os.Exit(1)
	}

	res := sess.SetQuery(ctx, *query)
	if *page > 1 {
		res = sess.SetPage(ctx, *page)
	}
	show(res, sess, *width)
	if *once {
		return
	}

	fmt.Println(help)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		arg = strings.TrimSpace(arg)

		var next feed.Result
		switch cmd {
		case "":
			continue
		case "quit", "exit":
			return
		case "help":
			fmt.Println(help)
			continue
		case "refresh":
			next = sess.Refresh(ctx)
		case "q":
			next = sess.SetQuery(ctx, arg)
		case "next":
			next = sess.SetPage(ctx, sess.Page()+1)
		case "prev":
			next = sess.SetPage(ctx, sess.Page()-1)
		case "page":
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("page expects a number")
				continue
			}
			next = sess.SetPage(ctx, n)
		case filter.FieldDate, filter.FieldSources, filter.FieldAuthor, filter.FieldCategory:
			if next, err = sess.UpdatePreferences(ctx, patchFor(cmd, arg)); err != nil {
				fmt.Println(err)
				continue
			}
		case "clear":
			if next, err = sess.RemoveFilter(ctx, arg); err != nil {
				fmt.Println(err)
				continue
			}
		case "reset":
			next = sess.Reset(ctx)
		default:
			fmt.Println(help)
			continue
		}
		show(next, sess, *width)
	}
}

func patchFor(field, value string) filter.Patch {
	var p filter.Patch
	switch field {
	case filter.FieldDate:
		p.Date = &value
	case filter.FieldSources:
		p.Sources = &value
	case filter.FieldAuthor:
		p.Author = &value
	case filter.FieldCategory:
		p.Category = &value
	}
	return p
}

func show(res feed.Result, sess *feed.Session, width int) {
	f := sess.Filters()
	fmt.Printf("\nquery=%q date=%q sources=%q author=%q category=%q\n\n", res.Query, f.Date, f.Sources, f.Author, f.Category)
	if err := feed.Render(os.Stdout, res, width); err != nil {
		slog.Error("render failed", "err", err)
	}
}
