// Command reelpress runs the HTTP API, the Telegram admin bot and the maintenance sweeper.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reelpress/internal/article"
	"reelpress/internal/batch"
	"reelpress/internal/bot"
	"reelpress/internal/config"
	"reelpress/internal/discovery"
	"reelpress/internal/events"
	"reelpress/internal/filter"
	"reelpress/internal/media"
	"reelpress/internal/openai"
	"reelpress/internal/publish"
	"reelpress/internal/scheduler"
	"reelpress/internal/server"
	"reelpress/internal/social"
	"reelpress/internal/storage"
	"reelpress/internal/tmdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	for _, dir := range []string{filepath.Dir(cfg.DatabasePath), cfg.MediaDir} {
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{}

	meta := tmdb.New(httpClient, tmdb.Options{
		APIKey:   cfg.TMDB.APIKey,
		BaseURL:  cfg.TMDB.BaseURL,
		Language: cfg.TMDB.Language,
		Region:   cfg.TMDB.Region,
		Timeout:  cfg.TMDB.Timeout,
	})
	if !meta.Configured() {
		log.Warn("TMDB_API_KEY is not set, batches will be rejected")
	}

	var llm article.Completer
	if oa := openai.New(httpClient, openai.Options{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
		Timeout:   cfg.OpenAI.Timeout,
	}); oa.Configured() {
		llm = oa
		log.Info("article generation enabled", "model", oa.Model())
	} else {
		log.Warn("OPENAI_API_KEY is not set, articles use the fallback template")
	}

	entries := publish.NewDefault(store, log)

	var tg *tgbotapi.BotAPI
	if cfg.Telegram.BotToken != "" {
		tg, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Error("connect to telegram", "error", err)
			os.Exit(1)
		}
		log.Info("telegram authorized", "username", tg.Self.UserName)
	}

	var networks []social.Network
	if tg != nil && cfg.Telegram.ChannelID != 0 {
		networks = append(networks, social.NewTelegram(tg, cfg.Telegram.ChannelID))
	}
	if fb := social.NewFacebook(httpClient, cfg.Facebook.GraphURL, cfg.Facebook.PageID, cfg.Facebook.AccessToken); fb.Configured() {
		networks = append(networks, fb)
	}

	var announcers []batch.Announcer
	if len(networks) > 0 {
		announcers = append(announcers, social.NewCrossPoster(store, cfg.SiteURL, log, networks...))
	}
	if cfg.RabbitMQ.URL != "" {
		mq, err := events.NewRabbitMQ(events.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.Queue,
		}, log)
		if err != nil {
			log.Error("connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer func() { _ = mq.Close() }()
		announcers = append(announcers, mq)
	}

	coord := batch.New(batch.Deps{
		Store:      store,
		Metadata:   meta,
		Writer:     article.New(llm, log),
		Entries:    entries,
		Images:     media.New(store, httpClient, cfg.MediaDir, log),
		Announcers: announcers,
	}, log)
	coord.SetItemDelay(cfg.Batch.ItemDelay)
	coord.SetItemBudget(cfg.Batch.ItemBudget)

	var disc *discovery.Discoverer
	if len(cfg.Discovery.Feeds) > 0 {
		filters, err := filter.Compile(cfg.Discovery.Filters)
		if err != nil {
			log.Error("compile discovery filters", "error", err)
			os.Exit(1)
		}
		feeds := make([]discovery.Feed, 0, len(cfg.Discovery.Feeds))
		for _, f := range cfg.Discovery.Feeds {
			feeds = append(feeds, discovery.Feed{Name: f.Name, URL: f.URL, Kind: f.Kind})
		}
		disc = discovery.New(httpClient, meta, entries, feeds, filters, log)
		log.Info("discovery enabled", "feeds", len(feeds), "filters", filters.Len())
	}

	sched := scheduler.New(store, scheduler.Options{
		Interval:       cfg.Maintenance.Interval,
		BatchRetention: cfg.Maintenance.BatchRetention,
		TrashRetention: cfg.Maintenance.TrashRetention,
	}, log)

	deps := server.Deps{
		Store:       store,
		Batches:     coord,
		Platforms:   entries,
		Maintenance: sched,
	}
	if disc != nil {
		deps.Discovery = disc
	}
	srv := server.New(cfg.HTTP, deps, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting reelpress", "addr", cfg.HTTP.Addr, "networks", len(networks), "announcers", len(announcers))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	if tg != nil {
		var d bot.Discoverer
		if disc != nil {
			d = disc
		}
		b := bot.New(tg, store, cfg, coord, d, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Run(ctx)
		}()
	}

	if err := srv.Run(ctx); err != nil {
		log.Error("http server", "error", err)
		cancel()
	}
	wg.Wait()

	log.Info("reelpress stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
