package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"tubedigest/bot"
	"tubedigest/config"
	"tubedigest/feed"
	"tubedigest/fetch"
	"tubedigest/notify"
	"tubedigest/process"
	"tubedigest/storage"
)

// app bundles the wired components a command runs with.
type app struct {
	cfg       *config.Config
	store     storage.Store
	scheduler *bot.Scheduler
	listener  *bot.Listener
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildApp validates credentials and wires everything up. Missing
// credentials are a startup failure; the command exits non-zero.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := requireCredentials(cfg); err != nil {
		return nil, err
	}

	logger := slog.Default()

	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	reader, err := buildReader(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	metadata, err := fetch.NewYoutube(ctx, cfg.YoutubeAPIKey)
	if err != nil {
		store.Close()
		return nil, err
	}

	poller := fetch.NewPoller(reader, logger)
	summarizer := process.NewOpenAISummarizer(cfg.OpenAIAPIKey)
	pipeline := process.NewPipeline(store, metadata, summarizer, cfg.Scheduler.RequestTimeout, logger)
	telegram := notify.NewTelegram(cfg.TelegramBotToken)
	fanout := notify.NewFanout(store, telegram, logger)

	return &app{
		cfg:   cfg,
		store: store,
		scheduler: bot.NewScheduler(store, poller, pipeline, fanout,
			cfg.Scheduler.Interval, cfg.Location(), logger),
		listener: bot.NewListener(telegram, store, pipeline, cfg.BotPassword, logger),
	}, nil
}

func buildReader(cfg *config.Config) (feed.Reader, error) {
	switch cfg.Feed.Source {
	case "miniflux":
		return feed.NewMiniflux(feed.MinifluxInfo{
			Endpoint: cfg.Feed.MinifluxEndpoint,
			ApiKey:   cfg.Feed.MinifluxAPIKey,
		}), nil
	case "rss":
		return feed.NewRSS(cfg.Scheduler.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Feed.Source)
	}
}

func requireCredentials(cfg *config.Config) error {
	missing := []string{}
	for name, value := range map[string]string{
		"TELEGRAM_BOT_TOKEN": cfg.TelegramBotToken,
		"OPENAI_API_KEY":     cfg.OpenAIAPIKey,
		"YOUTUBE_API_KEY":    cfg.YoutubeAPIKey,
		"DATABASE_URL":       cfg.DatabaseURL,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %v", missing)
	}

	return nil
}
