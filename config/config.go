// Package config loads credentials from the environment and tuning
// options from an optional yaml file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultInterval       = 10 * time.Minute
	defaultTimezone       = "Europe/Madrid"
	defaultRequestTimeout = 90 * time.Second
	defaultFeedSource     = "rss"
)

type Config struct {
	TelegramBotToken string
	OpenAIAPIKey     string
	YoutubeAPIKey    string
	BotPassword      string
	DatabaseURL      string

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Feed      FeedConfig      `yaml:"feed"`
}

type SchedulerConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Timezone       string        `yaml:"timezone"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type FeedConfig struct {
	// Source selects the feed reader: "rss" polls channel Atom feeds
	// directly, "miniflux" goes through a Miniflux instance.
	Source           string `yaml:"source"`
	MinifluxEndpoint string `yaml:"miniflux_endpoint"`
	MinifluxAPIKey   string `yaml:"-"`
}

// Load reads a .env file if present, then the environment, then the
// yaml file at path if it exists. Missing credentials are not an error
// here; each command validates what it actually needs.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		YoutubeAPIKey:    os.Getenv("YOUTUBE_API_KEY"),
		BotPassword:      os.Getenv("BOT_PASSWORD"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Scheduler: SchedulerConfig{
			Interval:       defaultInterval,
			Timezone:       defaultTimezone,
			RequestTimeout: defaultRequestTimeout,
		},
		Feed: FeedConfig{
			Source:         defaultFeedSource,
			MinifluxAPIKey: os.Getenv("MINIFLUX_API_KEY"),
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// optional file, defaults apply
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.Scheduler.RequestTimeout)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Scheduler.Timezone, err)
	}
	switch c.Feed.Source {
	case "rss":
	case "miniflux":
		if c.Feed.MinifluxEndpoint == "" {
			return fmt.Errorf("feed source miniflux needs miniflux_endpoint")
		}
	default:
		return fmt.Errorf("unknown feed source %q", c.Feed.Source)
	}

	return nil
}

// Location resolves the configured timezone. Load has already checked
// that it parses.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.Scheduler.Timezone)

	return loc
}
