// Package bot ties the pieces together: the scheduled channel watcher
// and the interactive Telegram listener.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tubedigest/fetch"
	"tubedigest/model"
	"tubedigest/notify"
	"tubedigest/process"
	"tubedigest/storage"
)

type Poller interface {
	Poll(ctx context.Context, channel model.ChannelRef, window fetch.Window) ([]fetch.Candidate, error)
}

type Pipeline interface {
	Process(ctx context.Context, id model.VideoID, channel model.ChannelRef, publishedAt time.Time, languageHint string) (*process.Result, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, channel model.ChannelRef, text string) ([]notify.DeliveryFailure, error)
}

// Scheduler ticks on an interval and, per tick, walks every active
// channel looking for videos published today.
type Scheduler struct {
	config      storage.ConfigStore
	poller      Poller
	pipeline    Pipeline
	broadcaster Broadcaster
	interval    time.Duration
	location    *time.Location
	logger      *slog.Logger

	mu       sync.Mutex
	snapshot []model.ChannelConfig
}

func NewScheduler(config storage.ConfigStore, poller Poller, pipeline Pipeline, broadcaster Broadcaster, interval time.Duration, location *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		config:      config,
		poller:      poller,
		pipeline:    pipeline,
		broadcaster: broadcaster,
		interval:    interval,
		location:    location,
		logger:      logger,
	}
}

// Reload refreshes the channel snapshot from the store. Run calls it
// before every tick so channel changes take effect without a restart.
func (s *Scheduler) Reload(ctx context.Context) error {
	channels, err := s.config.ActiveChannels(ctx)
	if err != nil {
		return fmt.Errorf("reload channels: %w", err)
	}

	s.mu.Lock()
	s.snapshot = channels
	s.mu.Unlock()

	return nil
}

// Run ticks immediately and then on every interval until ctx is done.
// A tick that fails is logged and the loop carries on.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.tickOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

func (s *Scheduler) tickOnce(ctx context.Context) {
	if err := s.Tick(ctx); err != nil {
		s.logger.Error("tick failed", "error", err)
	}
}

// Tick checks every channel in the snapshot for videos published today.
// A channel that errors is logged and skipped so the rest still run.
func (s *Scheduler) Tick(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	channels := s.snapshot
	s.mu.Unlock()

	tickID := uuid.New().String()
	window := fetch.DayWindow(time.Now(), s.location)
	logger := s.logger.With("tick", tickID)
	logger.Info("tick started", "channels", len(channels),
		"window_start", window.Start, "window_end", window.End)

	for _, channel := range channels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.checkChannel(ctx, logger, channel, window); err != nil {
			logger.Error("channel check failed", "channel", channel.ChannelRef, "error", err)
		}
	}
	logger.Info("tick finished")

	return nil
}

func (s *Scheduler) checkChannel(ctx context.Context, logger *slog.Logger, channel model.ChannelConfig, window fetch.Window) error {
	candidates, err := s.poller.Poll(ctx, channel.ChannelRef, window)
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		result, err := s.pipeline.Process(ctx, candidate.VideoID, candidate.ChannelRef, candidate.PublishedAt, channel.LanguageHint)
		switch {
		case errors.Is(err, process.ErrInFlight):
			logger.Info("video already in flight", "video", candidate.VideoID)
			continue
		case err != nil:
			logger.Error("video processing failed", "video", candidate.VideoID, "error", err)
			continue
		case result.Cached:
			// already delivered on the tick that generated it
			continue
		}

		text := summaryMessage(channel.DisplayName, result.Title, result.Summary, result.VideoID)
		failures, err := s.broadcaster.Broadcast(ctx, channel.ChannelRef, text)
		if err != nil {
			logger.Error("broadcast failed", "video", candidate.VideoID, "error", err)
			continue
		}
		logger.Info("summary broadcast", "video", candidate.VideoID, "failed_deliveries", len(failures))
	}

	return nil
}

func summaryMessage(channelName, title, summary string, id model.VideoID) string {
	return fmt.Sprintf("📺 %s\n\n%s\n\n%s\n\n%s", channelName, title, summary, id.WatchURL())
}
