package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tubedigest/feed"
	"tubedigest/model"
	"tubedigest/resolve"
)

// Candidate is a video that was published inside the requested window.
type Candidate struct {
	VideoID     model.VideoID
	ChannelRef  model.ChannelRef
	Title       string
	PublishedAt time.Time
}

type Poller struct {
	reader feed.Reader
	logger *slog.Logger
}

func NewPoller(reader feed.Reader, logger *slog.Logger) *Poller {
	return &Poller{
		reader: reader,
		logger: logger,
	}
}

// Poll fetches the channel's feed and keeps the entries published inside
// the window. Entries whose id does not resolve are skipped, not fatal.
func (p *Poller) Poll(ctx context.Context, channel model.ChannelRef, window Window) ([]Candidate, error) {
	entries, err := p.reader.Fetch(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("poll channel %s: %w", channel, err)
	}

	candidates := []Candidate{}
	for _, entry := range entries {
		if !window.Contains(entry.PublishedAt) {
			continue
		}
		id, err := resolve.VideoID(entry.VideoID)
		if err != nil {
			p.logger.Warn("skipping feed entry with unusable id",
				"channel", channel, "raw", entry.VideoID)
			continue
		}
		candidates = append(candidates, Candidate{
			VideoID:     id,
			ChannelRef:  channel,
			Title:       entry.Title,
			PublishedAt: entry.PublishedAt,
		})
	}

	p.logger.Info("polled channel", "channel", channel,
		"entries", len(entries), "in_window", len(candidates))

	return candidates, nil
}
