package feed

import (
	"context"
	"fmt"
	"strings"

	"miniflux.app/client"

	"tubedigest/model"
)

const (
	feedURLPrefix  = "https://www.youtube.com/feeds/videos.xml?channel_id="
	watchURLPrefix = "https://www.youtube.com/watch?v="
)

type MinifluxInfo struct {
	Endpoint string
	ApiKey   string
}

// Miniflux reads channel feeds through a Miniflux instance that is
// subscribed to the channels' Atom feeds. Useful when several tools share
// one aggregator; the direct RSS reader is the default.
type Miniflux struct {
	client *client.Client
}

func NewMiniflux(mflInfo MinifluxInfo) *Miniflux {
	return &Miniflux{
		client: client.New(mflInfo.Endpoint, mflInfo.ApiKey),
	}
}

func (m *Miniflux) Fetch(_ context.Context, channel model.ChannelRef) ([]Entry, error) {
	result, err := m.client.Entries(&client.Filter{Status: "unread"})
	if err != nil {
		return nil, fmt.Errorf("fetch miniflux entries: %w", err)
	}

	entries := []Entry{}
	for _, entry := range result.Entries {
		if entry.Feed == nil {
			continue
		}
		channelID := strings.TrimPrefix(entry.Feed.FeedURL, feedURLPrefix)
		if model.ChannelRef(channelID) != channel {
			continue
		}
		entries = append(entries, Entry{
			VideoID:     strings.TrimPrefix(entry.URL, watchURLPrefix),
			ChannelRef:  channel,
			Title:       entry.Title,
			PublishedAt: entry.Date,
		})
	}

	return entries, nil
}
