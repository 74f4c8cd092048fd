// Package feed discovers recently published videos for a channel.
// Discovery is quota-free; it does not touch the YouTube Data API.
package feed

import (
	"context"
	"time"

	"tubedigest/model"
)

// Entry is one item from a channel's content feed.
type Entry struct {
	VideoID     string
	ChannelRef  model.ChannelRef
	Title       string
	PublishedAt time.Time
}

type Reader interface {
	Fetch(ctx context.Context, channel model.ChannelRef) ([]Entry, error)
}
