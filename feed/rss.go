package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"tubedigest/model"
)

const feedURLTemplate = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

// RSS reads a channel's public Atom feed. The feed carries the 15 most
// recent videos, which is plenty for a same-day window.
type RSS struct {
	client  *http.Client
	baseURL string
}

func NewRSS(timeout time.Duration) *RSS {
	return NewRSSWithURL(timeout, feedURLTemplate)
}

// NewRSSWithURL points the reader at an alternate feed endpoint.
func NewRSSWithURL(timeout time.Duration, urlTemplate string) *RSS {
	return &RSS{
		client:  &http.Client{Timeout: timeout},
		baseURL: urlTemplate,
	}
}

func (r *RSS) Fetch(ctx context.Context, channel model.ChannelRef) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(r.baseURL, channel), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", channel, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: HTTP %d", channel, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", channel, err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", channel, err)
	}

	entries := make([]Entry, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		entries = append(entries, Entry{
			VideoID:     entry.VideoID,
			ChannelRef:  channel,
			Title:       entry.Title,
			PublishedAt: entry.Published,
		})
	}

	return entries, nil
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID   string    `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	ChannelID string    `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
	Title     string    `xml:"title"`
	Published time.Time `xml:"published"`
}
