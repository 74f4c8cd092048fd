package model

import "time"

type VideoState string

const (
	StatePending   VideoState = "pending"
	StateCompleted VideoState = "completed"
	StateFailed    VideoState = "failed"
)

// VideoID is the stable identifier for a video, the same no matter which
// URL shape or feed entry it was derived from.
type VideoID string

// ChannelRef is the external channel identifier (the UC... id).
type ChannelRef string

func (v VideoID) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + string(v)
}

// VideoRecord tracks a video through the summary pipeline. A record is
// created on first sighting and never deleted. Completed is terminal,
// Failed is eligible for another attempt.
type VideoRecord struct {
	VideoID     VideoID
	ChannelRef  ChannelRef // empty for on-demand submissions
	PublishedAt time.Time
	State       VideoState
	SummaryText string
	FailReason  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
