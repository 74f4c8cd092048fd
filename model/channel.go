package model

// ChannelConfig is a monitored channel. Administered outside the core,
// read-only to the poller and fan-out.
type ChannelConfig struct {
	ChannelRef   ChannelRef
	DisplayName  string
	LanguageHint string
	Active       bool
}

type UserID string

type User struct {
	UserID   UserID
	Username string
	Active   bool
}

// UserSubscription links a user to a channel they want summaries for.
type UserSubscription struct {
	UserID     UserID
	ChannelRef ChannelRef
}
