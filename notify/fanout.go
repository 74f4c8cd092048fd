package notify

import (
	"context"
	"fmt"
	"log/slog"

	"tubedigest/model"
	"tubedigest/storage"
)

type Sender interface {
	SendMessage(ctx context.Context, userID model.UserID, text string) error
}

// DeliveryFailure records one recipient the message did not reach.
type DeliveryFailure struct {
	UserID model.UserID
	Err    error
}

// Fanout sends one message to every subscriber of a channel. Every
// recipient is attempted; a failure for one never blocks the rest.
type Fanout struct {
	config storage.ConfigStore
	sender Sender
	logger *slog.Logger
}

func NewFanout(config storage.ConfigStore, sender Sender, logger *slog.Logger) *Fanout {
	return &Fanout{
		config: config,
		sender: sender,
		logger: logger,
	}
}

func (f *Fanout) Broadcast(ctx context.Context, channel model.ChannelRef, text string) ([]DeliveryFailure, error) {
	subscribers, err := f.config.Subscribers(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("broadcast to %s: %w", channel, err)
	}

	var failures []DeliveryFailure
	for _, user := range subscribers {
		if err := f.sender.SendMessage(ctx, user.UserID, text); err != nil {
			f.logger.Error("delivery failed", "user", user.UserID, "channel", channel, "error", err)
			failures = append(failures, DeliveryFailure{UserID: user.UserID, Err: err})
			continue
		}
		f.logger.Info("delivered summary", "user", user.UserID, "channel", channel)
	}

	return failures, nil
}
