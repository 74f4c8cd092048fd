// Package storage owns VideoRecord persistence. It is the single writer:
// every state transition goes through BeginProcessing, Complete or Fail,
// each a single atomic transaction against the backing store.
package storage

import (
	"context"
	"errors"
	"time"

	"tubedigest/model"
)

var (
	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyInFlight signals that another caller holds the lease for
	// this video. Expected contention, not a failure.
	ErrAlreadyInFlight = errors.New("video generation already in flight")
)

type VideoStore interface {
	// Lookup returns the current record, or ErrNotFound.
	Lookup(ctx context.Context, id model.VideoID) (*model.VideoRecord, error)
	// BeginProcessing atomically claims a video for summary generation.
	// It inserts a pending record if absent, resets a failed record back
	// to pending, and returns ErrAlreadyInFlight if the record is pending
	// or completed. At most one caller succeeds per attempt, even across
	// processes sharing the store.
	BeginProcessing(ctx context.Context, id model.VideoID, channel model.ChannelRef, publishedAt time.Time) (*Lease, error)
	// Complete transitions pending -> completed and stores the summary.
	Complete(ctx context.Context, id model.VideoID, summary string) error
	// Fail transitions pending -> failed, keeping the reason for
	// diagnostics. A failed record can be claimed again later.
	Fail(ctx context.Context, id model.VideoID, reason string) error
}

// ConfigStore reads channel and subscription configuration. Channels and
// subscriptions are administered outside the core; only users are written,
// through self-registration.
type ConfigStore interface {
	ActiveChannels(ctx context.Context) ([]model.ChannelConfig, error)
	Subscribers(ctx context.Context, channel model.ChannelRef) ([]model.User, error)
	User(ctx context.Context, id model.UserID) (*model.User, error)
	SaveUser(ctx context.Context, user model.User) error
}

type Store interface {
	VideoStore
	ConfigStore
	Close() error
}

// Lease is the right, granted by BeginProcessing, to be the sole generator
// for a video until it resolves through Complete or Fail.
type Lease struct {
	ID    model.VideoID
	store VideoStore
}

// NewLease binds a claimed video to the store that granted the claim.
// Store implementations and their test doubles use it.
func NewLease(id model.VideoID, store VideoStore) *Lease {
	return &Lease{ID: id, store: store}
}

func (l *Lease) Complete(ctx context.Context, summary string) error {
	return l.store.Complete(ctx, l.ID, summary)
}

func (l *Lease) Fail(ctx context.Context, reason string) error {
	return l.store.Fail(ctx, l.ID, reason)
}
