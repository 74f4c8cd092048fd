package notify_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubedigest/model"
	"tubedigest/notify"
)

type stubConfig struct {
	subscribers []model.User
	err         error
}

func (s *stubConfig) ActiveChannels(_ context.Context) ([]model.ChannelConfig, error) {
	return nil, nil
}

func (s *stubConfig) Subscribers(_ context.Context, _ model.ChannelRef) ([]model.User, error) {
	return s.subscribers, s.err
}

func (s *stubConfig) User(_ context.Context, _ model.UserID) (*model.User, error) {
	return nil, nil
}

func (s *stubConfig) SaveUser(_ context.Context, _ model.User) error {
	return nil
}

type stubSender struct {
	sent    []model.UserID
	failFor map[model.UserID]error
}

func (s *stubSender) SendMessage(_ context.Context, userID model.UserID, _ string) error {
	if err, ok := s.failFor[userID]; ok {
		return err
	}
	s.sent = append(s.sent, userID)

	return nil
}

func TestBroadcast(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	channel := model.ChannelRef("UCtest12345")
	users := []model.User{
		{UserID: "1", Active: true},
		{UserID: "2", Active: true},
		{UserID: "3", Active: true},
	}

	t.Run("all delivered", func(t *testing.T) {
		sender := &stubSender{}
		fanout := notify.NewFanout(&stubConfig{subscribers: users}, sender, logger)

		failures, err := fanout.Broadcast(context.Background(), channel, "resumen")

		require.NoError(t, err)
		assert.Empty(t, failures)
		assert.Equal(t, []model.UserID{"1", "2", "3"}, sender.sent)
	})

	t.Run("one failure does not block the rest", func(t *testing.T) {
		sender := &stubSender{failFor: map[model.UserID]error{
			"2": errors.New("blocked by the user"),
		}}
		fanout := notify.NewFanout(&stubConfig{subscribers: users}, sender, logger)

		failures, err := fanout.Broadcast(context.Background(), channel, "resumen")

		require.NoError(t, err)
		require.Len(t, failures, 1)
		assert.Equal(t, model.UserID("2"), failures[0].UserID)
		assert.Equal(t, []model.UserID{"1", "3"}, sender.sent)
	})

	t.Run("subscriber lookup failure is fatal", func(t *testing.T) {
		fanout := notify.NewFanout(&stubConfig{err: errors.New("db down")}, &stubSender{}, logger)

		_, err := fanout.Broadcast(context.Background(), channel, "resumen")

		assert.ErrorContains(t, err, "db down")
	})
}
