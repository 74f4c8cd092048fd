package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubedigest/model"
	"tubedigest/notify"
	"tubedigest/process"
	"tubedigest/storage"
)

type stubMessenger struct {
	replies []string
	to      []model.UserID
}

func (s *stubMessenger) SendMessage(_ context.Context, userID model.UserID, text string) error {
	s.to = append(s.to, userID)
	s.replies = append(s.replies, text)

	return nil
}

func (s *stubMessenger) GetUpdates(_ context.Context, _ int64, _ int) ([]notify.Update, error) {
	return nil, nil
}

type stubUsers struct {
	users map[model.UserID]*model.User
	saved []model.User
}

func (s *stubUsers) ActiveChannels(_ context.Context) ([]model.ChannelConfig, error) {
	return nil, nil
}

func (s *stubUsers) Subscribers(_ context.Context, _ model.ChannelRef) ([]model.User, error) {
	return nil, nil
}

func (s *stubUsers) User(_ context.Context, id model.UserID) (*model.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return user, nil
}

func (s *stubUsers) SaveUser(_ context.Context, user model.User) error {
	s.saved = append(s.saved, user)
	if s.users == nil {
		s.users = map[model.UserID]*model.User{}
	}
	s.users[user.UserID] = &user

	return nil
}

func update(chatID int64, username, text string) notify.Update {
	return notify.Update{
		UpdateID: 1,
		Message: &notify.Message{
			Text: text,
			Chat: notify.Chat{ID: chatID, Username: username},
		},
	}
}

func TestListenerRegistration(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("unknown user is asked for the password", func(t *testing.T) {
		messenger := &stubMessenger{}
		listener := NewListener(messenger, &stubUsers{}, &stubPipeline{}, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "hola"))

		require.Len(t, messenger.replies, 1)
		assert.Equal(t, replyAskPassword, messenger.replies[0])
		assert.Equal(t, model.UserID("42"), messenger.to[0])
	})

	t.Run("correct password registers the user", func(t *testing.T) {
		messenger := &stubMessenger{}
		users := &stubUsers{}
		listener := NewListener(messenger, users, &stubPipeline{}, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "hola"))
		listener.handleUpdate(context.Background(), update(42, "ana", "secreto"))

		require.Len(t, users.saved, 1)
		assert.Equal(t, model.UserID("42"), users.saved[0].UserID)
		assert.Equal(t, "ana", users.saved[0].Username)
		assert.True(t, users.saved[0].Active)
		assert.Equal(t, replyWelcome, messenger.replies[len(messenger.replies)-1])
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		messenger := &stubMessenger{}
		users := &stubUsers{}
		listener := NewListener(messenger, users, &stubPipeline{}, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "hola"))
		listener.handleUpdate(context.Background(), update(42, "ana", "nope"))

		assert.Empty(t, users.saved)
		assert.Equal(t, replyWrongPassword, messenger.replies[len(messenger.replies)-1])
	})

	t.Run("deactivated user is ignored", func(t *testing.T) {
		messenger := &stubMessenger{}
		users := &stubUsers{users: map[model.UserID]*model.User{
			"42": {UserID: "42", Active: false},
		}}
		listener := NewListener(messenger, users, &stubPipeline{}, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "hola"))

		assert.Empty(t, messenger.replies)
	})
}

func TestListenerSubmission(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	registered := func() *stubUsers {
		return &stubUsers{users: map[model.UserID]*model.User{
			"42": {UserID: "42", Username: "ana", Active: true},
		}}
	}

	t.Run("unrecognized input", func(t *testing.T) {
		messenger := &stubMessenger{}
		listener := NewListener(messenger, registered(), &stubPipeline{}, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "qué tal el mercado hoy?"))

		require.Len(t, messenger.replies, 1)
		assert.Equal(t, replyNotAVideo, messenger.replies[0])
	})

	t.Run("fresh summary includes the title", func(t *testing.T) {
		messenger := &stubMessenger{}
		pipeline := &stubPipeline{results: map[model.VideoID]*process.Result{
			"dQw4w9WgXcQ": {VideoID: "dQw4w9WgXcQ", Title: "Un video", Summary: "el resumen"},
		}}
		listener := NewListener(messenger, registered(), pipeline, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "https://youtu.be/dQw4w9WgXcQ"))

		require.Len(t, messenger.replies, 2)
		assert.Equal(t, replyProcessing, messenger.replies[0])
		assert.Equal(t, "Un video\n\nel resumen\n\nhttps://www.youtube.com/watch?v=dQw4w9WgXcQ", messenger.replies[1])
	})

	t.Run("stored summary omits the title", func(t *testing.T) {
		messenger := &stubMessenger{}
		pipeline := &stubPipeline{results: map[model.VideoID]*process.Result{
			"dQw4w9WgXcQ": {VideoID: "dQw4w9WgXcQ", Summary: "el resumen", Cached: true},
		}}
		listener := NewListener(messenger, registered(), pipeline, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "dQw4w9WgXcQ"))

		last := messenger.replies[len(messenger.replies)-1]
		assert.Equal(t, "el resumen\n\nhttps://www.youtube.com/watch?v=dQw4w9WgXcQ", last)
		assert.False(t, strings.Contains(last, "Un video"))
	})

	t.Run("in-flight video", func(t *testing.T) {
		messenger := &stubMessenger{}
		pipeline := &stubPipeline{errFor: map[model.VideoID]error{
			"dQw4w9WgXcQ": process.ErrInFlight,
		}}
		listener := NewListener(messenger, registered(), pipeline, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "dQw4w9WgXcQ"))

		assert.Equal(t, replyInFlight, messenger.replies[len(messenger.replies)-1])
	})

	t.Run("generation failure", func(t *testing.T) {
		messenger := &stubMessenger{}
		pipeline := &stubPipeline{errFor: map[model.VideoID]error{
			"dQw4w9WgXcQ": errors.New("model overloaded"),
		}}
		listener := NewListener(messenger, registered(), pipeline, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "dQw4w9WgXcQ"))

		assert.Equal(t, replyFailed, messenger.replies[len(messenger.replies)-1])
	})

	t.Run("submission has no channel", func(t *testing.T) {
		pipeline := &stubPipeline{
			results: map[model.VideoID]*process.Result{
				"dQw4w9WgXcQ": {VideoID: "dQw4w9WgXcQ", Summary: "el resumen"},
			},
		}
		var gotChannel model.ChannelRef = "sentinel"
		pipeline.onProcess = func(_ model.VideoID, channel model.ChannelRef, _ time.Time) {
			gotChannel = channel
		}
		listener := NewListener(&stubMessenger{}, registered(), pipeline, "secreto", logger)

		listener.handleUpdate(context.Background(), update(42, "ana", "dQw4w9WgXcQ"))

		assert.Equal(t, model.ChannelRef(""), gotChannel)
	})
}
