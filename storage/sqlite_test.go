package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubedigest/model"
)

func testStore(t *testing.T) *Sqlite {
	t.Helper()
	store, err := NewSqlite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestVideoLifecycle(t *testing.T) {
	ctx := context.Background()
	id := model.VideoID("dQw4w9WgXcQ")
	channel := model.ChannelRef("UCtest12345")
	published := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)

	t.Run("lookup of unknown video", func(t *testing.T) {
		store := testStore(t)

		_, err := store.Lookup(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("begin, complete, lookup", func(t *testing.T) {
		store := testStore(t)

		lease, err := store.BeginProcessing(ctx, id, channel, published)
		require.NoError(t, err)
		require.NoError(t, lease.Complete(ctx, "el resumen"))

		rec, err := store.Lookup(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.VideoID)
		assert.Equal(t, channel, rec.ChannelRef)
		assert.Equal(t, model.StateCompleted, rec.State)
		assert.Equal(t, "el resumen", rec.SummaryText)
		assert.Empty(t, rec.FailReason)
	})

	t.Run("pending blocks a second begin", func(t *testing.T) {
		store := testStore(t)

		_, err := store.BeginProcessing(ctx, id, channel, published)
		require.NoError(t, err)

		_, err = store.BeginProcessing(ctx, id, channel, published)
		assert.ErrorIs(t, err, ErrAlreadyInFlight)
	})

	t.Run("completed blocks a new begin", func(t *testing.T) {
		store := testStore(t)

		lease, err := store.BeginProcessing(ctx, id, channel, published)
		require.NoError(t, err)
		require.NoError(t, lease.Complete(ctx, "el resumen"))

		_, err = store.BeginProcessing(ctx, id, channel, published)
		assert.ErrorIs(t, err, ErrAlreadyInFlight)
	})

	t.Run("failed is reset to pending by the next begin", func(t *testing.T) {
		store := testStore(t)

		lease, err := store.BeginProcessing(ctx, id, channel, published)
		require.NoError(t, err)
		require.NoError(t, lease.Fail(ctx, "model overloaded"))

		rec, err := store.Lookup(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StateFailed, rec.State)
		assert.Equal(t, "model overloaded", rec.FailReason)

		lease, err = store.BeginProcessing(ctx, id, channel, published)
		require.NoError(t, err)

		rec, err = store.Lookup(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatePending, rec.State)
		assert.Empty(t, rec.FailReason)

		require.NoError(t, lease.Complete(ctx, "segundo intento"))
	})

	t.Run("complete outside a pending state fails", func(t *testing.T) {
		store := testStore(t)

		lease, err := store.BeginProcessing(ctx, id, channel, published)
		require.NoError(t, err)
		require.NoError(t, lease.Complete(ctx, "el resumen"))

		assert.ErrorIs(t, lease.Complete(ctx, "otra vez"), ErrNotFound)
		assert.ErrorIs(t, lease.Fail(ctx, "tarde"), ErrNotFound)
	})

	t.Run("on-demand video without channel", func(t *testing.T) {
		store := testStore(t)

		lease, err := store.BeginProcessing(ctx, id, "", published)
		require.NoError(t, err)
		require.NoError(t, lease.Complete(ctx, "el resumen"))

		rec, err := store.Lookup(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ChannelRef(""), rec.ChannelRef)
	})
}

func TestBeginProcessingConcurrency(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	id := model.VideoID("dQw4w9WgXcQ")
	published := time.Now().UTC()

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.BeginProcessing(ctx, id, "UCtest12345", published)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var claimed, contended int
	for err := range results {
		switch {
		case err == nil:
			claimed++
		case errors.Is(err, ErrAlreadyInFlight):
			contended++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, claimed)
	assert.Equal(t, workers-1, contended)
}

func TestConfigStore(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, store *Sqlite) {
		t.Helper()
		for _, q := range []string{
			`INSERT INTO channels (channel_ref, display_name, language_hint, active)
			 VALUES ('UCaaa', 'Canal A', 'es', 1), ('UCbbb', 'Canal B', 'en', 1), ('UCccc', 'Canal C', 'es', 0)`,
			`INSERT INTO users (user_id, username, active, created_at, updated_at)
			 VALUES ('1', 'ana', 1, '2026-01-01', '2026-01-01'),
			        ('2', 'bruno', 1, '2026-01-01', '2026-01-01'),
			        ('3', 'carla', 0, '2026-01-01', '2026-01-01')`,
			`INSERT INTO user_channels (user_id, channel_ref, subscribed_at)
			 VALUES ('1', 'UCaaa', '2026-01-01'), ('2', 'UCaaa', '2026-01-01'),
			        ('3', 'UCaaa', '2026-01-01'), ('2', 'UCbbb', '2026-01-01')`,
		} {
			_, err := store.db.Exec(q)
			require.NoError(t, err)
		}
	}

	t.Run("active channels", func(t *testing.T) {
		store := testStore(t)
		seed(t, store)

		channels, err := store.ActiveChannels(ctx)
		require.NoError(t, err)
		require.Len(t, channels, 2)
		refs := []model.ChannelRef{channels[0].ChannelRef, channels[1].ChannelRef}
		assert.ElementsMatch(t, []model.ChannelRef{"UCaaa", "UCbbb"}, refs)
	})

	t.Run("subscribers skips inactive users", func(t *testing.T) {
		store := testStore(t)
		seed(t, store)

		users, err := store.Subscribers(ctx, "UCaaa")
		require.NoError(t, err)
		require.Len(t, users, 2)
		ids := []model.UserID{users[0].UserID, users[1].UserID}
		assert.ElementsMatch(t, []model.UserID{"1", "2"}, ids)
	})

	t.Run("save and fetch user", func(t *testing.T) {
		store := testStore(t)

		_, err := store.User(ctx, "42")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, store.SaveUser(ctx, model.User{UserID: "42", Username: "ana", Active: true}))

		user, err := store.User(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "ana", user.Username)
		assert.True(t, user.Active)

		require.NoError(t, store.SaveUser(ctx, model.User{UserID: "42", Username: "ana", Active: false}))
		user, err = store.User(ctx, "42")
		require.NoError(t, err)
		assert.False(t, user.Active)
	})
}
