package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openauthority/idp/internal/idp/store"
)

func TestStoreBasicOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(time.Minute, WithJanitorInterval(0))
	defer s.Close()

	t.Run("get missing returns not found", func(t *testing.T) {
		_, err := s.Get(ctx, store.StagePreAuth, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("set then get round trips", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.StagePreAuth, "a", []byte("payload")))

		got, err := s.Get(ctx, store.StagePreAuth, "a")
		require.NoError(t, err)
		require.Equal(t, []byte("payload"), got)
	})

	t.Run("stages are isolated", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.StagePreAuth, "shared", []byte("pre")))

		_, err := s.Get(ctx, store.StageAuthenticated, "shared")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("setnx rejects live keys", func(t *testing.T) {
		require.NoError(t, s.SetNX(ctx, store.StageAuthCode, "k", []byte("one")))
		require.ErrorIs(t, s.SetNX(ctx, store.StageAuthCode, "k", []byte("two")), store.ErrAlreadyExists)

		got, err := s.Get(ctx, store.StageAuthCode, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("one"), got)
	})

	t.Run("getdel consumes the entry", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.StageAuthCode, "consume", []byte("v")))

		got, err := s.GetDel(ctx, store.StageAuthCode, "consume")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)

		_, err = s.GetDel(ctx, store.StageAuthCode, "consume")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.StagePreAuth, "d", []byte("v")))
		require.NoError(t, s.Delete(ctx, store.StagePreAuth, "d"))
		require.NoError(t, s.Delete(ctx, store.StagePreAuth, "d"))
	})

	t.Run("returned values are copies", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.StagePreAuth, "copy", []byte("orig")))

		got, err := s.Get(ctx, store.StagePreAuth, "copy")
		require.NoError(t, err)
		got[0] = 'X'

		again, err := s.Get(ctx, store.StagePreAuth, "copy")
		require.NoError(t, err)
		require.Equal(t, []byte("orig"), again)
	})
}

func TestStoreExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(time.Minute,
		WithJanitorInterval(0),
		WithStageTTL(store.StageLinkCode, 20*time.Millisecond),
	)
	defer s.Close()

	require.NoError(t, s.Set(ctx, store.StageLinkCode, "short", []byte("v")))
	require.NoError(t, s.Set(ctx, store.StagePreAuth, "long", []byte("v")))

	time.Sleep(40 * time.Millisecond)

	_, err := s.Get(ctx, store.StageLinkCode, "short")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Get(ctx, store.StagePreAuth, "long")
	require.NoError(t, err)

	t.Run("setnx allows reuse after expiry", func(t *testing.T) {
		require.NoError(t, s.SetNX(ctx, store.StageLinkCode, "reuse", []byte("one")))
		time.Sleep(40 * time.Millisecond)
		require.NoError(t, s.SetNX(ctx, store.StageLinkCode, "reuse", []byte("two")))
	})
}

func TestStoreJanitorSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(10*time.Millisecond, WithJanitorInterval(20*time.Millisecond))
	defer s.Close()

	require.NoError(t, s.Set(ctx, store.StagePreAuth, "gone", []byte("v")))

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.stages[store.StagePreAuth]["gone"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}
