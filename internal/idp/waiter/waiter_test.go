package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistrySignal(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[string]()
	handle := reg.Register("key")

	go func() {
		time.Sleep(10 * time.Millisecond)
		reg.Signal("key", "value")
	}()

	got, err := handle.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "value", got)
	require.Zero(t, reg.Pending())
}

func TestRegistrySignalBeforeWait(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[string]()
	handle := reg.Register("key")

	// The buffered channel holds the result until Wait runs.
	require.True(t, reg.Signal("key", "early"))

	got, err := handle.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "early", got)
}

func TestRegistryTimeout(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[string]()
	handle := reg.Register("key")

	_, err := handle.Wait(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.Zero(t, reg.Pending())
}

func TestRegistryContextCancel(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[string]()
	handle := reg.Register("key")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := handle.Wait(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistryFail(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	reg := NewRegistry[string]()
	handle := reg.Register("key")

	require.True(t, reg.Fail("key", sentinel))

	_, err := handle.Wait(context.Background(), time.Second)
	require.ErrorIs(t, err, sentinel)
}

func TestRegistryReplacement(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[string]()
	first := reg.Register("key")
	second := reg.Register("key")

	t.Run("prior waiter is failed", func(t *testing.T) {
		_, err := first.Wait(context.Background(), time.Second)
		require.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("replacement still receives the signal", func(t *testing.T) {
		reg.Signal("key", "v")
		got, err := second.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		require.Equal(t, "v", got)
	})

	t.Run("stale handle cannot evict its replacement", func(t *testing.T) {
		a := reg.Register("again")
		b := reg.Register("again")

		// a was failed by the replacement; its deregistration on return
		// from Wait must not drop b from the registry.
		_, err := a.Wait(context.Background(), time.Second)
		require.ErrorIs(t, err, ErrTimeout)
		require.Equal(t, 1, reg.Pending())

		reg.Signal("again", "ok")
		got, err := b.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		require.Equal(t, "ok", got)
	})
}

func TestHandleDiscard(t *testing.T) {
	t.Parallel()

	t.Run("deregisters the handle", func(t *testing.T) {
		reg := NewRegistry[string]()
		handle := reg.Register("key")

		handle.Discard()
		require.Zero(t, reg.Pending())
		require.False(t, reg.Signal("key", "v"))
	})

	t.Run("leaves a replacement untouched", func(t *testing.T) {
		reg := NewRegistry[string]()
		first := reg.Register("key")
		second := reg.Register("key")

		// discarding the superseded handle must not take the live
		// waiter's slot the way a key-addressed Fail would
		first.Discard()
		require.Equal(t, 1, reg.Pending())

		reg.Signal("key", "v")
		got, err := second.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		require.Equal(t, "v", got)
	})
}

func TestSignalWithoutWaiter(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[string]()
	require.False(t, reg.Signal("nobody", "v"))
	require.False(t, reg.Fail("nobody", errors.New("x")))
}
