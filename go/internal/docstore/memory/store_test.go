package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, w docstore.Watcher) docstore.Update {
	t.Helper()
	select {
	case u, ok := <-w.Updates():
		require.True(t, ok, "watch closed unexpectedly")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return docstore.Update{}
	}
}

func TestGetMissingDocument(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Get(context.Background(), "0042")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestSetThenGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "0042", docstore.Fields{"isPlaying": true}))

	got, err := s.Get(ctx, "0042")
	require.NoError(t, err)
	got["isPlaying"] = false

	again, err := s.Get(ctx, "0042")
	require.NoError(t, err)
	assert.Equal(t, true, again["isPlaying"])
}

func TestWatchDeliversCurrentThenChangesInOrder(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "0042", docstore.Fields{"speed": 1.0}))

	w, err := s.Watch(ctx, "0042")
	require.NoError(t, err)
	defer w.Stop()

	for i := 2; i <= 50; i++ {
		require.NoError(t, s.Set(ctx, "0042", docstore.Fields{"speed": float64(i)}))
	}

	for i := 1; i <= 50; i++ {
		u := receive(t, w)
		require.NoError(t, u.Err)
		assert.Equal(t, float64(i), u.Fields["speed"])
	}
}

func TestWatchOnlySeesItsKey(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	w, err := s.Watch(ctx, "0001")
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, s.Set(ctx, "0002", docstore.Fields{"speed": 2.0}))
	require.NoError(t, s.Set(ctx, "0001", docstore.Fields{"speed": 1.0}))

	u := receive(t, w)
	assert.Equal(t, 1.0, u.Fields["speed"])
}

func TestStopClosesUpdatesAndUnregisters(t *testing.T) {
	t.Parallel()

	s := New()
	w, err := s.Watch(context.Background(), "0042")
	require.NoError(t, err)
	assert.Equal(t, 1, s.WatcherCount("0042"))

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Equal(t, 0, s.WatcherCount("0042"))

	select {
	case _, ok := <-w.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel not closed")
	}
}

func TestWatchEndsWithContext(t *testing.T) {
	t.Parallel()

	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	w, err := s.Watch(ctx, "0042")
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool { return s.WatcherCount("0042") == 0 }, 2*time.Second, 10*time.Millisecond)
	_ = w
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "0042")
	assert.ErrorIs(t, err, docstore.ErrClosed)
	assert.ErrorIs(t, s.Set(context.Background(), "0042", docstore.Fields{}), docstore.ErrClosed)
}
