package boltbackend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/event"
)

func createTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Options{Path: filepath.Join(t.TempDir(), "test.bolt")})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Bootstrap(context.Background(), true))
	return b
}

func beginConn(t *testing.T, b *Backend) backend.Conn {
	t.Helper()
	ctx := context.Background()
	c, err := b.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Begin(ctx))
	return c
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Options{})
	assert.ErrorContains(t, err, "Path is required")
}

func TestBootstrap_Idempotent(t *testing.T) {
	b := createTestBackend(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Bootstrap(context.Background(), true))
	}
	err := b.db.View(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{metaBucket, channelsBucket, eventsBucket} {
			assert.NotNil(t, tx.Bucket(name), "bucket %s", name)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBootstrap_VerifyOnlyFailsOnEmptyFile(t *testing.T) {
	b, err := Open(Options{Path: filepath.Join(t.TempDir(), "empty.bolt")})
	require.NoError(t, err)
	defer b.Close()

	err = b.Bootstrap(context.Background(), false)
	assert.ErrorContains(t, err, "schema not initialized")
}

func TestBootstrap_RejectsNewerSchema(t *testing.T) {
	b := createTestBackend(t)
	require.NoError(t, b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).Put(schemaVersionKey, []byte("42"))
	}))
	assert.ErrorContains(t, b.Bootstrap(context.Background(), true), "newer than supported")
}

func TestConn_FIFOAndRoundTrip(t *testing.T) {
	b := createTestBackend(t)
	ctx := context.Background()

	in := []event.Event{
		event.New([]byte("first"), map[string]string{"n": "1"}),
		event.New([]byte{0, 0xff}, nil),
		event.New(nil, map[string]string{"a": "x", "b": ""}),
	}

	c := beginConn(t, b)
	for i, ev := range in {
		seq, err := c.Append(ctx, "ch", ev, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}
	require.NoError(t, c.Commit())

	require.NoError(t, c.Begin(ctx))
	n, err := c.Count(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, want := range in {
		got, _, ok, err := c.ClaimOldest(ctx, "ch")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, want.Equal(got), "got %v want %v", got, want)
	}
	_, _, ok, err := c.ClaimOldest(ctx, "ch")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Commit())
	require.NoError(t, c.Release())
}

func TestConn_UnknownChannelIsEmpty(t *testing.T) {
	b := createTestBackend(t)
	c := beginConn(t, b)
	defer c.Release()

	_, _, ok, err := c.ClaimOldest(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.Count(context.Background(), "nope")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConn_RollbackRestores(t *testing.T) {
	b := createTestBackend(t)
	ctx := context.Background()

	c := beginConn(t, b)
	_, err := c.Append(ctx, "ch", event.New([]byte("keep"), nil), 0)
	require.NoError(t, err)
	require.NoError(t, c.Commit())

	require.NoError(t, c.Begin(ctx))
	_, err = c.Append(ctx, "ch", event.New([]byte("ghost"), nil), 0)
	require.NoError(t, err)
	_, _, ok, err := c.ClaimOldest(ctx, "ch")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.Rollback())

	require.NoError(t, c.Begin(ctx))
	defer c.Release()
	n, err := c.Count(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	ev, _, ok, err := c.ClaimOldest(ctx, "ch")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "keep", string(ev.Body))
}

func TestConn_Capacity(t *testing.T) {
	b := createTestBackend(t)
	ctx := context.Background()
	c := beginConn(t, b)
	defer c.Release()

	_, err := c.Append(ctx, "ch", event.Event{}, 1)
	require.NoError(t, err)
	_, err = c.Append(ctx, "ch", event.Event{}, 1)
	assert.ErrorIs(t, err, backend.ErrChannelFull)

	_, _, ok, err := c.ClaimOldest(ctx, "ch")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = c.Append(ctx, "ch", event.Event{}, 1)
	assert.NoError(t, err)
}

func TestConn_NoTransaction(t *testing.T) {
	b := createTestBackend(t)
	ctx := context.Background()
	c, err := b.Acquire(ctx)
	require.NoError(t, err)

	_, err = c.Append(ctx, "ch", event.Event{}, 0)
	assert.ErrorIs(t, err, backend.ErrNoTransaction)
	assert.ErrorIs(t, c.Commit(), backend.ErrNoTransaction)
	assert.NoError(t, c.Release())
}

func TestConn_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bolt")
	ctx := context.Background()

	b1, err := Open(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, b1.Bootstrap(ctx, true))
	c := beginConn(t, b1)
	_, err = c.Append(ctx, "ch", event.New([]byte("durable"), nil), 0)
	require.NoError(t, err)
	require.NoError(t, c.Commit())
	require.NoError(t, b1.Close())

	b2, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer b2.Close()
	require.NoError(t, b2.Bootstrap(ctx, false))

	c2 := beginConn(t, b2)
	defer c2.Release()
	seq, err := c2.Append(ctx, "ch", event.New([]byte("next"), nil), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
	ev, _, ok, err := c2.ClaimOldest(ctx, "ch")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "durable", string(ev.Body))
}
