package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/event"
)

func TestNormalizeChannel(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "ch0", want: "ch0"},
		{name: "nfd to nfc", in: "cafe\u0301", want: "caf\u00e9"},
		{name: "already nfc", in: "caf\u00e9", want: "caf\u00e9"},
		{name: "empty", in: "", wantErr: true},
		{name: "invalid utf8", in: "\xff\xfe", wantErr: true},
		{name: "max length", in: strings.Repeat("a", MaxChannelNameLen), want: strings.Repeat("a", MaxChannelNameLen)},
		{name: "too long", in: strings.Repeat("a", MaxChannelNameLen+1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeChannel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChannel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithCapacity(t *testing.T) {
	assert.Equal(t, int64(0), New().Capacity())
	assert.Equal(t, int64(10), New(WithCapacity(10)).Capacity())
	assert.Equal(t, int64(0), New(WithCapacity(-5)).Capacity())
}

func TestStore_FIFOPerChannel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		s := New()
		ctx := context.Background()

		inTx(t, b, func(conn backend.Conn) {
			for i := 0; i < 5; i++ {
				_, err := s.Persist(ctx, conn, "ch", event.New([]byte{byte(i)}, nil))
				require.NoError(t, err)
			}
		})

		inTx(t, b, func(conn backend.Conn) {
			for i := 0; i < 5; i++ {
				ev, err := s.RemoveOldest(ctx, conn, "ch")
				require.NoError(t, err)
				require.NotNil(t, ev)
				assert.Equal(t, []byte{byte(i)}, ev.Body)
			}
			ev, err := s.RemoveOldest(ctx, conn, "ch")
			require.NoError(t, err)
			assert.Nil(t, ev)
		})
	})
}

func TestStore_CommitOrderAcrossTransactions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		s := New()
		ctx := context.Background()

		for _, body := range []string{"t1", "t2", "t3"} {
			inTx(t, b, func(conn backend.Conn) {
				_, err := s.Persist(ctx, conn, "ch", event.New([]byte(body), nil))
				require.NoError(t, err)
			})
		}

		inTx(t, b, func(conn backend.Conn) {
			for _, want := range []string{"t1", "t2", "t3"} {
				ev, err := s.RemoveOldest(ctx, conn, "ch")
				require.NoError(t, err)
				require.NotNil(t, ev)
				assert.Equal(t, want, string(ev.Body))
			}
		})
	})
}

func TestStore_NormalizedNamesShareChannel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		s := New()
		ctx := context.Background()

		inTx(t, b, func(conn backend.Conn) {
			_, err := s.Persist(ctx, conn, "cafe\u0301", event.New([]byte("x"), nil))
			require.NoError(t, err)

			n, err := s.Size(ctx, conn, "caf\u00e9")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			ev, err := s.RemoveOldest(ctx, conn, "caf\u00e9")
			require.NoError(t, err)
			require.NotNil(t, ev)
		})
	})
}

func TestStore_Capacity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		s := New(WithCapacity(3))
		ctx := context.Background()

		inTx(t, b, func(conn backend.Conn) {
			for i := 0; i < 3; i++ {
				_, err := s.Persist(ctx, conn, "ch", event.New(nil, nil))
				require.NoError(t, err)
			}
			_, err := s.Persist(ctx, conn, "ch", event.New(nil, nil))
			require.ErrorIs(t, err, ErrChannelFull)

			var opErr *OpError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, "persist", opErr.Op)
			assert.Equal(t, "ch", opErr.Channel)
		})
	})
}

func TestStore_InvalidChannel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		s := New()
		ctx := context.Background()

		inTx(t, b, func(conn backend.Conn) {
			_, err := s.Persist(ctx, conn, "", event.Event{})
			assert.ErrorIs(t, err, ErrInvalidChannel)
			_, err = s.RemoveOldest(ctx, conn, "")
			assert.ErrorIs(t, err, ErrInvalidChannel)
			_, err = s.Size(ctx, conn, "")
			assert.ErrorIs(t, err, ErrInvalidChannel)
		})
	})
}

func TestStore_HeaderKeyLength(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		s := New()
		ctx := context.Background()

		inTx(t, b, func(conn backend.Conn) {
			long := map[string]string{strings.Repeat("h", MaxHeaderKeyLen+1): "v"}
			_, err := s.Persist(ctx, conn, "ch", event.New(nil, long))
			assert.ErrorIs(t, err, ErrInvalidHeader)

			n, err := s.Size(ctx, conn, "ch")
			require.NoError(t, err)
			assert.Zero(t, n, "rejected before reaching the backend")
		})
	})
}

func TestStore_ErrorCarriesContext(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		s := New()
		ctx := context.Background()

		conn, err := b.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()

		// No Begin: the backend refuses and the store adds op and channel.
		_, err = s.RemoveOldest(ctx, conn, "orders")
		require.ErrorIs(t, err, backend.ErrNoTransaction)
		assert.Contains(t, err.Error(), `remove channel "orders"`)
	})
}
