package channel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/config"
	"github.com/roach88/chanq/internal/event"
)

// testConfigs builds a config per embedded backend, rooted in a temp dir.
var testConfigs = []struct {
	name string
	cfg  func(dir string) config.Config
}{
	{"sqlite", func(dir string) config.Config {
		return config.Config{CreateSchema: true, DBType: config.DBTypeSQLite, URL: filepath.Join(dir, "chanq.db")}
	}},
	{"bolt", func(dir string) config.Config {
		return config.Config{CreateSchema: true, DBType: config.DBTypeBolt, URL: filepath.Join(dir, "chanq.bolt")}
	}},
}

// forEachBackend runs fn once per embedded backend with a config pointing at
// a fresh directory.
func forEachBackend(t *testing.T, fn func(t *testing.T, cfg config.Config)) {
	for _, tc := range testConfigs {
		t.Run(tc.name, func(t *testing.T) {
			fn(t, tc.cfg(t.TempDir()))
		})
	}
}

func openProvider(t *testing.T, cfg config.Config, opts ...Option) *Provider {
	t.Helper()
	p, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// begin returns an active handle on a new session.
func begin(t *testing.T, p *Provider) (context.Context, *Tx) {
	t.Helper()
	ctx := NewSession(context.Background())
	tx, err := p.Transaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Begin(ctx))
	return ctx, tx
}

// persistCommitted writes events to channel in one committed transaction.
func persistCommitted(t *testing.T, p *Provider, channel string, events ...event.Event) {
	t.Helper()
	ctx, tx := begin(t, p)
	defer tx.Close()
	for _, ev := range events {
		require.NoError(t, tx.Persist(ctx, channel, ev))
	}
	require.NoError(t, tx.Commit())
}

// sizeOf reads the committed depth of channel.
func sizeOf(t *testing.T, p *Provider, channel string) int64 {
	t.Helper()
	ctx, tx := begin(t, p)
	defer tx.Close()
	n, err := tx.Size(ctx, channel)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return n
}

var errInjected = errors.New("injected failure")

// faultBackend wraps a backend and fails commits or rollbacks on demand.
type faultBackend struct {
	backend.Backend
	failCommit   bool
	failRollback bool
}

func (b *faultBackend) Acquire(ctx context.Context) (backend.Conn, error) {
	c, err := b.Backend.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &faultConn{Conn: c, b: b}, nil
}

type faultConn struct {
	backend.Conn
	b *faultBackend
}

func (c *faultConn) Commit() error {
	if c.b.failCommit {
		c.Conn.Rollback()
		return errInjected
	}
	return c.Conn.Commit()
}

func (c *faultConn) Rollback() error {
	err := c.Conn.Rollback()
	if c.b.failRollback {
		return errInjected
	}
	return err
}
