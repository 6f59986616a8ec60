package sqlbackend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chanq/internal/backend"
)

// createTestBackend opens a bootstrapped sqlite backend in a temp dir.
func createTestBackend(t *testing.T) *Backend {
	t.Helper()
	return openSQLite(t, filepath.Join(t.TempDir(), "test.db"), true)
}

func openSQLite(t *testing.T, path string, bootstrap bool) *Backend {
	t.Helper()
	dsn, err := BuildDSN(SQLite, path, "", "")
	require.NoError(t, err)

	b, err := Open(context.Background(), Options{Dialect: SQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	if bootstrap {
		require.NoError(t, b.Bootstrap(context.Background(), true))
	}
	return b
}

// beginConn acquires a connection and starts a transaction on it.
func beginConn(t *testing.T, b *Backend) backend.Conn {
	t.Helper()
	ctx := context.Background()
	c, err := b.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Begin(ctx))
	return c
}
