package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/backend/boltbackend"
	"github.com/roach88/chanq/internal/backend/sqlbackend"
)

// backendFactory opens a bootstrapped backend rooted in a temp dir.
type backendFactory struct {
	name string
	open func(t *testing.T) backend.Backend
}

var testBackends = []backendFactory{
	{"sqlite", openSQLite},
	{"bolt", openBolt},
}

func openSQLite(t *testing.T) backend.Backend {
	t.Helper()
	dsn, err := sqlbackend.BuildDSN(sqlbackend.SQLite, filepath.Join(t.TempDir(), "test.db"), "", "")
	require.NoError(t, err)
	b, err := sqlbackend.Open(context.Background(), sqlbackend.Options{Dialect: sqlbackend.SQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Bootstrap(context.Background(), true))
	return b
}

func openBolt(t *testing.T) backend.Backend {
	t.Helper()
	b, err := boltbackend.Open(boltbackend.Options{Path: filepath.Join(t.TempDir(), "test.bolt")})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Bootstrap(context.Background(), true))
	return b
}

// forEachBackend runs fn once per backend implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend.Backend)) {
	for _, f := range testBackends {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.open(t))
		})
	}
}

// inTx runs fn in a fresh committed transaction.
func inTx(t *testing.T, b backend.Backend, fn func(conn backend.Conn)) {
	t.Helper()
	ctx := context.Background()
	conn, err := b.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	require.NoError(t, conn.Begin(ctx))
	fn(conn)
	require.NoError(t, conn.Commit())
}
