package sqlbackend

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/chanq/internal/backend"
)

// Options configures Open.
type Options struct {
	// Dialect selects the SQL flavour.
	Dialect Dialect

	// Driver is the database/sql driver name. Empty means Dialect.DefaultDriver.
	Driver string

	// DSN is passed to sql.Open as is. Use BuildDSN to merge credentials.
	DSN string

	// MaxOpenConns bounds the pool. Zero leaves the database/sql default,
	// except for sqlite which is always limited to one connection.
	MaxOpenConns int
}

// Backend is a database/sql connection pool holding channel tables.
type Backend struct {
	db      *sql.DB
	dialect Dialect
	stmts   statements
}

var _ backend.Backend = (*Backend)(nil)

// Open connects to the database and verifies it is reachable. It does not
// touch the schema; call Bootstrap for that.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	driver := opts.Driver
	if driver == "" {
		driver = opts.Dialect.DefaultDriver
	}
	if err := opts.Dialect.CheckDriver(driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Dialect.Name == SQLite.Name {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	return &Backend{
		db:      db,
		dialect: opts.Dialect,
		stmts:   opts.Dialect.statements(),
	}, nil
}

// Name returns the dialect name.
func (b *Backend) Name() string {
	return b.dialect.Name
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer going through Acquire.
func (b *Backend) DB() *sql.DB {
	return b.db
}

// Acquire takes a dedicated connection from the pool.
func (b *Backend) Acquire(ctx context.Context) (backend.Conn, error) {
	c, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &conn{c: c, stmts: &b.stmts}, nil
}

// Close closes the pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (b *Backend) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := b.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
