// Package backend defines the capability contract a durable store must meet
// to hold channels.
//
// A Backend hands out pooled connections. A Conn runs one backend
// transaction at a time and exposes the three channel primitives the event
// store is built from: append, claim-oldest and count. Implementations live
// in sub-packages (sqlbackend, boltbackend).
//
// # Ordering contract
//
// Append assigns each event the next sequence number of its channel while
// holding an exclusive lock on that channel's counter until the enclosing
// transaction ends. Sequence order therefore equals commit order across
// concurrent producers. ClaimOldest returns the lowest outstanding sequence
// number not locked by another in-flight transaction and deletes it inside
// the caller's transaction, so a rollback puts it back at the head.
package backend

import (
	"context"
	"errors"

	"github.com/roach88/chanq/internal/event"
)

// ErrChannelFull is returned by Append when the channel already holds the
// configured maximum number of events.
var ErrChannelFull = errors.New("channel is at capacity")

// ErrNoTransaction is returned by Conn methods called outside Begin/Commit.
var ErrNoTransaction = errors.New("no transaction in progress")

// Backend is a pool of connections onto a durable, transactional store.
type Backend interface {
	// Name identifies the backend in logs ("sqlite", "postgres", "bolt", ...).
	Name() string

	// Bootstrap makes sure the channel schema exists. When create is false it
	// only verifies the schema. Bootstrap is idempotent.
	Bootstrap(ctx context.Context, create bool) error

	// Acquire takes a connection from the pool. It may block while the pool
	// is exhausted.
	Acquire(ctx context.Context) (Conn, error)

	// Close releases every pooled connection.
	Close() error
}

// Conn is one pooled connection. A Conn is not safe for concurrent use.
type Conn interface {
	// Begin starts a backend transaction.
	Begin(ctx context.Context) error

	// Commit commits the current transaction.
	Commit() error

	// Rollback aborts the current transaction.
	Rollback() error

	// Release returns the connection to its pool. A transaction still in
	// progress is rolled back first.
	Release() error

	// Append writes ev at the tail of channel and returns its sequence
	// number. When capacity is positive and the channel already holds that
	// many events, Append returns ErrChannelFull.
	Append(ctx context.Context, channel string, ev event.Event, capacity int64) (int64, error)

	// ClaimOldest removes and returns the head of channel. ok is false when
	// the channel has no event this transaction can claim.
	ClaimOldest(ctx context.Context, channel string) (ev event.Event, seq int64, ok bool, err error)

	// Count returns the number of events in channel visible to this
	// transaction.
	Count(ctx context.Context, channel string) (int64, error)
}
