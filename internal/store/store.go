package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/event"
)

// MaxChannelNameLen is the longest channel name in bytes, after
// normalization. It matches the key column width of the SQL schema.
const MaxChannelNameLen = 255

// MaxHeaderKeyLen is the longest header key in bytes. Keys and values are
// otherwise opaque and stored byte for byte.
const MaxHeaderKeyLen = 255

var (
	// ErrInvalidChannel is returned for empty, oversized or non-UTF-8 names.
	ErrInvalidChannel = errors.New("invalid channel name")

	// ErrInvalidHeader is returned by Persist for oversized header keys.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrChannelFull is returned by Persist when the channel is at capacity.
	ErrChannelFull = backend.ErrChannelFull
)

// OpError records the operation and channel a backend failure happened on.
type OpError struct {
	Op      string
	Channel string
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s channel %q: %v", e.Op, e.Channel, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Store is the event queue. It is stateless apart from its options and safe
// for concurrent use; the Conn passed to each call is not.
type Store struct {
	capacity int64
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity bounds each channel to n outstanding events. Zero or
// negative means unbounded.
func WithCapacity(n int64) Option {
	return func(s *Store) {
		if n < 0 {
			n = 0
		}
		s.capacity = n
	}
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the per-channel bound, 0 when unbounded.
func (s *Store) Capacity() int64 {
	return s.capacity
}

// NormalizeChannel validates name and returns its NFC form.
func NormalizeChannel(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidChannel)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidChannel)
	}
	normalized := norm.NFC.String(name)
	if len(normalized) > MaxChannelNameLen {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidChannel, MaxChannelNameLen)
	}
	return normalized, nil
}

// Persist appends ev to channel inside conn's transaction and returns the
// sequence number it was assigned.
func (s *Store) Persist(ctx context.Context, conn backend.Conn, channel string, ev event.Event) (int64, error) {
	name, err := NormalizeChannel(channel)
	if err != nil {
		return 0, &OpError{Op: "persist", Channel: channel, Err: err}
	}
	for k := range ev.Headers {
		if len(k) > MaxHeaderKeyLen {
			err := fmt.Errorf("%w: key longer than %d bytes", ErrInvalidHeader, MaxHeaderKeyLen)
			return 0, &OpError{Op: "persist", Channel: name, Err: err}
		}
	}
	seq, err := conn.Append(ctx, name, ev, s.capacity)
	if err != nil {
		return 0, &OpError{Op: "persist", Channel: name, Err: err}
	}
	return seq, nil
}

// RemoveOldest claims the head of channel inside conn's transaction. It
// returns nil, nil when the channel has nothing to claim.
func (s *Store) RemoveOldest(ctx context.Context, conn backend.Conn, channel string) (*event.Event, error) {
	name, err := NormalizeChannel(channel)
	if err != nil {
		return nil, &OpError{Op: "remove", Channel: channel, Err: err}
	}
	ev, _, ok, err := conn.ClaimOldest(ctx, name)
	if err != nil {
		return nil, &OpError{Op: "remove", Channel: name, Err: err}
	}
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// Size returns the number of outstanding events in channel as seen by conn's
// transaction.
func (s *Store) Size(ctx context.Context, conn backend.Conn, channel string) (int64, error) {
	name, err := NormalizeChannel(channel)
	if err != nil {
		return 0, &OpError{Op: "size", Channel: channel, Err: err}
	}
	n, err := conn.Count(ctx, name)
	if err != nil {
		return 0, &OpError{Op: "size", Channel: name, Err: err}
	}
	return n, nil
}
