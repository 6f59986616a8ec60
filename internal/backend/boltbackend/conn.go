package boltbackend

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/event"
)

type conn struct {
	db *bbolt.DB
	tx *bbolt.Tx
}

func (c *conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return errors.New("begin: transaction already in progress")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	tx, err := c.db.Begin(true)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	c.tx = tx
	return nil
}

func (c *conn) Commit() error {
	if c.tx == nil {
		return backend.ErrNoTransaction
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (c *conn) Rollback() error {
	if c.tx == nil {
		return backend.ErrNoTransaction
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, bbolt.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (c *conn) Release() error {
	if c.tx != nil {
		return c.Rollback()
	}
	return nil
}

// buckets returns the channels bucket and, when create is set, the
// channel's event bucket. A nil event bucket means the channel is empty.
func (c *conn) buckets(channel string, create bool) (*bbolt.Bucket, *bbolt.Bucket, error) {
	channels := c.tx.Bucket(channelsBucket)
	events := c.tx.Bucket(eventsBucket)
	if channels == nil || events == nil {
		return nil, nil, errors.New("schema not initialized")
	}
	if !create {
		return channels, events.Bucket([]byte(channel)), nil
	}
	evb, err := events.CreateBucketIfNotExists([]byte(channel))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bucket for channel %q: %w", channel, err)
	}
	return channels, evb, nil
}

func (c *conn) Append(ctx context.Context, channel string, ev event.Event, capacity int64) (int64, error) {
	if c.tx == nil {
		return 0, backend.ErrNoTransaction
	}
	channels, evb, err := c.buckets(channel, true)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	state := decodeState(channels.Get([]byte(channel)))
	if capacity > 0 && int64(state.depth) >= capacity {
		return 0, backend.ErrChannelFull
	}
	state.lastSeq++
	state.depth++

	if err := evb.Put(seqKey(state.lastSeq), encodeRecord(ev)); err != nil {
		return 0, fmt.Errorf("append: put event: %w", err)
	}
	if err := channels.Put([]byte(channel), state.encode()); err != nil {
		return 0, fmt.Errorf("append: put channel state: %w", err)
	}
	return int64(state.lastSeq), nil
}

func (c *conn) ClaimOldest(ctx context.Context, channel string) (event.Event, int64, bool, error) {
	if c.tx == nil {
		return event.Event{}, 0, false, backend.ErrNoTransaction
	}
	channels, evb, err := c.buckets(channel, false)
	if err != nil {
		return event.Event{}, 0, false, fmt.Errorf("claim: %w", err)
	}
	if evb == nil {
		return event.Event{}, 0, false, nil
	}

	k, v := evb.Cursor().First()
	if k == nil {
		return event.Event{}, 0, false, nil
	}
	seq := int64(decodeSeq(k))

	ev, err := decodeRecord(v)
	if err != nil {
		return event.Event{}, 0, false, fmt.Errorf("claim: decode event %d: %w", seq, err)
	}

	if err := evb.Delete(seqKey(uint64(seq))); err != nil {
		return event.Event{}, 0, false, fmt.Errorf("claim: delete event: %w", err)
	}
	state := decodeState(channels.Get([]byte(channel)))
	if state.depth > 0 {
		state.depth--
	}
	if err := channels.Put([]byte(channel), state.encode()); err != nil {
		return event.Event{}, 0, false, fmt.Errorf("claim: put channel state: %w", err)
	}
	return ev, seq, true, nil
}

func (c *conn) Count(ctx context.Context, channel string) (int64, error) {
	if c.tx == nil {
		return 0, backend.ErrNoTransaction
	}
	channels, _, err := c.buckets(channel, false)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int64(decodeState(channels.Get([]byte(channel))).depth), nil
}
