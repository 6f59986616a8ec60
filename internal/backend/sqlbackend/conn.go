package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/event"
)

// conn pins one pooled connection for the lifetime of a transaction handle.
type conn struct {
	c     *sql.Conn
	stmts *statements
	tx    *sql.Tx
}

func (c *conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return errors.New("begin: transaction already in progress")
	}
	tx, err := c.c.BeginTx(ctx, nil)
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
	// sql.ErrTxDone means the driver already ended it (e.g. context cancel).
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (c *conn) Release() error {
	var rbErr error
	if c.tx != nil {
		rbErr = c.Rollback()
	}
	if err := c.c.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return errors.Join(rbErr, fmt.Errorf("release: %w", err))
	}
	return rbErr
}

// Append inserts ev at the tail of channel.
//
// The counter UPDATE takes the channel row lock before the capacity check,
// so concurrent producers on one channel see each other's counts.
func (c *conn) Append(ctx context.Context, channel string, ev event.Event, capacity int64) (int64, error) {
	if c.tx == nil {
		return 0, backend.ErrNoTransaction
	}

	if _, err := c.tx.ExecContext(ctx, c.stmts.insertChannel, channel); err != nil {
		return 0, fmt.Errorf("append: ensure channel: %w", err)
	}
	if _, err := c.tx.ExecContext(ctx, c.stmts.bumpSeq, channel); err != nil {
		return 0, fmt.Errorf("append: bump sequence: %w", err)
	}

	var seq int64
	if err := c.tx.QueryRowContext(ctx, c.stmts.readSeq, channel).Scan(&seq); err != nil {
		return 0, fmt.Errorf("append: read sequence: %w", err)
	}

	if capacity > 0 {
		n, err := c.count(ctx, channel)
		if err != nil {
			return 0, fmt.Errorf("append: %w", err)
		}
		if n >= capacity {
			return 0, backend.ErrChannelFull
		}
	}

	// A nil []byte binds as NULL, which the NOT NULL payload column rejects.
	payload := ev.Body
	if payload == nil {
		payload = []byte{}
	}
	if _, err := c.tx.ExecContext(ctx, c.stmts.insertEvent, channel, seq, payload); err != nil {
		return 0, fmt.Errorf("append: insert event: %w", err)
	}

	// Headers bind as bytes so drivers never validate or transcode them.
	for _, k := range ev.HeaderKeys() {
		if _, err := c.tx.ExecContext(ctx, c.stmts.insertHeader, channel, seq, []byte(k), []byte(ev.Headers[k])); err != nil {
			return 0, fmt.Errorf("append: insert header %q: %w", k, err)
		}
	}

	return seq, nil
}

// ClaimOldest locks the head row, reads it with its headers, and deletes
// both inside the current transaction.
func (c *conn) ClaimOldest(ctx context.Context, channel string) (event.Event, int64, bool, error) {
	if c.tx == nil {
		return event.Event{}, 0, false, backend.ErrNoTransaction
	}

	var (
		seq     int64
		payload []byte
	)
	err := c.tx.QueryRowContext(ctx, c.stmts.selectHead, channel).Scan(&seq, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, 0, false, nil
	}
	if err != nil {
		return event.Event{}, 0, false, fmt.Errorf("claim: select head: %w", err)
	}

	headers, err := c.readHeaders(ctx, channel, seq)
	if err != nil {
		return event.Event{}, 0, false, err
	}

	if _, err := c.tx.ExecContext(ctx, c.stmts.deleteHeaders, channel, seq); err != nil {
		return event.Event{}, 0, false, fmt.Errorf("claim: delete headers: %w", err)
	}
	if _, err := c.tx.ExecContext(ctx, c.stmts.deleteEvent, channel, seq); err != nil {
		return event.Event{}, 0, false, fmt.Errorf("claim: delete event: %w", err)
	}

	return event.Event{Headers: headers, Body: payload}, seq, true, nil
}

func (c *conn) readHeaders(ctx context.Context, channel string, seq int64) (map[string]string, error) {
	rows, err := c.tx.QueryContext(ctx, c.stmts.selectHeaders, channel, seq)
	if err != nil {
		return nil, fmt.Errorf("claim: query headers: %w", err)
	}
	defer rows.Close()

	headers := make(map[string]string)
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("claim: scan header: %w", err)
		}
		headers[string(k)] = string(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate headers: %w", err)
	}
	return headers, nil
}

func (c *conn) Count(ctx context.Context, channel string) (int64, error) {
	if c.tx == nil {
		return 0, backend.ErrNoTransaction
	}
	return c.count(ctx, channel)
}

func (c *conn) count(ctx context.Context, channel string) (int64, error) {
	var n int64
	if err := c.tx.QueryRowContext(ctx, c.stmts.countEvents, channel).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
