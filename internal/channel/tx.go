package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/event"
	"github.com/roach88/chanq/internal/store"
)

// TxState is the lifecycle state of a transaction handle.
type TxState int

const (
	TxCreated TxState = iota
	TxActive
	TxCommitted
	TxRolledBack
	TxFailed
	TxClosed
)

func (s TxState) String() string {
	switch s {
	case TxCreated:
		return "created"
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	case TxFailed:
		return "failed"
	case TxClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Tx is a transaction handle bound to one session. It pins one backend
// connection from the first Begin until Close.
type Tx struct {
	p       *Provider
	session string

	mu    sync.Mutex
	state TxState
	conn  backend.Conn

	// Per-channel counts of this transaction's writes, reported to metrics
	// on commit.
	persisted map[string]int
	removed   map[string]int
}

func newTx(p *Provider, session string) *Tx {
	return &Tx{p: p, session: session, state: TxCreated}
}

// Session returns the session the handle is bound to.
func (t *Tx) Session() string {
	return t.session
}

// State returns the current lifecycle state.
func (t *Tx) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Begin starts a transaction. It is a no-op when the handle is already
// Active. The first Begin acquires a connection, which may block while the
// pool is exhausted. ctx bounds the whole transaction for SQL backends: if
// it is cancelled before Commit, the transaction is rolled back.
func (t *Tx) Begin(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.p.isClosed() {
		return newClosedError("begin")
	}
	switch t.state {
	case TxActive:
		return nil
	case TxFailed, TxClosed:
		return newStateError("begin", t.state, "")
	}

	if t.conn == nil {
		// Provider.Close must be able to lock this handle while Acquire
		// blocks.
		t.mu.Unlock()
		conn, err := t.p.backend.Acquire(ctx)
		t.mu.Lock()
		if err != nil {
			if t.p.isClosed() {
				return newClosedError("begin")
			}
			return fmt.Errorf("begin: acquire connection: %w", err)
		}
		if t.state == TxClosed {
			_ = conn.Release()
			if t.p.isClosed() {
				return newClosedError("begin")
			}
			return newStateError("begin", t.state, "")
		}
		t.conn = conn
	}

	if err := t.conn.Begin(ctx); err != nil {
		return err
	}
	t.state = TxActive
	t.persisted = nil
	t.removed = nil
	t.p.metrics.active.Inc()
	t.p.log.Debug("transaction begun", "session", t.session)
	return nil
}

// Commit makes the transaction's writes durable. If the backend fails to
// commit, the transaction is rolled back, the handle moves to Failed and a
// commit error is returned. A Failed handle can only be closed.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.p.isClosed() {
		return newClosedError("commit")
	}
	if t.state != TxActive {
		return newStateError("commit", t.state, "")
	}
	t.p.metrics.active.Dec()

	if err := t.conn.Commit(); err != nil {
		if rbErr := t.conn.Rollback(); rbErr != nil && !errors.Is(rbErr, backend.ErrNoTransaction) {
			err = errors.Join(err, rbErr)
		}
		t.state = TxFailed
		t.p.metrics.transactions.WithLabelValues(outcomeCommitFailed).Inc()
		t.p.log.Warn("commit failed", "session", t.session, "error", err)
		return &Error{Code: ErrCodeCommit, Op: "commit", Err: err}
	}

	t.state = TxCommitted
	t.p.metrics.transactions.WithLabelValues(outcomeCommit).Inc()
	for ch, n := range t.persisted {
		t.p.metrics.persisted.WithLabelValues(ch).Add(float64(n))
	}
	for ch, n := range t.removed {
		t.p.metrics.removed.WithLabelValues(ch).Add(float64(n))
	}
	t.persisted = nil
	t.removed = nil
	t.p.log.Debug("transaction committed", "session", t.session)
	return nil
}

// Rollback discards the transaction's writes. The handle leaves Active even
// when the backend reports a failure.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.p.isClosed() {
		return newClosedError("rollback")
	}
	if t.state != TxActive {
		return newStateError("rollback", t.state, "")
	}
	return t.rollbackLocked("rollback")
}

func (t *Tx) rollbackLocked(op string) error {
	t.p.metrics.active.Dec()
	t.p.metrics.transactions.WithLabelValues(outcomeRollback).Inc()
	t.state = TxRolledBack
	t.persisted = nil
	t.removed = nil
	if err := t.conn.Rollback(); err != nil {
		t.p.log.Warn("rollback failed", "session", t.session, "error", err)
		return &Error{Code: ErrCodeRollback, Op: op, Err: err}
	}
	t.p.log.Debug("transaction rolled back", "session", t.session)
	return nil
}

// Close ends the handle. An Active transaction is rolled back first. The
// connection goes back to the pool and the session is unbound, so the next
// Provider.Transaction call for the session returns a new handle. Close is
// idempotent.
func (t *Tx) Close() error {
	t.mu.Lock()
	err := t.closeLocked(slog.LevelDebug)
	t.mu.Unlock()
	t.p.registry.unbind(t.session, t)
	return err
}

func (t *Tx) closeLocked(level slog.Level) error {
	if t.state == TxClosed {
		return nil
	}
	var errs []error
	if t.state == TxActive {
		t.p.log.Log(context.Background(), level, "closing active transaction", "session", t.session)
		if err := t.rollbackLocked("close"); err != nil {
			errs = append(errs, err)
		}
	}
	if t.conn != nil {
		if err := t.conn.Release(); err != nil {
			errs = append(errs, err)
		}
		t.conn = nil
	}
	t.state = TxClosed
	return errors.Join(errs...)
}

func (t *Tx) checkActive(op, channel string) error {
	if t.p.isClosed() {
		return newClosedError(op)
	}
	if t.state != TxActive {
		return newStateError(op, t.state, channel)
	}
	return nil
}

// Persist appends ev to the tail of channel. It becomes visible to other
// handles when the transaction commits.
func (t *Tx) Persist(ctx context.Context, channel string, ev event.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActive("persist", channel); err != nil {
		return err
	}
	if _, err := t.p.store.Persist(ctx, t.conn, channel, ev); err != nil {
		return err
	}
	if t.persisted == nil {
		t.persisted = make(map[string]int)
	}
	name, _ := store.NormalizeChannel(channel)
	t.persisted[name]++
	return nil
}

// Remove claims the oldest event in channel. It returns nil, nil when there
// is none. The removal is undone if the transaction rolls back.
func (t *Tx) Remove(ctx context.Context, channel string) (*event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActive("remove", channel); err != nil {
		return nil, err
	}
	ev, err := t.p.store.RemoveOldest(ctx, t.conn, channel)
	if err != nil || ev == nil {
		return nil, err
	}
	if t.removed == nil {
		t.removed = make(map[string]int)
	}
	name, _ := store.NormalizeChannel(channel)
	t.removed[name]++
	return ev, nil
}

// Size returns the number of events in channel as seen by this transaction.
func (t *Tx) Size(ctx context.Context, channel string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActive("size", channel); err != nil {
		return 0, err
	}
	return t.p.store.Size(ctx, t.conn, channel)
}
