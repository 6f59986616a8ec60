// Package channel is the transactional front end of the event queue.
//
// A Provider owns a storage backend and hands out transaction handles. All
// reads and writes go through a handle:
//
//	p, err := channel.Open(ctx, cfg)
//	...
//	ctx = channel.NewSession(ctx)
//	tx, err := p.Transaction(ctx)
//	if err := tx.Begin(ctx); err != nil { ... }
//	if err := tx.Persist(ctx, "orders", ev); err != nil { ... }
//	if err := tx.Commit(); err != nil { ... }
//	tx.Close()
//
// # Sessions
//
// A session is the unit that owns at most one open handle. It is carried on
// the context; Transaction returns the same *Tx for a session until that
// handle is closed, and a fresh one afterwards. Provider.PersistEvent and
// Provider.RemoveEvent resolve the handle the same way, for callers that do
// not pass the handle around.
//
// A session and its handle must be used by one goroutine at a time.
//
// # Handle states
//
//	Created --Begin--> Active --Commit--> Committed
//	                     |  \--Rollback--> RolledBack
//	                     \---(commit fails)--> Failed
//
// Begin on Committed or RolledBack starts a new transaction on the same
// connection. Failed is terminal: the handle can only be closed. Close
// releases the connection from any state, rolling back first if Active; a
// closed handle is never reused.
package channel
