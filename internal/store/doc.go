// Package store implements the durable multi-channel event queue on top of a
// backend.Conn.
//
// The store owns no connections. Every call runs inside the transaction the
// caller already began on conn, so effects become visible to others only
// when that transaction commits, and a rollback undoes them.
//
// # Guarantees
//
//   - Per-channel FIFO: RemoveOldest returns events in the commit order of
//     the Persist calls that created them; within one transaction, in call
//     order.
//   - No double delivery: two transactions racing on one channel never claim
//     the same event (the backend's claim locks the head row).
//   - Empty is not an error: RemoveOldest on an empty channel returns nil, nil.
//   - Channels are independent; nothing orders events across channels.
//
// Channel names are NFC-normalized so that canonically equivalent spellings
// address the same channel.
package store
