// Package sqlbackend stores channels in a relational database through
// database/sql.
//
// Three dialects are supported:
//   - sqlite (github.com/mattn/go-sqlite3), the default embedded store
//   - postgres, through either github.com/jackc/pgx/v5/stdlib (driver "pgx")
//     or github.com/lib/pq (driver "postgres")
//   - mysql (github.com/go-sql-driver/mysql)
//
// # Layout
//
//	chanq_meta      (meta_key, meta_value)                 schema version
//	chanq_channels  (name, last_seq)                       per-channel sequence counter
//	chanq_events    (channel, seq, payload)                one row per outstanding event
//	chanq_headers   (channel, seq, header_key, header_value)
//
// # Locking
//
// Append bumps chanq_channels.last_seq with an UPDATE, which holds the
// channel's counter row lock until the transaction ends; producers on one
// channel therefore commit in sequence order. ClaimOldest selects the head
// row with FOR UPDATE SKIP LOCKED on postgres and mysql. SQLite has no row
// locks: every transaction is opened with BEGIN IMMEDIATE (_txlock=immediate)
// and the pool holds a single connection, so writers are fully serialized.
package sqlbackend
