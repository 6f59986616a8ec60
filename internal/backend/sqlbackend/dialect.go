package sqlbackend

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	// Name is the db.type value selecting this dialect.
	Name string

	// DefaultDriver is the database/sql driver used when none is configured.
	DefaultDriver string

	// keyType holds channel names and must compare byte for byte.
	keyType  string
	seqType  string
	blobType string

	// Header keys and values are opaque bytes.
	headerKeyType   string
	headerValueType string

	// dollar selects $1, $2 placeholders instead of ?.
	dollar bool

	// claimLock is appended to the head-of-channel select.
	claimLock string

	// insertIgnore renders an insert that is a no-op on key conflict.
	insertIgnore func(table, cols, values string) string
}

var (
	// SQLite is the embedded default.
	SQLite = Dialect{
		Name:            "sqlite",
		DefaultDriver:   "sqlite3",
		keyType:         "TEXT",
		seqType:         "INTEGER",
		blobType:        "BLOB",
		headerKeyType:   "BLOB",
		headerValueType: "BLOB",
		insertIgnore:    onConflictDoNothing,
	}

	// Postgres serves both the pgx and lib/pq drivers.
	Postgres = Dialect{
		Name:            "postgres",
		DefaultDriver:   "pgx",
		keyType:         "VARCHAR(255)",
		seqType:         "BIGINT",
		blobType:        "BYTEA",
		headerKeyType:   "BYTEA",
		headerValueType: "BYTEA",
		dollar:          true,
		claimLock:       " FOR UPDATE SKIP LOCKED",
		insertIgnore:    onConflictDoNothing,
	}

	// MySQL requires 8.0 or later for SKIP LOCKED. Text columns there
	// default to a case and accent insensitive PAD SPACE collation, so keys
	// are stored as VARBINARY.
	MySQL = Dialect{
		Name:            "mysql",
		DefaultDriver:   "mysql",
		keyType:         "VARBINARY(255)",
		seqType:         "BIGINT",
		blobType:        "LONGBLOB",
		headerKeyType:   "VARBINARY(255)",
		headerValueType: "LONGBLOB",
		claimLock:       " FOR UPDATE SKIP LOCKED",
		insertIgnore: func(table, cols, values string) string {
			return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, cols, values)
		},
	}
)

var dialects = map[string]Dialect{
	SQLite.Name:   SQLite,
	Postgres.Name: Postgres,
	MySQL.Name:    MySQL,
}

// driverDialects lists the drivers each dialect may be opened with.
var driverDialects = map[string]string{
	"sqlite3":  SQLite.Name,
	"pgx":      Postgres.Name,
	"postgres": Postgres.Name,
	"mysql":    MySQL.Name,
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
	}
	return d, nil
}

// CheckDriver verifies driver can be used with d.
func (d Dialect) CheckDriver(driver string) error {
	name, ok := driverDialects[driver]
	if !ok {
		return fmt.Errorf("unknown sql driver %q", driver)
	}
	if name != d.Name {
		return fmt.Errorf("driver %q cannot be used with %s", driver, d.Name)
	}
	return nil
}

func onConflictDoNothing(table, cols, values string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, cols, values)
}

// SchemaStatements returns the DDL that creates the channel tables. Every
// statement is guarded with IF NOT EXISTS so the list can be replayed.
func (d Dialect) SchemaStatements() []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS chanq_meta (meta_key %s NOT NULL PRIMARY KEY, meta_value %s NOT NULL)",
			d.keyType, d.keyType),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS chanq_channels (name %s NOT NULL PRIMARY KEY, last_seq %s NOT NULL DEFAULT 0)",
			d.keyType, d.seqType),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS chanq_events (channel %s NOT NULL, seq %s NOT NULL, payload %s NOT NULL, PRIMARY KEY (channel, seq))",
			d.keyType, d.seqType, d.blobType),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS chanq_headers (channel %s NOT NULL, seq %s NOT NULL, header_key %s NOT NULL, header_value %s NOT NULL, PRIMARY KEY (channel, seq, header_key))",
			d.keyType, d.seqType, d.headerKeyType, d.headerValueType),
	}
}

// Schema renders SchemaStatements as a script.
func (d Dialect) Schema() string {
	return strings.Join(d.SchemaStatements(), ";\n") + ";\n"
}

// rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// statements holds the dialect-bound DML used by conn.
type statements struct {
	insertChannel string
	bumpSeq       string
	readSeq       string
	countEvents   string
	insertEvent   string
	insertHeader  string
	selectHead    string
	selectHeaders string
	deleteHeaders string
	deleteEvent   string
	insertVersion string
	readVersion   string
}

func (d Dialect) statements() statements {
	return statements{
		insertChannel: d.rebind(d.insertIgnore("chanq_channels", "name, last_seq", "?, 0")),
		bumpSeq:       d.rebind("UPDATE chanq_channels SET last_seq = last_seq + 1 WHERE name = ?"),
		readSeq:       d.rebind("SELECT last_seq FROM chanq_channels WHERE name = ?"),
		countEvents:   d.rebind("SELECT COUNT(*) FROM chanq_events WHERE channel = ?"),
		insertEvent:   d.rebind("INSERT INTO chanq_events (channel, seq, payload) VALUES (?, ?, ?)"),
		insertHeader:  d.rebind("INSERT INTO chanq_headers (channel, seq, header_key, header_value) VALUES (?, ?, ?, ?)"),
		selectHead:    d.rebind("SELECT seq, payload FROM chanq_events WHERE channel = ? ORDER BY seq ASC LIMIT 1" + d.claimLock),
		selectHeaders: d.rebind("SELECT header_key, header_value FROM chanq_headers WHERE channel = ? AND seq = ?"),
		deleteHeaders: d.rebind("DELETE FROM chanq_headers WHERE channel = ? AND seq = ?"),
		deleteEvent:   d.rebind("DELETE FROM chanq_events WHERE channel = ? AND seq = ?"),
		insertVersion: d.rebind(d.insertIgnore("chanq_meta", "meta_key, meta_value", "?, ?")),
		readVersion:   d.rebind("SELECT meta_value FROM chanq_meta WHERE meta_key = ?"),
	}
}
