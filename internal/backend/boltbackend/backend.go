package boltbackend

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/roach88/chanq/internal/backend"
)

// Schema version tracking:
// 1 - Initial bucket layout
const currentSchemaVersion = 1

var (
	metaBucket     = []byte("meta")
	channelsBucket = []byte("channels")
	eventsBucket   = []byte("events")

	schemaVersionKey = []byte("schema_version")
)

// Options configures Open.
type Options struct {
	// Path is the database file, created if missing.
	Path string

	// LockTimeout bounds the wait for the file lock held by another process.
	// Zero means one second.
	LockTimeout time.Duration
}

// Backend wraps a bbolt database.
type Backend struct {
	db *bbolt.DB
}

var _ backend.Backend = (*Backend)(nil)

// Open creates or opens the bbolt file.
func Open(opts Options) (*Backend, error) {
	if opts.Path == "" {
		return nil, errors.New("bolt: Options.Path is required")
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bbolt.Open(opts.Path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}
	return &Backend{db: db}, nil
}

// Name returns "bolt".
func (b *Backend) Name() string {
	return "bolt"
}

// Bootstrap creates the top-level buckets and version record, or only checks
// them when create is false.
func (b *Backend) Bootstrap(ctx context.Context, create bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if create {
		err := b.db.Update(func(tx *bbolt.Tx) error {
			for _, name := range [][]byte{metaBucket, channelsBucket, eventsBucket} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", name, err)
				}
			}
			meta := tx.Bucket(metaBucket)
			if meta.Get(schemaVersionKey) == nil {
				return meta.Put(schemaVersionKey, []byte(strconv.Itoa(currentSchemaVersion)))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return b.db.View(checkVersion)
}

func checkVersion(tx *bbolt.Tx) error {
	for _, name := range [][]byte{metaBucket, channelsBucket, eventsBucket} {
		if tx.Bucket(name) == nil {
			return fmt.Errorf("schema not initialized: missing bucket %s", name)
		}
	}
	raw := tx.Bucket(metaBucket).Get(schemaVersionKey)
	if raw == nil {
		return errors.New("schema not initialized: missing version record")
	}
	version, err := strconv.Atoi(string(raw))
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", raw, err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	return nil
}

// Acquire returns a connection. bbolt has no pool; the write lock is taken
// by Begin.
func (b *Backend) Acquire(ctx context.Context) (backend.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &conn{db: b.db}, nil
}

// Close closes the database file. Open transactions must be finished first
// or Close blocks.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

// channelState is the value stored under channels/{name}.
type channelState struct {
	lastSeq uint64
	depth   uint64
}

func decodeState(v []byte) channelState {
	if len(v) < 16 {
		return channelState{}
	}
	return channelState{
		lastSeq: binary.BigEndian.Uint64(v[:8]),
		depth:   binary.BigEndian.Uint64(v[8:16]),
	}
}

func (s channelState) encode() []byte {
	v := make([]byte, 16)
	binary.BigEndian.PutUint64(v[:8], s.lastSeq)
	binary.BigEndian.PutUint64(v[8:], s.depth)
	return v
}

func decodeSeq(k []byte) uint64 {
	if len(k) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k[:8])
}
