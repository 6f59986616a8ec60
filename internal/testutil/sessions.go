package testutil

import (
	"fmt"
	"sync"
)

// SessionSequence hands out predictable session ids for tests.
//
// channel.NewSession uses random UUIDv7 ids; tests that compare logs or
// golden output bind sessions from a SessionSequence with
// channel.WithSession instead.
//
// Thread-safety: All methods are safe for concurrent use.
type SessionSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSessionSequence creates a sequence. The first id is "<prefix>-000001".
// An empty prefix means "test-session".
func NewSessionSequence(prefix string) *SessionSequence {
	if prefix == "" {
		prefix = "test-session"
	}
	return &SessionSequence{prefix: prefix}
}

// Next returns the next id.
func (s *SessionSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%06d", s.prefix, s.n)
}

// Reset restarts the sequence at 1.
func (s *SessionSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
