package channel

import "sync"

// registry binds each session to its open handle. Entries exist only while
// the handle is open.
type registry struct {
	mu    sync.Mutex
	bound map[string]*Tx
}

func newRegistry() *registry {
	return &registry{bound: make(map[string]*Tx)}
}

// getOrCreate returns the handle bound to session, binding a new one from
// create if there is none.
func (r *registry) getOrCreate(session string, create func() *Tx) *Tx {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.bound[session]; ok {
		return tx
	}
	tx := create()
	r.bound[session] = tx
	return tx
}

func (r *registry) lookup(session string) (*Tx, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.bound[session]
	return tx, ok
}

// unbind removes the binding only if it still points at tx.
func (r *registry) unbind(session string, tx *Tx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound[session] == tx {
		delete(r.bound, session)
	}
}

// drain removes and returns every binding.
func (r *registry) drain() []*Tx {
	r.mu.Lock()
	defer r.mu.Unlock()
	txs := make([]*Tx, 0, len(r.bound))
	for session, tx := range r.bound {
		txs = append(txs, tx)
		delete(r.bound, session)
	}
	return txs
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}
