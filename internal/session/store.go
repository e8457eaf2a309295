package session

import "sync"

// Store is the deck's session cache, keyed by operation name.
// Entries are replaced wholesale on each update so a read always
// sees one complete server-reported state, never a partial merge.
//
// Discipline: only the watcher scheduler writes; everything else
// reads. The lock exists for the Go memory model, not for any
// multi-writer protocol.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]Session)}
}

// Get returns the last-known session for an operation.
func (s *Store) Get(op string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[op]
	return sess, ok
}

// Set replaces the stored session for an operation. Last write wins,
// matching the poll-overwrite delivery model.
func (s *Store) Set(op string, sess Session) {
	s.mu.Lock()
	s.sessions[op] = sess
	s.mu.Unlock()
}

// SetSeq replaces the stored session only when sess.Seq is not lower
// than the stored sequence, rejecting out-of-order deliveries from
// transports that number their polls. Returns false when the update
// was rejected. Unnumbered sessions (Seq zero) always apply.
func (s *Store) SetSeq(op string, sess Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[op]; ok && sess.Seq != 0 && sess.Seq < prev.Seq {
		return false
	}
	s.sessions[op] = sess
	return true
}

// Ops returns the operation names currently present, in no
// particular order.
func (s *Store) Ops() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := make([]string, 0, len(s.sessions))
	for op := range s.sessions {
		ops = append(ops, op)
	}
	return ops
}

// Delete removes an operation's session. Removing an absent entry is
// a no-op.
func (s *Store) Delete(op string) {
	s.mu.Lock()
	delete(s.sessions, op)
	s.mu.Unlock()
}
