package cache

import (
	"sync"
)

// Shared hands one Store to many repositories and closes it when the last
// holder releases it. It replaces a process-wide cache singleton.
type Shared struct {
	mu     sync.Mutex
	store  *Store
	refs   int
	closed bool
}

// NewShared wraps store. The store is closed after the final Release.
func NewShared(store *Store) *Shared {
	return &Shared{store: store}
}

// Acquire returns the store and takes a reference.
func (s *Shared) Acquire() (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	s.refs++
	return s.store, nil
}

// Release drops a reference and closes the store when none remain.
func (s *Shared) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.refs == 0 {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.closed = true
	return s.store.Close()
}

// Refs returns the number of outstanding references.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}
