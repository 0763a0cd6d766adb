package cache

import "sync"

// KeyMutex hands out one mutex per key so read-modify-write sequences on the
// same cached collection serialize while different keys proceed in parallel.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyMutex creates an empty KeyMutex.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited on.
func (k *KeyMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
