package cache

import (
	"container/list"
	"sync"
)

// MemoryBackend keeps entries in process memory with optional LRU eviction.
// It never expires entries on its own; validity is decided by the Store.
type MemoryBackend struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
}

// NewMemoryBackend creates a memory backend. maxSize <= 0 means unbounded.
func NewMemoryBackend(maxSize int) *MemoryBackend {
	return &MemoryBackend{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Load retrieves an entry and marks it as recently used
func (c *MemoryBackend) Load(key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return Entry{}, false, nil
	}

	c.lru.MoveToFront(elem)
	return elem.Value.(Entry), true, nil
}

// Save stores an entry, evicting the least recently used one when full
func (c *MemoryBackend) Save(entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[entry.Key]; exists {
		elem.Value = entry
		c.lru.MoveToFront(elem)
		return nil
	}

	elem := c.lru.PushFront(entry)
	c.items[entry.Key] = elem

	if c.maxSize > 0 && c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes a key
func (c *MemoryBackend) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

// Keys returns keys from most to least recently used
func (c *MemoryBackend) Keys() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(Entry).Key)
	}
	return keys, nil
}

// Size returns the current number of items
func (c *MemoryBackend) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close is a no-op for the memory backend.
func (c *MemoryBackend) Close() error {
	return nil
}

func (c *MemoryBackend) removeElement(elem *list.Element) {
	delete(c.items, elem.Value.(Entry).Key)
	c.lru.Remove(elem)
}
