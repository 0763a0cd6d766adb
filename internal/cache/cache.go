// Package cache persists named JSON blobs with a last-write timestamp and
// answers whether an entry is still valid under a per-key TTL policy.
//
// The store knows nothing about the network or domain types. Validity is a
// separate question from presence: Get returns whatever was last written,
// IsValid decides whether it is still fresh enough to serve.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fincache/internal/log"
)

// Common cache errors.
var (
	ErrNotFound = errors.New("cache entry not found")
	ErrClosed   = errors.New("cache store closed")
)

// Entry is a single cached payload with the time it was written.
type Entry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// IsValid reports whether the entry is within ttl at now.
func (e Entry) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) <= ttl
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Backend is the raw persistence underneath a Store.
type Backend interface {
	Load(key string) (Entry, bool, error)
	Save(entry Entry) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// Store is the cache facade used by the repositories.
type Store struct {
	backend Backend
	policy  Policy
	now     func() time.Time
	logger  *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store over backend with the given TTL policy.
func NewStore(backend Backend, policy Policy, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentCache)
	}
	return s
}

// Now returns the store's notion of the current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// TTL returns the validity window for key.
func (s *Store) TTL(key string) time.Duration {
	return s.policy.TTL(key)
}

// Put overwrites the entry for key and stamps it with the current time.
// Backend failures are logged, never returned.
func (s *Store) Put(key string, payload []byte) {
	entry := Entry{
		Key:      key,
		Payload:  append(json.RawMessage(nil), payload...),
		StoredAt: s.now(),
	}
	if err := s.backend.Save(entry); err != nil {
		s.logger.Warn("Cache write failed",
			log.FieldCacheKey, key,
			log.FieldError, err)
	}
}

// Get returns the last stored entry regardless of validity.
func (s *Store) Get(key string) (Entry, bool) {
	entry, ok, err := s.backend.Load(key)
	if err != nil {
		s.logger.Warn("Cache read failed",
			log.FieldCacheKey, key,
			log.FieldError, err)
		return Entry{}, false
	}
	return entry, ok
}

// IsValid is false for absent keys, otherwise now - storedAt <= ttl(key).
func (s *Store) IsValid(key string) bool {
	entry, ok := s.Get(key)
	if !ok {
		return false
	}
	return entry.IsValid(s.now(), s.policy.TTL(key))
}

// Remove deletes a single entry. Missing keys are ignored.
func (s *Store) Remove(key string) {
	if err := s.backend.Delete(key); err != nil {
		s.logger.Warn("Cache delete failed",
			log.FieldCacheKey, key,
			log.FieldError, err)
	}
}

// RemoveMatching deletes every entry whose key satisfies match and returns
// how many were removed.
func (s *Store) RemoveMatching(match func(key string) bool) int {
	removed := 0
	for _, key := range s.Keys() {
		if !match(key) {
			continue
		}
		if err := s.backend.Delete(key); err != nil {
			s.logger.Warn("Cache delete failed",
				log.FieldCacheKey, key,
				log.FieldError, err)
			continue
		}
		removed++
	}
	return removed
}

// Keys lists every stored key.
func (s *Store) Keys() []string {
	keys, err := s.backend.Keys()
	if err != nil {
		s.logger.Warn("Cache key listing failed", log.FieldError, err)
		return nil
	}
	return keys
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// PutValue JSON-encodes v and stores it under key.
func PutValue[T any](s *Store, key string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	s.Put(key, payload)
	return nil
}

// GetValue decodes the entry stored under key. It returns ErrNotFound when
// nothing is stored; the returned time is the entry's StoredAt.
func GetValue[T any](s *Store, key string) (T, time.Time, error) {
	var v T
	entry, ok := s.Get(key)
	if !ok {
		return v, time.Time{}, ErrNotFound
	}
	if err := json.Unmarshal(entry.Payload, &v); err != nil {
		return v, entry.StoredAt, fmt.Errorf("decode cache value for %s: %w", key, err)
	}
	return v, entry.StoredAt, nil
}
