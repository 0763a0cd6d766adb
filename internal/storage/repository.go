package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fincache/internal/cache"

	_ "modernc.org/sqlite"
)

const (
	selectEntrySQL = `SELECT payload, stored_at FROM cache_entries WHERE cache_key = ?`
	upsertEntrySQL = `INSERT INTO cache_entries (cache_key, payload, stored_at) VALUES (?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`
	deleteEntrySQL = `DELETE FROM cache_entries WHERE cache_key = ?`
	listKeysSQL    = `SELECT cache_key FROM cache_entries ORDER BY cache_key`
	countSQL       = `SELECT COUNT(*) FROM cache_entries`
)

// CacheRepository persists cache entries in SQLite. It implements cache.Backend.
type CacheRepository struct {
	db *sql.DB
}

var _ cache.Backend = (*CacheRepository)(nil)

func NewCacheRepository(dbPath string) (*CacheRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before opening the main pool so the schema is in place
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps writes ordered and avoids SQLITE_BUSY between pool members.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &CacheRepository{db: db}, nil
}

// Load implements cache.Backend
func (r *CacheRepository) Load(key string) (cache.Entry, bool, error) {
	var (
		payload  []byte
		storedAt int64
	)
	err := r.db.QueryRow(selectEntrySQL, key).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("select cache entry %s: %w", key, err)
	}

	return cache.Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: time.Unix(0, storedAt).UTC(),
	}, true, nil
}

// Save implements cache.Backend
func (r *CacheRepository) Save(entry cache.Entry) error {
	if _, err := r.db.Exec(upsertEntrySQL, entry.Key, []byte(entry.Payload), entry.StoredAt.UnixNano()); err != nil {
		return fmt.Errorf("upsert cache entry %s: %w", entry.Key, err)
	}
	return nil
}

// Delete implements cache.Backend
func (r *CacheRepository) Delete(key string) error {
	if _, err := r.db.Exec(deleteEntrySQL, key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// Keys implements cache.Backend
func (r *CacheRepository) Keys() ([]string, error) {
	rows, err := r.db.Query(listKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Count returns the number of stored entries
func (r *CacheRepository) Count() (int64, error) {
	var n int64
	if err := r.db.QueryRow(countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

func (r *CacheRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
