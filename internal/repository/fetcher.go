package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"fincache/internal/cache"
	"fincache/internal/log"
)

// Fallback decides which cached entries may stand in for a failed fetch.
type Fallback int

const (
	// FallbackValid serves only entries still inside their TTL.
	FallbackValid Fallback = iota
	// FallbackAnyCached serves any entry that exists, however old.
	FallbackAnyCached
)

func (f Fallback) String() string {
	if f == FallbackAnyCached {
		return "any-cached"
	}
	return "valid-only"
}

// ParseFallback maps a config value to a Fallback.
func ParseFallback(s string) (Fallback, error) {
	switch s {
	case "", "valid", "valid-only":
		return FallbackValid, nil
	case "any", "any-cached":
		return FallbackAnyCached, nil
	default:
		return FallbackValid, fmt.Errorf("unknown fallback mode %q", s)
	}
}

// FetchConfig binds the fetch engine to one domain.
type FetchConfig[Q, P any] struct {
	Domain string
	// Key names the cache entry for q. Queries that differ only in
	// client-side filters must map to the same key.
	Key func(q Q) string
	// Load calls the remote and returns the unfiltered payload.
	Load func(ctx context.Context, q Q) (P, error)
	// Filter narrows a payload to q. It must not modify its input.
	Filter   func(p P, q Q) P
	Fallback Fallback
}

// Fetcher serves a domain remote-first with cache fallback.
type Fetcher[Q, P any] struct {
	cfg    FetchConfig[Q, P]
	deps   Deps
	group  singleflight.Group
	logger *log.Logger
}

func NewFetcher[Q, P any](cfg FetchConfig[Q, P], deps Deps) *Fetcher[Q, P] {
	deps = deps.withDefaults()
	return &Fetcher[Q, P]{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(log.FieldDomain, cfg.Domain),
	}
}

// Fetch returns Fresh data when the remote answers, otherwise Stale cached
// data when the fallback mode allows it, otherwise Failed wrapping both
// ErrCacheMiss and the reason the remote was not usable.
func (f *Fetcher[Q, P]) Fetch(ctx context.Context, q Q) Outcome[P] {
	key := f.cfg.Key(q)

	if !f.deps.Probe.IsOnline(ctx) {
		return f.fallback(ctx, q, key, ErrOffline)
	}

	payload, err := f.load(ctx, q, key)
	if err != nil {
		return f.fallback(ctx, q, key, err)
	}
	return Fresh(f.filter(payload, q))
}

// Refresh reloads q from the remote into the cache and reports why it could not.
func (f *Fetcher[Q, P]) Refresh(ctx context.Context, q Q) error {
	if !f.deps.Probe.IsOnline(ctx) {
		return ErrOffline
	}
	_, err := f.load(ctx, q, f.cfg.Key(q))
	return err
}

// Peek reads the cached payload for q without touching the network.
func (f *Fetcher[Q, P]) Peek(q Q) (P, time.Time, bool) {
	v, storedAt, err := cache.GetValue[P](f.deps.Store, f.cfg.Key(q))
	if err != nil {
		var zero P
		return zero, time.Time{}, false
	}
	return f.filter(v, q), storedAt, true
}

type loaded[P any] struct {
	payload P
	raw     []byte
}

// load calls the remote, coalescing concurrent calls for the same key, and
// caches the unfiltered payload on success. The remote call runs detached
// from ctx so one caller giving up does not fail the others joined to it;
// that caller alone returns ctx.Err().
func (f *Fetcher[Q, P]) load(ctx context.Context, q Q, key string) (P, error) {
	var zero P
	loadCtx := context.WithoutCancel(ctx)

	ch := f.group.DoChan(key, func() (any, error) {
		start := time.Now()
		payload, err := f.cfg.Load(loadCtx, q)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", f.cfg.Domain, err)
		}

		unlock := f.deps.Locks.Lock(key)
		f.deps.Store.Put(key, raw)
		unlock()

		f.logger.DebugContext(loadCtx, "Fetched from remote",
			log.FieldOperation, log.OpFetch,
			log.FieldCacheKey, key,
			log.FieldDuration, time.Since(start).Milliseconds())
		return loaded[P]{payload: payload, raw: raw}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}

	l := res.Val.(loaded[P])
	if !res.Shared {
		return l.payload, nil
	}

	// Joined callers each get their own copy of the payload.
	f.logger.DebugContext(ctx, "Joined in-flight fetch", log.FieldCacheKey, key)
	var own P
	if err := json.Unmarshal(l.raw, &own); err != nil {
		return zero, fmt.Errorf("decode %s payload: %w", f.cfg.Domain, err)
	}
	return own, nil
}

func (f *Fetcher[Q, P]) fallback(ctx context.Context, q Q, key string, cause error) Outcome[P] {
	fields := log.NewFields().
		WithOperation(log.OpFetch).
		WithCache(f.cfg.Domain, key).
		WithError(cause)
	fields["error_type"] = Reason(cause)

	entry, ok := f.deps.Store.Get(key)
	if !ok {
		f.logger.WarnContext(ctx, "Remote unavailable and nothing cached", fields.ToSlice()...)
		return Failed[P](fmt.Errorf("%w: %w", ErrCacheMiss, cause))
	}

	now := f.deps.Store.Now()
	if f.cfg.Fallback != FallbackAnyCached && !entry.IsValid(now, f.deps.Store.TTL(key)) {
		fields[log.FieldStoredAt] = entry.StoredAt
		f.logger.WarnContext(ctx, "Remote unavailable and cache expired", fields.ToSlice()...)
		return Failed[P](fmt.Errorf("%w: %w", ErrCacheMiss, cause))
	}

	var payload P
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		fields["decode_error"] = err.Error()
		f.logger.WarnContext(ctx, "Cached payload unreadable", fields.ToSlice()...)
		return Failed[P](fmt.Errorf("%w: %w", ErrCacheMiss, errors.Join(cause, err)))
	}

	fields[log.FieldOutcome] = StatusStale.String()
	fields[log.FieldStoredAt] = entry.StoredAt
	f.logger.InfoContext(ctx, "Serving cached data", fields.ToSlice()...)
	return Stale(f.filter(payload, q), entry.StoredAt)
}

func (f *Fetcher[Q, P]) filter(p P, q Q) P {
	if f.cfg.Filter == nil {
		return p
	}
	return f.cfg.Filter(p, q)
}
