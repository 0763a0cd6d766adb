package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fincache/internal/cache"
	"fincache/internal/core"
	"fincache/internal/log"
)

// publishTimeout bounds one change notification.
const publishTimeout = 10 * time.Second

// MutateConfig binds the mutation engine to one entity collection.
type MutateConfig[E core.Entity] struct {
	Domain string
	// Key names the cached collection the mutations patch.
	Key func() string
	// ItemKey optionally names the single-entity entry for id.
	ItemKey func(id int64) string

	Add    func(ctx context.Context, e E) (E, error)
	Update func(ctx context.Context, e E) (E, error)
	Delete func(ctx context.Context, e E) error
}

// Mutator writes through the remote, then patches the cached collection in
// place. Mutations are never queued: offline calls fail immediately.
type Mutator[E core.Entity] struct {
	cfg    MutateConfig[E]
	deps   Deps
	logger *log.Logger
}

func NewMutator[E core.Entity](cfg MutateConfig[E], deps Deps) *Mutator[E] {
	deps = deps.withDefaults()
	return &Mutator[E]{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(log.FieldDomain, cfg.Domain),
	}
}

// Add creates e remotely and appends the result to the cached collection.
func (m *Mutator[E]) Add(ctx context.Context, e E) Outcome[E] {
	if m.cfg.Add == nil {
		return Failed[E](fmt.Errorf("%s: add not supported", m.cfg.Domain))
	}
	return Apply(ctx, m, log.OpAdd,
		func(ctx context.Context) (E, error) { return m.cfg.Add(ctx, e) },
		func(items []E, added E) ([]E, bool) { return Append(items, added), true })
}

// Update replaces the first cached entity with the same id. When none
// matches the cached collection is left as it is.
func (m *Mutator[E]) Update(ctx context.Context, e E) Outcome[E] {
	if m.cfg.Update == nil {
		return Failed[E](fmt.Errorf("%s: update not supported", m.cfg.Domain))
	}
	out := Apply(ctx, m, log.OpUpdate,
		func(ctx context.Context) (E, error) { return m.cfg.Update(ctx, e) },
		func(items []E, updated E) ([]E, bool) { return Replace(items, updated) })
	if out.OK() && m.cfg.ItemKey != nil {
		m.refreshItem(out.Value)
	}
	return out
}

// Delete removes e remotely and drops the first cached entity with its id.
func (m *Mutator[E]) Delete(ctx context.Context, e E) Outcome[E] {
	if m.cfg.Delete == nil {
		return Failed[E](fmt.Errorf("%s: delete not supported", m.cfg.Domain))
	}
	out := Apply(ctx, m, log.OpDelete,
		func(ctx context.Context) (E, error) { return e, m.cfg.Delete(ctx, e) },
		func(items []E, deleted E) ([]E, bool) { return Remove(items, deleted.EntityID()) })
	if out.OK() && m.cfg.ItemKey != nil {
		key := m.cfg.ItemKey(e.EntityID())
		unlock := m.deps.Locks.Lock(key)
		m.deps.Store.Remove(key)
		unlock()
	}
	return out
}

// Clear runs call remotely and then removes every cache entry match accepts.
// It returns how many entries were removed.
func (m *Mutator[E]) Clear(ctx context.Context, call func(ctx context.Context) error, match func(key string) bool) Outcome[int] {
	if !m.deps.Probe.IsOnline(ctx) {
		m.logFailure(ctx, log.OpClear, ErrOffline)
		return Failed[int](ErrOffline)
	}
	if err := call(ctx); err != nil {
		m.logFailure(ctx, log.OpClear, err)
		return Failed[int](err)
	}

	key := m.cfg.Key()
	unlock := m.deps.Locks.Lock(key)
	removed := m.deps.Store.RemoveMatching(match)
	unlock()

	m.logger.InfoContext(ctx, "Cleared cached entries",
		log.FieldOperation, log.OpClear,
		log.FieldCacheKey, key,
		log.FieldCount, removed)
	m.publish(ctx, log.OpClear, 0)
	return Fresh(removed)
}

// Apply is the shared mutation path: offline guard, remote call, then a
// patch of the cached collection under its key lock. patch receives the
// cached items and the call's result and reports whether it changed them.
// A missing collection is never created.
func Apply[E core.Entity, R any](
	ctx context.Context,
	m *Mutator[E],
	op string,
	call func(ctx context.Context) (R, error),
	patch func(items []E, result R) ([]E, bool),
) Outcome[R] {
	if !m.deps.Probe.IsOnline(ctx) {
		m.logFailure(ctx, op, ErrOffline)
		return Failed[R](ErrOffline)
	}

	start := time.Now()
	result, err := call(ctx)
	if err != nil {
		m.logFailure(ctx, op, err)
		return Failed[R](err)
	}

	key := m.cfg.Key()
	patched := m.patch(ctx, op, key, func(items []E) ([]E, bool) { return patch(items, result) })

	m.logger.InfoContext(ctx, "Mutation applied",
		log.FieldOperation, op,
		log.FieldCacheKey, key,
		"cache_patched", patched,
		log.FieldDuration, time.Since(start).Milliseconds())

	var id int64
	switch r := any(result).(type) {
	case core.Entity:
		id = r.EntityID()
	case int64:
		id = r
	}
	m.publish(ctx, op, id)
	return Fresh(result)
}

// patch runs the read-modify-write of the cached collection under the key
// lock. It returns whether the collection was rewritten.
func (m *Mutator[E]) patch(ctx context.Context, op, key string, fn func([]E) ([]E, bool)) bool {
	unlock := m.deps.Locks.Lock(key)
	defer unlock()

	items, _, err := cache.GetValue[[]E](m.deps.Store, key)
	if errors.Is(err, cache.ErrNotFound) {
		return false
	}
	if err != nil {
		// An unreadable collection cannot be patched; drop it so the next
		// fetch replaces it instead of serving it.
		m.logger.WarnContext(ctx, "Cached collection unreadable, discarding",
			log.FieldOperation, op,
			log.FieldCacheKey, key,
			log.FieldError, err)
		m.deps.Store.Remove(key)
		return false
	}

	next, changed := fn(items)
	if !changed {
		return false
	}
	if next == nil {
		next = []E{}
	}
	if err := cache.PutValue(m.deps.Store, key, next); err != nil {
		m.logger.WarnContext(ctx, "Cache patch not persisted",
			log.FieldOperation, op,
			log.FieldCacheKey, key,
			log.FieldError, err)
		return false
	}
	return true
}

// refreshItem rewrites the single-entity entry, if one is cached.
func (m *Mutator[E]) refreshItem(e E) {
	key := m.cfg.ItemKey(e.EntityID())
	unlock := m.deps.Locks.Lock(key)
	defer unlock()
	if _, ok := m.deps.Store.Get(key); !ok {
		return
	}
	if err := cache.PutValue(m.deps.Store, key, e); err != nil {
		m.logger.Warn("Cache item not persisted", log.FieldCacheKey, key, log.FieldError, err)
	}
}

// publish hands the change to the publisher in the background. The mutation
// has already succeeded, so neither a slow broker nor a cancelled ctx may
// hold it up.
func (m *Mutator[E]) publish(ctx context.Context, op string, id int64) {
	if m.deps.Publisher == nil {
		return
	}
	change := Change{Domain: m.cfg.Domain, Op: op, ID: id, UserID: m.deps.userID()}
	Submit(m.deps.Executor, context.WithoutCancel(ctx), func(ctx context.Context) Outcome[Change] {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := m.deps.Publisher.PublishChange(ctx, change); err != nil {
			m.logger.WarnContext(ctx, "Change notification failed",
				log.FieldOperation, log.OpPublish,
				log.FieldEntityID, id,
				log.FieldError, err)
			return Failed[Change](err)
		}
		return Fresh(change)
	})
}

func (m *Mutator[E]) logFailure(ctx context.Context, op string, err error) {
	m.logger.WarnContext(ctx, "Mutation failed",
		log.FieldOperation, op,
		log.FieldError, err,
		"error_type", Reason(err))
}
