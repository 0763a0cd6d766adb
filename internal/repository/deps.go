package repository

import (
	"context"

	"fincache/internal/cache"
	"fincache/internal/identity"
	"fincache/internal/log"
	"fincache/internal/probe"
)

// Change describes a mutation that reached the remote and the cache.
type Change struct {
	Domain string
	Op     string
	ID     int64
	UserID int64
}

// ChangePublisher is told about every successful mutation. Failures are
// logged by the caller and never affect the mutation outcome.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c Change) error
}

// Deps are the collaborators shared by every engine of one process. Fetchers
// and mutators built from the same Deps share the per-key locks. Store is
// required; every other field has a default.
type Deps struct {
	Store     *cache.Store
	Probe     probe.Probe
	Identity  identity.Provider
	Locks     *cache.KeyMutex
	Publisher ChangePublisher
	// Executor runs change notifications off the mutation path.
	Executor *Executor
	Logger   *log.Logger
}

// withDefaults panics when Store is nil: an engine without a cache has
// nothing to fall back to.
func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		panic("repository: Deps.Store is required")
	}
	if d.Probe == nil {
		d.Probe = probe.Static(true)
	}
	if d.Locks == nil {
		d.Locks = cache.NewKeyMutex()
	}
	if d.Logger == nil {
		d.Logger = log.Default(log.ComponentRepository)
	}
	if d.Executor == nil {
		d.Executor = NewExecutor(DefaultConcurrency, d.Logger)
	}
	return d
}

func (d Deps) userID() int64 {
	if d.Identity == nil {
		return 0
	}
	return d.Identity.CurrentUserID()
}
