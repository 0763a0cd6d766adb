package services

import (
	"context"
	"time"

	"fincache/internal/cache"
	"fincache/internal/identity"
	"fincache/internal/log"
	"fincache/internal/remote"
	"fincache/internal/repository"
)

// DefaultTTLs are the validity windows of each domain's cache entries.
var DefaultTTLs = map[string]time.Duration{
	DomainTransactions:  10 * time.Minute,
	DomainBudgets:       10 * time.Minute,
	DomainCategories:    24 * time.Hour,
	DomainNotifications: 5 * time.Minute,
	DomainStatistics:    5 * time.Minute,
}

// DefaultPolicy is the cache policy built from DefaultTTLs.
func DefaultPolicy() cache.Policy {
	rules := make([]cache.Rule, 0, len(Domains))
	for _, d := range Domains {
		rules = append(rules, cache.Rule{Prefix: d, TTL: DefaultTTLs[d]})
	}
	return cache.NewPolicy(cache.DefaultTTL, rules...)
}

// Options tune the domain services.
type Options struct {
	// Executor runs the async variants. Deps.Executor, or a small default
	// pool, is used when nil.
	Executor *repository.Executor
	// Fallback overrides the fallback mode per domain. Statistics defaults
	// to any-cached, every other domain to valid-only.
	Fallback map[string]repository.Fallback
}

func (o Options) fallback(domain string) repository.Fallback {
	if f, ok := o.Fallback[domain]; ok {
		return f
	}
	if domain == DomainStatistics {
		return repository.FallbackAnyCached
	}
	return repository.FallbackValid
}

// DefaultFallbacks returns the built-in fallback mode of every domain.
func DefaultFallbacks() map[string]repository.Fallback {
	var o Options
	out := make(map[string]repository.Fallback, len(Domains))
	for _, d := range Domains {
		out[d] = o.fallback(d)
	}
	return out
}

// Services groups the domain services of one user session.
type Services struct {
	Transactions  *TransactionService
	Budgets       *BudgetService
	Categories    *CategoryService
	Notifications *NotificationService
	Statistics    *StatisticsService
	Executor      *repository.Executor
}

// New wires every domain service to gw and the shared engine deps.
func New(gw remote.Gateway, deps repository.Deps, opts Options) *Services {
	if deps.Identity == nil {
		deps.Identity = identity.Static(0)
	}
	if deps.Logger == nil {
		deps.Logger = log.Default(log.ComponentRepository)
	}
	exec := opts.Executor
	if exec == nil {
		exec = deps.Executor
	}
	if exec == nil {
		exec = repository.NewExecutor(repository.DefaultConcurrency, deps.Logger)
	}
	if deps.Executor == nil {
		deps.Executor = exec
	}

	b := base{
		gw:     gw,
		user:   deps.Identity,
		exec:   exec,
		deps:   deps,
		logger: deps.Logger.WithComponent(log.ComponentRemote),
	}

	return &Services{
		Transactions:  newTransactionService(b, opts.fallback(DomainTransactions)),
		Budgets:       newBudgetService(b, opts.fallback(DomainBudgets)),
		Categories:    newCategoryService(b, opts.fallback(DomainCategories)),
		Notifications: newNotificationService(b, opts.fallback(DomainNotifications)),
		Statistics:    newStatisticsService(b, opts.fallback(DomainStatistics)),
		Executor:      exec,
	}
}

// Refresher reloads one domain into the cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Refreshers maps each domain to its service.
func (s *Services) Refreshers() map[string]Refresher {
	return map[string]Refresher{
		DomainTransactions:  s.Transactions,
		DomainBudgets:       s.Budgets,
		DomainCategories:    s.Categories,
		DomainNotifications: s.Notifications,
		DomainStatistics:    s.Statistics,
	}
}
