package services

import (
	"context"

	"fincache/internal/core"
	"fincache/internal/remote"
	"fincache/internal/repository"
)

// BudgetQuery narrows the cached budget list. Zero fields match all.
type BudgetQuery struct {
	Period     core.Period
	CategoryID int64
	// ActiveOn keeps budgets whose window contains the date.
	ActiveOn core.Date
}

func (q BudgetQuery) match(b core.Budget) bool {
	if q.Period != "" && b.Period != q.Period {
		return false
	}
	if q.CategoryID != 0 && b.CategoryID != q.CategoryID {
		return false
	}
	if !q.ActiveOn.IsZero() && !b.Covers(q.ActiveOn) {
		return false
	}
	return true
}

type BudgetService struct {
	base
	list *repository.Fetcher[BudgetQuery, []core.Budget]
	mut  *repository.Mutator[core.Budget]
}

func newBudgetService(b base, fallback repository.Fallback) *BudgetService {
	s := &BudgetService{base: b}
	s.list = repository.NewFetcher(repository.FetchConfig[BudgetQuery, []core.Budget]{
		Domain:   DomainBudgets,
		Key:      func(BudgetQuery) string { return BudgetsKey(s.userID()) },
		Load:     listLoader[BudgetQuery, core.Budget](b, remote.Budgets),
		Fallback: fallback,
		Filter: func(budgets []core.Budget, q BudgetQuery) []core.Budget {
			return repository.Select(budgets, q.match)
		},
	}, b.deps)
	s.mut = repository.NewMutator(
		crudConfig[core.Budget](b, remote.Budgets, func() string { return BudgetsKey(s.userID()) }),
		b.deps)
	return s
}

func (s *BudgetService) List(ctx context.Context, q BudgetQuery) repository.Outcome[[]core.Budget] {
	return s.list.Fetch(ctx, q)
}

func (s *BudgetService) ListAsync(ctx context.Context, q BudgetQuery) *repository.Future[[]core.Budget] {
	return repository.Submit(s.exec, ctx, func(ctx context.Context) repository.Outcome[[]core.Budget] {
		return s.List(ctx, q)
	})
}

func (s *BudgetService) Add(ctx context.Context, b core.Budget) repository.Outcome[core.Budget] {
	if b.UserID == 0 {
		b.UserID = s.userID()
	}
	if err := b.Validate(); err != nil {
		return invalid[core.Budget]("budget", err)
	}
	return s.mut.Add(ctx, b)
}

func (s *BudgetService) Update(ctx context.Context, b core.Budget) repository.Outcome[core.Budget] {
	if b.UserID == 0 {
		b.UserID = s.userID()
	}
	if err := b.Validate(); err != nil {
		return invalid[core.Budget]("budget", err)
	}
	return s.mut.Update(ctx, b)
}

func (s *BudgetService) Delete(ctx context.Context, id int64) repository.Outcome[core.Budget] {
	return s.mut.Delete(ctx, core.Budget{ID: id, UserID: s.userID()})
}

func (s *BudgetService) Refresh(ctx context.Context) error {
	return s.list.Refresh(ctx, BudgetQuery{})
}
