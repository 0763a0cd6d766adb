package services

import (
	"context"
	"sort"

	"fincache/internal/core"
	"fincache/internal/remote"
	"fincache/internal/repository"
)

type CategoryQuery struct {
	Type core.FlowType
}

type CategoryService struct {
	base
	list *repository.Fetcher[CategoryQuery, []core.Category]
	mut  *repository.Mutator[core.Category]
}

func newCategoryService(b base, fallback repository.Fallback) *CategoryService {
	s := &CategoryService{base: b}
	s.list = repository.NewFetcher(repository.FetchConfig[CategoryQuery, []core.Category]{
		Domain:   DomainCategories,
		Key:      func(CategoryQuery) string { return CategoriesKey(s.userID()) },
		Load:     listLoader[CategoryQuery, core.Category](b, remote.Categories),
		Fallback: fallback,
		Filter:   filterCategories,
	}, b.deps)
	s.mut = repository.NewMutator(
		crudConfig[core.Category](b, remote.Categories, func() string { return CategoriesKey(s.userID()) }),
		b.deps)
	return s
}

// filterCategories keeps q.Type and orders by sort order, then id.
func filterCategories(cats []core.Category, q CategoryQuery) []core.Category {
	out := repository.Select(cats, func(c core.Category) bool {
		return q.Type == "" || c.Type == q.Type
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *CategoryService) List(ctx context.Context, q CategoryQuery) repository.Outcome[[]core.Category] {
	return s.list.Fetch(ctx, q)
}

func (s *CategoryService) ListAsync(ctx context.Context, q CategoryQuery) *repository.Future[[]core.Category] {
	return repository.Submit(s.exec, ctx, func(ctx context.Context) repository.Outcome[[]core.Category] {
		return s.List(ctx, q)
	})
}

func (s *CategoryService) Add(ctx context.Context, c core.Category) repository.Outcome[core.Category] {
	if c.UserID == 0 {
		c.UserID = s.userID()
	}
	if err := c.Validate(); err != nil {
		return invalid[core.Category]("category", err)
	}
	return s.mut.Add(ctx, c)
}

func (s *CategoryService) Update(ctx context.Context, c core.Category) repository.Outcome[core.Category] {
	if c.UserID == 0 {
		c.UserID = s.userID()
	}
	if err := c.Validate(); err != nil {
		return invalid[core.Category]("category", err)
	}
	return s.mut.Update(ctx, c)
}

func (s *CategoryService) Delete(ctx context.Context, id int64) repository.Outcome[core.Category] {
	return s.mut.Delete(ctx, core.Category{ID: id, UserID: s.userID()})
}

func (s *CategoryService) Refresh(ctx context.Context) error {
	return s.list.Refresh(ctx, CategoryQuery{})
}
