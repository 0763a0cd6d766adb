package services

import (
	"context"
	"fmt"

	"fincache/internal/core"
	"fincache/internal/remote"
	"fincache/internal/repository"
)

// TransactionQuery narrows the cached transaction list. Zero fields match all.
type TransactionQuery struct {
	Type       core.FlowType
	CategoryID int64
	From       core.Date
	To         core.Date
}

func (q TransactionQuery) match(t core.Transaction) bool {
	if q.Type != "" && t.Type != q.Type {
		return false
	}
	if q.CategoryID != 0 && t.CategoryID != q.CategoryID {
		return false
	}
	return t.Date.InRange(q.From, q.To)
}

type TransactionService struct {
	base
	list *repository.Fetcher[TransactionQuery, []core.Transaction]
	item *repository.Fetcher[int64, core.Transaction]
	mut  *repository.Mutator[core.Transaction]
}

func newTransactionService(b base, fallback repository.Fallback) *TransactionService {
	s := &TransactionService{base: b}

	s.list = repository.NewFetcher(repository.FetchConfig[TransactionQuery, []core.Transaction]{
		Domain:   DomainTransactions,
		Key:      func(TransactionQuery) string { return TransactionsKey(s.userID()) },
		Load:     listLoader[TransactionQuery, core.Transaction](b, remote.Transactions),
		Fallback: fallback,
		Filter: func(txs []core.Transaction, q TransactionQuery) []core.Transaction {
			return repository.Select(txs, q.match)
		},
	}, b.deps)

	s.item = repository.NewFetcher(repository.FetchConfig[int64, core.Transaction]{
		Domain:   DomainTransactions,
		Key:      func(id int64) string { return TransactionItemKey(s.userID(), id) },
		Load:     s.loadOne,
		Fallback: fallback,
	}, b.deps)

	cfg := crudConfig[core.Transaction](b, remote.Transactions, func() string { return TransactionsKey(s.userID()) })
	cfg.ItemKey = func(id int64) string { return TransactionItemKey(s.userID(), id) }
	s.mut = repository.NewMutator(cfg, b.deps)
	return s
}

func (s *TransactionService) loadOne(ctx context.Context, id int64) (core.Transaction, error) {
	env, err := s.gw.Get(ctx, remote.Transactions, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t, ok, err := remote.First[core.Transaction](env, s.logger)
	if err != nil {
		return core.Transaction{}, err
	}
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return t, nil
}

// List returns the current user's transactions matching q.
func (s *TransactionService) List(ctx context.Context, q TransactionQuery) repository.Outcome[[]core.Transaction] {
	return s.list.Fetch(ctx, q)
}

// ListAsync runs List on the executor.
func (s *TransactionService) ListAsync(ctx context.Context, q TransactionQuery) *repository.Future[[]core.Transaction] {
	return repository.Submit(s.exec, ctx, func(ctx context.Context) repository.Outcome[[]core.Transaction] {
		return s.List(ctx, q)
	})
}

// Get returns one transaction, cached under its own key.
func (s *TransactionService) Get(ctx context.Context, id int64) repository.Outcome[core.Transaction] {
	return s.item.Fetch(ctx, id)
}

func (s *TransactionService) Add(ctx context.Context, t core.Transaction) repository.Outcome[core.Transaction] {
	if t.UserID == 0 {
		t.UserID = s.userID()
	}
	if err := t.Validate(); err != nil {
		return invalid[core.Transaction]("transaction", err)
	}
	return s.mut.Add(ctx, t)
}

func (s *TransactionService) Update(ctx context.Context, t core.Transaction) repository.Outcome[core.Transaction] {
	if t.UserID == 0 {
		t.UserID = s.userID()
	}
	if err := t.Validate(); err != nil {
		return invalid[core.Transaction]("transaction", err)
	}
	return s.mut.Update(ctx, t)
}

func (s *TransactionService) Delete(ctx context.Context, id int64) repository.Outcome[core.Transaction] {
	return s.mut.Delete(ctx, core.Transaction{ID: id, UserID: s.userID()})
}

// AddAsync runs Add on the executor.
func (s *TransactionService) AddAsync(ctx context.Context, t core.Transaction) *repository.Future[core.Transaction] {
	return repository.Submit(s.exec, ctx, func(ctx context.Context) repository.Outcome[core.Transaction] {
		return s.Add(ctx, t)
	})
}

// Refresh reloads the full list into the cache.
func (s *TransactionService) Refresh(ctx context.Context) error {
	return s.list.Refresh(ctx, TransactionQuery{})
}

// Cached reads the cached list without the network.
func (s *TransactionService) Cached(q TransactionQuery) ([]core.Transaction, bool) {
	txs, _, ok := s.list.Peek(q)
	return txs, ok
}
