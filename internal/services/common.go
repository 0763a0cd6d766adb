// Package services binds the generic fetch and mutate engines to the finance
// domains: transactions, budgets, categories, notifications and statistics.
// Every cache key is scoped by the current user.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"fincache/internal/core"
	"fincache/internal/identity"
	"fincache/internal/log"
	"fincache/internal/remote"
	"fincache/internal/repository"
)

// ErrNotFound is returned by single-entity loads that come back empty.
var ErrNotFound = errors.New("not found")

// base carries what every domain service needs.
type base struct {
	gw     remote.Gateway
	user   identity.Provider
	exec   *repository.Executor
	deps   repository.Deps
	logger *log.Logger
}

func (b base) userID() int64 { return b.user.CurrentUserID() }

func (b base) userParams() remote.Params {
	return remote.Params{"userId": formatID(b.userID())}
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// listLoader loads the full collection of res for the current user.
func listLoader[Q any, T any](b base, res remote.Resource) func(context.Context, Q) ([]T, error) {
	return func(ctx context.Context, _ Q) ([]T, error) {
		env, err := b.gw.List(ctx, res, b.userParams())
		if err != nil {
			return nil, err
		}
		return remote.Items[T](env, b.logger)
	}
}

// crudConfig fills the remote calls of a mutation config for res. The server
// echo is returned when present, otherwise the input entity.
func crudConfig[E core.Entity](b base, res remote.Resource, key func() string) repository.MutateConfig[E] {
	echo := func(env *remote.Envelope, in E) (E, error) {
		out, ok, err := remote.First[E](env, b.logger)
		if err != nil {
			return in, err
		}
		if !ok || out.EntityID() == 0 {
			return in, nil
		}
		return out, nil
	}

	return repository.MutateConfig[E]{
		Domain: string(res),
		Key:    key,
		Add: func(ctx context.Context, e E) (E, error) {
			env, err := b.gw.Add(ctx, res, e)
			if err != nil {
				return e, err
			}
			return echo(env, e)
		},
		Update: func(ctx context.Context, e E) (E, error) {
			env, err := b.gw.Update(ctx, res, e)
			if err != nil {
				return e, err
			}
			return echo(env, e)
		},
		Delete: func(ctx context.Context, e E) error {
			env, err := b.gw.Delete(ctx, res, e.EntityID())
			if err != nil {
				return err
			}
			return env.Err()
		},
	}
}

func invalid[T any](what string, err error) repository.Outcome[T] {
	return repository.Failed[T](fmt.Errorf("invalid %s: %w", what, err))
}
