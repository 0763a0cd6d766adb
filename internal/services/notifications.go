package services

import (
	"context"

	"fincache/internal/cache"
	"fincache/internal/core"
	"fincache/internal/log"
	"fincache/internal/remote"
	"fincache/internal/repository"
)

type NotificationQuery struct {
	UnreadOnly bool
	Type       string
}

func (q NotificationQuery) match(n core.Notification) bool {
	if q.UnreadOnly && n.IsRead {
		return false
	}
	return q.Type == "" || n.Type == q.Type
}

type NotificationService struct {
	base
	list *repository.Fetcher[NotificationQuery, []core.Notification]
	mut  *repository.Mutator[core.Notification]
}

func newNotificationService(b base, fallback repository.Fallback) *NotificationService {
	s := &NotificationService{base: b}
	s.list = repository.NewFetcher(repository.FetchConfig[NotificationQuery, []core.Notification]{
		Domain:   DomainNotifications,
		Key:      func(NotificationQuery) string { return NotificationsKey(s.userID()) },
		Load:     listLoader[NotificationQuery, core.Notification](b, remote.Notifications),
		Fallback: fallback,
		Filter: func(ns []core.Notification, q NotificationQuery) []core.Notification {
			return repository.Select(ns, q.match)
		},
	}, b.deps)

	cfg := crudConfig[core.Notification](b, remote.Notifications, func() string { return NotificationsKey(s.userID()) })
	// Notifications are created by the server only.
	cfg.Add = nil
	cfg.Update = nil
	s.mut = repository.NewMutator(cfg, b.deps)
	return s
}

func (s *NotificationService) List(ctx context.Context, q NotificationQuery) repository.Outcome[[]core.Notification] {
	return s.list.Fetch(ctx, q)
}

func (s *NotificationService) ListAsync(ctx context.Context, q NotificationQuery) *repository.Future[[]core.Notification] {
	return repository.Submit(s.exec, ctx, func(ctx context.Context) repository.Outcome[[]core.Notification] {
		return s.List(ctx, q)
	})
}

// UnreadCount counts unread notifications, with the same freshness as List.
func (s *NotificationService) UnreadCount(ctx context.Context) repository.Outcome[int] {
	return repository.Map(s.List(ctx, NotificationQuery{UnreadOnly: true}), func(ns []core.Notification) int {
		return len(ns)
	})
}

// MarkRead marks one notification read remotely and in the cached list.
func (s *NotificationService) MarkRead(ctx context.Context, id int64) repository.Outcome[int64] {
	return repository.Apply(ctx, s.mut, log.OpRead,
		func(ctx context.Context) (int64, error) {
			env, err := s.gw.Invoke(ctx, remote.Notifications, remote.ActionRead, map[string]int64{"id": id})
			if err != nil {
				return id, err
			}
			return id, env.Err()
		},
		func(ns []core.Notification, id int64) ([]core.Notification, bool) {
			for i, n := range ns {
				if n.ID != id {
					continue
				}
				if n.IsRead {
					return ns, false
				}
				out := append([]core.Notification(nil), ns...)
				out[i].IsRead = true
				return out, true
			}
			return ns, false
		})
}

// MarkAllRead marks every notification of the user read. The value is the
// count the server reports.
func (s *NotificationService) MarkAllRead(ctx context.Context) repository.Outcome[int] {
	return repository.Apply(ctx, s.mut, log.OpReadAll,
		func(ctx context.Context) (int, error) {
			env, err := s.gw.Invoke(ctx, remote.Notifications, remote.ActionReadAll, map[string]int64{"userId": s.userID()})
			if err != nil {
				return 0, err
			}
			return remote.Object[int](env, s.logger)
		},
		func(ns []core.Notification, _ int) ([]core.Notification, bool) {
			changed := false
			out := make([]core.Notification, len(ns))
			for i, n := range ns {
				if !n.IsRead {
					n.IsRead = true
					changed = true
				}
				out[i] = n
			}
			return out, changed
		})
}

func (s *NotificationService) Delete(ctx context.Context, id int64) repository.Outcome[core.Notification] {
	return s.mut.Delete(ctx, core.Notification{ID: id, UserID: s.userID()})
}

// DeleteAll removes every notification remotely and clears all cached
// notification entries of the user. The value is how many entries went.
func (s *NotificationService) DeleteAll(ctx context.Context) repository.Outcome[int] {
	return s.mut.Clear(ctx,
		func(ctx context.Context) error {
			env, err := s.gw.Invoke(ctx, remote.Notifications, remote.ActionClear, map[string]int64{"userId": s.userID()})
			if err != nil {
				return err
			}
			return env.Err()
		},
		cache.InNamespace(NotificationsKey(s.userID())))
}

func (s *NotificationService) Refresh(ctx context.Context) error {
	return s.list.Refresh(ctx, NotificationQuery{})
}
