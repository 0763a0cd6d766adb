package services

import (
	"context"
	"errors"
	"time"

	"fincache/internal/cache"
	"fincache/internal/core"
	"fincache/internal/remote"
	"fincache/internal/repository"
)

// StatQuery parameterizes a statistic. Every field is part of the cache key.
type StatQuery struct {
	Period core.Period
	From   core.Date
	To     core.Date
	Type   core.FlowType
}

func (q StatQuery) params(userID int64) remote.Params {
	p := remote.Params{"userId": formatID(userID)}
	if q.Period != "" {
		p["period"] = string(q.Period)
	}
	if !q.From.IsZero() {
		p["from"] = q.From.String()
	}
	if !q.To.IsZero() {
		p["to"] = q.To.String()
	}
	if q.Type != "" {
		p["type"] = string(q.Type)
	}
	return p
}

// CurrentMonth is the query used when nothing more specific is known.
func CurrentMonth(now time.Time) StatQuery {
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	last := core.Date{Time: first.AddDate(0, 1, -1)}
	return StatQuery{Period: core.Monthly, From: first, To: last}
}

type statRequest struct {
	Kind  core.StatKind
	Query StatQuery
}

// StatisticsService serves computed statistics. By default it falls back to
// any cached result, however old, rather than failing.
type StatisticsService struct {
	base
	fetch *repository.Fetcher[statRequest, core.StatisticResult]
	now   func() time.Time
}

func newStatisticsService(b base, fallback repository.Fallback) *StatisticsService {
	s := &StatisticsService{base: b, now: b.deps.Store.Now}
	s.fetch = repository.NewFetcher(repository.FetchConfig[statRequest, core.StatisticResult]{
		Domain: DomainStatistics,
		Key: func(r statRequest) string {
			return StatisticsKey(s.userID(), r.Kind, r.Query)
		},
		Load:     s.load,
		Fallback: fallback,
	}, b.deps)
	return s
}

func (s *StatisticsService) load(ctx context.Context, r statRequest) (core.StatisticResult, error) {
	env, err := s.gw.Query(ctx, remote.Statistics, string(r.Kind), r.Query.params(s.userID()))
	if err != nil {
		return nil, err
	}
	res, err := remote.Object[core.StatisticResult](env, s.logger)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = core.StatisticResult{}
	}
	return res, nil
}

func (s *StatisticsService) Overview(ctx context.Context, q StatQuery) repository.Outcome[core.StatisticResult] {
	return s.fetch.Fetch(ctx, statRequest{Kind: core.StatOverview, Query: q})
}

func (s *StatisticsService) CategoryBreakdown(ctx context.Context, q StatQuery) repository.Outcome[core.StatisticResult] {
	return s.fetch.Fetch(ctx, statRequest{Kind: core.StatCategory, Query: q})
}

func (s *StatisticsService) Trend(ctx context.Context, q StatQuery) repository.Outcome[core.StatisticResult] {
	return s.fetch.Fetch(ctx, statRequest{Kind: core.StatTrend, Query: q})
}

func (s *StatisticsService) OverviewAsync(ctx context.Context, q StatQuery) *repository.Future[core.StatisticResult] {
	return repository.Submit(s.exec, ctx, func(ctx context.Context) repository.Outcome[core.StatisticResult] {
		return s.Overview(ctx, q)
	})
}

// Refresh reloads every statistic cached for the user, or the current
// month's overview when none is cached yet.
func (s *StatisticsService) Refresh(ctx context.Context) error {
	var reqs []statRequest
	for _, key := range s.deps.Store.Keys() {
		if !cache.InNamespace(StatisticsPrefix(s.userID()))(key) {
			continue
		}
		if _, kind, q, ok := parseStatisticsKey(key); ok {
			reqs = append(reqs, statRequest{Kind: kind, Query: q})
		}
	}
	if len(reqs) == 0 {
		reqs = append(reqs, statRequest{Kind: core.StatOverview, Query: CurrentMonth(s.now())})
	}

	var errs []error
	for _, r := range reqs {
		if err := s.fetch.Refresh(ctx, r); err != nil {
			errs = append(errs, err)
			if errors.Is(err, repository.ErrOffline) {
				break
			}
		}
	}
	return errors.Join(errs...)
}
