// Package worker keeps the cache warm in the background: a periodic
// refresh of every domain, and refreshes driven by the change feed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fincache/internal/log"
	"fincache/internal/probe"
	"fincache/internal/services"
)

const (
	DefaultWarmInterval = 5 * time.Minute
	DefaultConcurrency  = 4
)

// Warmer refreshes every domain into the cache on start and then on a fixed
// interval. Rounds are skipped while offline.
type Warmer struct {
	refreshers  map[string]services.Refresher
	probe       probe.Probe
	interval    time.Duration
	concurrency int
	logger      *log.Logger
}

func NewWarmer(refreshers map[string]services.Refresher, p probe.Probe, interval time.Duration, concurrency int, logger *log.Logger) *Warmer {
	if interval <= 0 {
		interval = DefaultWarmInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if p == nil {
		p = probe.Static(true)
	}
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &Warmer{
		refreshers:  refreshers,
		probe:       p,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
	}
}

// WarmOnce refreshes all domains concurrently. One domain failing does not
// stop the others; the returned error joins every failure.
func (w *Warmer) WarmOnce(ctx context.Context) error {
	if !w.probe.IsOnline(ctx) {
		w.logger.InfoContext(ctx, "Offline, skipping cache warm-up", log.FieldOperation, log.OpRefresh)
		return nil
	}

	domains := make([]string, 0, len(w.refreshers))
	for d := range w.refreshers {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	start := time.Now()
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, d := range domains {
		d := d
		r := w.refreshers[d]
		g.Go(func() error {
			if err := r.Refresh(gctx); err != nil {
				w.logger.WarnContext(gctx, "Domain refresh failed",
					log.FieldOperation, log.OpRefresh,
					log.FieldDomain, d,
					log.FieldError, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", d, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "Cache warm-up completed",
		log.FieldOperation, log.OpRefresh,
		log.FieldCount, len(domains),
		"failed", len(errs),
		log.FieldDuration, time.Since(start).Milliseconds())
	return errors.Join(errs...)
}

// Run warms the cache immediately and then every interval until ctx is done.
func (w *Warmer) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Cache warmer started", "interval", w.interval.String())
	_ = w.WarmOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Cache warmer stopped", log.FieldOperation, log.OpShutdown)
			return nil
		case <-ticker.C:
			_ = w.WarmOnce(ctx)
		}
	}
}
