package cli

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"fincache/internal/backend"
	"fincache/internal/cache"
	"fincache/internal/log"
	"fincache/internal/worker"
)

type cacheKeyInfo struct {
	Key      string    `json:"key"`
	StoredAt time.Time `json:"storedAt"`
	TTL      string    `json:"ttl"`
	Valid    bool      `json:"valid"`
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the local cache",
	}
	cmd.AddCommand(newCacheKeysCmd(a), newCacheClearCmd(a), newCacheWarmCmd(a))
	return cmd
}

func newCacheKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List cached keys with their age and validity",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
			match := func(string) bool { return true }
			if len(args) == 1 {
				match = cache.InNamespace(args[0])
			}

			keys := stack.Store.Keys()
			sort.Strings(keys)

			out := make([]cacheKeyInfo, 0, len(keys))
			for _, k := range keys {
				if !match(k) {
					continue
				}
				e, ok := stack.Store.Get(k)
				if !ok {
					continue
				}
				out = append(out, cacheKeyInfo{
					Key:      k,
					StoredAt: e.StoredAt,
					TTL:      stack.Store.TTL(k).String(),
					Valid:    stack.Store.IsValid(k),
				})
			}
			return printJSON(cmd, out)
		}),
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [prefix]",
		Short: "Remove cached entries, all of them or those under prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
			match := func(string) bool { return true }
			if len(args) == 1 {
				match = cache.InNamespace(args[0])
			}
			n := stack.Store.RemoveMatching(match)
			a.logger.Info("Cache cleared", log.FieldOperation, log.OpClear, log.FieldCount, n)
			return printJSON(cmd, map[string]int{"removed": n})
		}),
	}
}

func newCacheWarmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Refresh every domain into the cache once",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			w := worker.NewWarmer(stack.Services.Refreshers(), stack.Probe,
				a.cfg.WarmInterval, a.cfg.WorkerConcurrency, a.logger.WithComponent(log.ComponentWorker))
			return w.WarmOnce(cmd.Context())
		}),
	}
}
