package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fincache/internal/backend"
	"fincache/internal/config"
	"fincache/internal/log"
	"fincache/internal/repository"
)

// rootFlags are the overrides accepted by every command. Unset flags leave
// the environment configuration alone.
type rootFlags struct {
	offline bool
	gateway string
	store   string
	dbPath  string
	userID  int64
}

// app carries the loaded configuration from PersistentPreRunE to the
// command bodies.
type app struct {
	flags  rootFlags
	cfg    *config.Config
	logger *log.Logger
}

// NewRootCmd creates the root Cobra command for the fincache CLI.
func NewRootCmd(ver string) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "fincache",
		Short:         "Offline-first cache for the personal finance API",
		Long:          "fincache reads and writes finance data through the remote API, falling back to the local cache when the network is unavailable.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVar(&a.flags.offline, "offline", false, "serve everything from the local cache")
	cmd.PersistentFlags().StringVar(&a.flags.gateway, "gateway", "", "remote gateway: http or memory (overrides GATEWAY)")
	cmd.PersistentFlags().StringVar(&a.flags.store, "cache", "", "cache backend: sqlite or memory (overrides CACHE_BACKEND)")
	cmd.PersistentFlags().StringVar(&a.flags.dbPath, "db", "", "cache database path (overrides CACHE_DB_PATH)")
	cmd.PersistentFlags().Int64Var(&a.flags.userID, "user", 0, "user id (overrides USER_ID)")

	cmd.AddCommand(
		newTransactionsCmd(a),
		newBudgetsCmd(a),
		newCategoriesCmd(a),
		newNotificationsCmd(a),
		newStatsCmd(a),
		newCacheCmd(a),
	)
	return cmd
}

const rootCmdExample = `  # List this month's expenses
  fincache transactions list --type expense --from 2025-01-01 --to 2025-01-31

  # Serve from cache only
  fincache --offline budgets list

  # Monthly overview
  fincache stats overview --period monthly

  # Mark every notification read
  fincache notifications read-all

  # Show what is cached
  fincache cache keys`

func (a *app) load(cmd *cobra.Command) error {
	cfg := config.Load()

	flags := cmd.Flags()
	if flags.Changed("gateway") {
		cfg.Gateway = a.flags.gateway
	}
	if flags.Changed("cache") {
		cfg.CacheBackend = a.flags.store
	}
	if flags.Changed("db") {
		cfg.CacheDBPath = a.flags.dbPath
	}
	if flags.Changed("user") {
		cfg.UserID = a.flags.userID
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = SetupLogger(cfg, log.ComponentCLI, cmd.ErrOrStderr())
	return nil
}

// stackFunc is a command body that needs the full backend stack.
type stackFunc func(cmd *cobra.Command, stack *backend.Stack, args []string) error

// withStack builds the stack for one command and tears it down afterwards,
// so queued background writes finish before the process exits.
func (a *app) withStack(fn stackFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		bc, err := backend.FromAppConfig(a.cfg)
		if err != nil {
			return err
		}
		bc.Offline = a.flags.offline
		// The CLI only publishes; the worker owns the consumer queue.
		bc.AMQPQueue = ""

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		stack, err := backend.NewFactory(a.logger.WithComponent(log.ComponentBackend)).Build(ctx, bc)
		if err != nil {
			return fmt.Errorf("initialize backend: %w", err)
		}
		defer func() {
			if err := stack.Cleanup(); err != nil {
				a.logger.Warn("Cleanup failed", log.FieldError, err)
			}
		}()

		return fn(cmd, stack, args)
	}
}

// printOutcome writes the status line to stderr and the value as indented
// JSON to stdout, so the output can be piped.
func printOutcome[T any](cmd *cobra.Command, o repository.Outcome[T]) error {
	v, err := o.Get()
	if err != nil {
		return fmt.Errorf("%s: %w", repository.Reason(err), err)
	}

	status := o.Status.String()
	if o.IsStale() {
		status += " (cached " + o.StoredAt.Local().Format(time.RFC3339) + ")"
	}
	cmd.PrintErrln("status:", status)

	return printJSON(cmd, v)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
