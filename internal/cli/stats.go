package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"fincache/internal/backend"
	"fincache/internal/core"
	"fincache/internal/repository"
	"fincache/internal/services"
)

type statFlags struct {
	period string
	from   string
	to     string
	flow   string
}

// query defaults to the current month when no range is given.
func (f statFlags) query(now time.Time) (services.StatQuery, error) {
	var q services.StatQuery
	if f.from == "" && f.to == "" {
		q = services.CurrentMonth(now)
	}

	var err error
	if f.period != "" {
		if q.Period, err = parsePeriodFlag(f.period); err != nil {
			return q, err
		}
	}
	if f.from != "" {
		if q.From, err = parseDateFlag("from", f.from); err != nil {
			return q, err
		}
	}
	if f.to != "" {
		if q.To, err = parseDateFlag("to", f.to); err != nil {
			return q, err
		}
	}
	if q.Type, err = parseFlowFlag(f.flow); err != nil {
		return q, err
	}
	return q, nil
}

type statFunc func(*services.StatisticsService, context.Context, services.StatQuery) repository.Outcome[core.StatisticResult]

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Server-computed statistics",
	}
	cmd.AddCommand(
		newStatCmd(a, "overview", "Income, expense and balance totals", (*services.StatisticsService).Overview),
		newStatCmd(a, "categories", "Amounts per category", (*services.StatisticsService).CategoryBreakdown),
		newStatCmd(a, "trend", "Totals over time", (*services.StatisticsService).Trend),
	)
	return cmd
}

func newStatCmd(a *app, use, short string, fn statFunc) *cobra.Command {
	var f statFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			q, err := f.query(time.Now())
			if err != nil {
				return err
			}
			return printOutcome(cmd, fn(stack.Services.Statistics, cmd.Context(), q))
		}),
	}
	cmd.Flags().StringVar(&f.period, "period", "", "weekly, monthly or yearly")
	cmd.Flags().StringVar(&f.from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.flow, "type", "", "income or expense")
	return cmd
}
