package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fincache/internal/backend"
	"fincache/internal/core"
	"fincache/internal/services"
)

func newBudgetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Spending limits per category",
	}
	cmd.AddCommand(newBudgetsListCmd(a), newBudgetsAddCmd(a), newBudgetsDeleteCmd(a))
	return cmd
}

func newBudgetsListCmd(a *app) *cobra.Command {
	var (
		period, activeOn string
		category         int64
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budgets",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			q := services.BudgetQuery{CategoryID: category}
			var err error
			if q.Period, err = parsePeriodFlag(period); err != nil {
				return err
			}
			if q.ActiveOn, err = parseDateFlag("active-on", activeOn); err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Budgets.List(cmd.Context(), q))
		}),
	}
	cmd.Flags().StringVar(&period, "period", "", "weekly, monthly or yearly")
	cmd.Flags().Int64Var(&category, "category", 0, "category id")
	cmd.Flags().StringVar(&activeOn, "active-on", "", "only budgets covering this date (YYYY-MM-DD)")
	return cmd
}

func newBudgetsAddCmd(a *app) *cobra.Command {
	var (
		amount, period, start, end string
		category                   int64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a budget",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			b := core.Budget{CategoryID: category, Period: core.Period(period)}
			var err error
			if b.Amount, err = core.ParseAmount(amount); err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			if b.StartDate, err = parseDateFlag("start", start); err != nil {
				return err
			}
			if b.EndDate, err = parseDateFlag("end", end); err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Budgets.Add(cmd.Context(), b))
		}),
	}
	cmd.Flags().StringVar(&amount, "amount", "", "limit, e.g. 400")
	cmd.Flags().Int64Var(&category, "category", 0, "category id")
	cmd.Flags().StringVar(&period, "period", string(core.Monthly), "weekly, monthly or yearly")
	cmd.Flags().StringVar(&start, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newBudgetsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a budget",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Budgets.Delete(cmd.Context(), id))
		}),
	}
}
