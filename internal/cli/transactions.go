package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fincache/internal/backend"
	"fincache/internal/core"
	"fincache/internal/services"
)

func newTransactionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "Income and expense records",
	}
	cmd.AddCommand(
		newTransactionsListCmd(a),
		newTransactionsGetCmd(a),
		newTransactionsAddCmd(a),
		newTransactionsDeleteCmd(a),
	)
	return cmd
}

type transactionFilterFlags struct {
	flow     string
	category int64
	from     string
	to       string
}

func (f transactionFilterFlags) query() (services.TransactionQuery, error) {
	var q services.TransactionQuery
	var err error
	if q.Type, err = parseFlowFlag(f.flow); err != nil {
		return q, err
	}
	q.CategoryID = f.category
	if q.From, err = parseDateFlag("from", f.from); err != nil {
		return q, err
	}
	if q.To, err = parseDateFlag("to", f.to); err != nil {
		return q, err
	}
	return q, nil
}

func newTransactionsListCmd(a *app) *cobra.Command {
	var f transactionFilterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			q, err := f.query()
			if err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Transactions.List(cmd.Context(), q))
		}),
	}
	cmd.Flags().StringVar(&f.flow, "type", "", "income or expense")
	cmd.Flags().Int64Var(&f.category, "category", 0, "category id")
	cmd.Flags().StringVar(&f.from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last date (YYYY-MM-DD)")
	return cmd
}

func newTransactionsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Transactions.Get(cmd.Context(), id))
		}),
	}
}

func newTransactionsAddCmd(a *app) *cobra.Command {
	var (
		flow, amount, date, description string
		category                        int64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			t := core.Transaction{
				Type:        core.FlowType(flow),
				CategoryID:  category,
				Description: description,
			}
			var err error
			if t.Amount, err = core.ParseAmount(amount); err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			if t.Date, err = parseDateFlag("date", date); err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Transactions.Add(cmd.Context(), t))
		}),
	}
	cmd.Flags().StringVar(&flow, "type", string(core.Expense), "income or expense")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().Int64Var(&category, "category", 0, "category id")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "free text")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newTransactionsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Transactions.Delete(cmd.Context(), id))
		}),
	}
}

func parseFlowFlag(s string) (core.FlowType, error) {
	if s == "" {
		return "", nil
	}
	f := core.FlowType(s)
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("--type: %w", err)
	}
	return f, nil
}

func parsePeriodFlag(s string) (core.Period, error) {
	if s == "" {
		return "", nil
	}
	p := core.Period(s)
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("--period: %w", err)
	}
	return p, nil
}

func parseDateFlag(name, s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
