package cli

import (
	"github.com/spf13/cobra"

	"fincache/internal/backend"
	"fincache/internal/core"
	"fincache/internal/services"
)

func newCategoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Transaction categories",
	}
	cmd.AddCommand(newCategoriesListCmd(a), newCategoriesAddCmd(a), newCategoriesDeleteCmd(a))
	return cmd
}

func newCategoriesListCmd(a *app) *cobra.Command {
	var flow string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			t, err := parseFlowFlag(flow)
			if err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Categories.List(cmd.Context(), services.CategoryQuery{Type: t}))
		}),
	}
	cmd.Flags().StringVar(&flow, "type", "", "income or expense")
	return cmd
}

func newCategoriesAddCmd(a *app) *cobra.Command {
	var name, flow, icon string
	var order int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a category",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			c := core.Category{Name: name, Type: core.FlowType(flow), Icon: icon, SortOrder: order}
			return printOutcome(cmd, stack.Services.Categories.Add(cmd.Context(), c))
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&flow, "type", string(core.Expense), "income or expense")
	cmd.Flags().StringVar(&icon, "icon", "", "icon name")
	cmd.Flags().IntVar(&order, "order", 0, "sort order")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCategoriesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return printOutcome(cmd, stack.Services.Categories.Delete(cmd.Context(), id))
		}),
	}
}
