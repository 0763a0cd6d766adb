package cli

import (
	"github.com/spf13/cobra"

	"fincache/internal/backend"
	"fincache/internal/services"
)

func newNotificationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Server-generated notices",
	}
	cmd.AddCommand(
		newNotificationsListCmd(a),
		&cobra.Command{
			Use:   "unread",
			Short: "Count unread notifications",
			Args:  cobra.NoArgs,
			RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
				return printOutcome(cmd, stack.Services.Notifications.UnreadCount(cmd.Context()))
			}),
		},
		&cobra.Command{
			Use:   "read <id>",
			Short: "Mark one notification read",
			Args:  cobra.ExactArgs(1),
			RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return printOutcome(cmd, stack.Services.Notifications.MarkRead(cmd.Context(), id))
			}),
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification read",
			Args:  cobra.NoArgs,
			RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
				return printOutcome(cmd, stack.Services.Notifications.MarkAllRead(cmd.Context()))
			}),
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one notification",
			Args:  cobra.ExactArgs(1),
			RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return printOutcome(cmd, stack.Services.Notifications.Delete(cmd.Context(), id))
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every notification",
			Args:  cobra.NoArgs,
			RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
				return printOutcome(cmd, stack.Services.Notifications.DeleteAll(cmd.Context()))
			}),
		},
	)
	return cmd
}

func newNotificationsListCmd(a *app) *cobra.Command {
	var q services.NotificationQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: a.withStack(func(cmd *cobra.Command, stack *backend.Stack, _ []string) error {
			return printOutcome(cmd, stack.Services.Notifications.List(cmd.Context(), q))
		}),
	}
	cmd.Flags().BoolVar(&q.UnreadOnly, "unread", false, "only unread notifications")
	cmd.Flags().StringVar(&q.Type, "type", "", "notification type")
	return cmd
}
