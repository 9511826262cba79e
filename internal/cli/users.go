package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeonbongjun/roboadvisor/internal/store"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	create := &cobra.Command{
		Use:   "create USER",
		Short: "Register a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.store.Users.Create(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("user %s already exists", args[0])
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("created user "+u.UserID))
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get USER",
		Short: "Show a user with its portfolio, watchlist and chat sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.store.Users.Get(cmd.Context(), args[0])
			if err != nil {
				return notFound(err, "user %s not found", args[0])
			}

			names := a.stockNames(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(u.UserID))
			fmt.Fprintf(out, "%s %s\n\n", labelStyle.Render("created:"), u.CreatedAt.Format(time.RFC3339))

			fmt.Fprintln(out, labelStyle.Render("portfolio"))
			fmt.Fprintln(out, renderTable(holdingHeaders, holdingRows(u.PortfolioList, names)))
			fmt.Fprintln(out, labelStyle.Render("watchlist"))
			fmt.Fprintln(out, renderTable(watchHeaders, watchRows(u.WatchList, names)))
			fmt.Fprintln(out, labelStyle.Render("chat sessions"))
			fmt.Fprintln(out, renderTable(chatHeaders, chatRows(u.ChatSessionList)))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			after, _ := cmd.Flags().GetString("after")

			users, hasMore, next, err := a.store.Users.List(cmd.Context(), limit, after)
			if err != nil {
				return err
			}

			rows := make([][]string, len(users))
			for i, u := range users {
				rows[i] = []string{
					u.UserID,
					u.CreatedAt.Format(time.RFC3339),
					fmt.Sprint(u.Holdings),
					fmt.Sprint(u.Watched),
					fmt.Sprint(u.ChatSessions),
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"User", "Created", "Holdings", "Watched", "Chats"}, rows))
			if hasMore {
				fmt.Fprintln(out, dimStyle.Render("more results: --after "+next))
			}
			return nil
		},
	}
	list.Flags().Int("limit", 20, "maximum number of users to list")
	list.Flags().String("after", "", "list users whose ID sorts after this one")

	del := &cobra.Command{
		Use:   "delete USER",
		Short: "Delete a user and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Users.Delete(cmd.Context(), args[0]); err != nil {
				return notFound(err, "user %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("deleted user "+args[0]))
			return nil
		},
	}

	cmd.AddCommand(create, get, list, del)
	return cmd
}
