package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jeonbongjun/roboadvisor/internal/domain"
)

// Collection commands load the User aggregate, change one collection and
// save the whole aggregate, so removals go through orphan removal in the
// store rather than direct row deletes.

var (
	holdingHeaders = []string{"Code", "Name", "Quantity", "Avg price", "Cost"}
	watchHeaders   = []string{"Code", "Name", "Added"}
	chatHeaders    = []string{"Session", "Title", "Created"}
)

func (a *app) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := a.store.Users.Get(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user %s not found (create it with: roboadvisor users create %s)", userID, userID)
	}
	return u, nil
}

func (a *app) requireStock(ctx context.Context, code string) error {
	if _, err := a.store.Stocks.Get(ctx, code); err != nil {
		return notFound(err, "stock %s not found", code)
	}
	return nil
}

// stockNames returns a lookup of display names by short code. Unknown codes
// map to an empty name.
func (a *app) stockNames(ctx context.Context) func(string) string {
	cache := map[string]string{}
	return func(code string) string {
		if name, ok := cache[code]; ok {
			return name
		}
		name := ""
		if s, err := a.store.Stocks.Get(ctx, code); err == nil {
			name = s.StockName
		}
		cache[code] = name
		return name
	}
}

func holdingRows(list []domain.Portfolio, name func(string) string) [][]string {
	rows := make([][]string, len(list))
	for i, p := range list {
		rows[i] = []string{
			p.StockID,
			name(p.StockID),
			p.Quantity.String(),
			p.AveragePrice.StringFixed(2),
			p.Quantity.Mul(p.AveragePrice).StringFixed(0),
		}
	}
	return rows
}

func watchRows(list []domain.Watchlist, name func(string) string) [][]string {
	rows := make([][]string, len(list))
	for i, w := range list {
		rows[i] = []string{w.StockID, name(w.StockID), w.AddedAt.Format(time.RFC3339)}
	}
	return rows
}

func chatRows(list []domain.ChatSession) [][]string {
	rows := make([][]string, len(list))
	for i, c := range list {
		rows[i] = []string{c.SessionID, c.Title, c.CreatedAt.Format(time.RFC3339)}
	}
	return rows
}

func newWatchlistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Manage a user's watchlist",
	}

	add := &cobra.Command{
		Use:   "add USER CODE",
		Short: "Watch a stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.requireStock(ctx, args[1]); err != nil {
				return err
			}

			if _, err := u.AddToWatchlist(args[1]); err != nil {
				if errors.Is(err, domain.ErrAlreadyWatched) {
					return fmt.Errorf("%s already watches %s", u.UserID, args[1])
				}
				return err
			}
			if err := a.store.Users.Save(ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("%s now watches %s", u.UserID, args[1])))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove USER CODE",
		Short: "Stop watching a stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}

			if !u.RemoveFromWatchlist(args[1]) {
				return fmt.Errorf("%s does not watch %s", u.UserID, args[1])
			}
			if err := a.store.Users.Save(ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("%s no longer watches %s", u.UserID, args[1])))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list USER",
		Short: "Show a user's watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(watchHeaders, watchRows(u.WatchList, a.stockNames(ctx))))
			return nil
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

func newPortfolioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage a user's holdings",
	}

	add := &cobra.Command{
		Use:   "add USER CODE QUANTITY PRICE",
		Short: "Record a purchase; repeated purchases average the price",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			qty, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[2], err)
			}
			price, err := decimal.NewFromString(args[3])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[3], err)
			}

			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.requireStock(ctx, args[1]); err != nil {
				return err
			}

			p, err := u.AddHolding(args[1], qty, price)
			if err != nil {
				return err
			}
			if err := a.store.Users.Save(ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("%s holds %s x %s at %s",
				u.UserID, p.Quantity, p.StockID, p.AveragePrice.StringFixed(2))))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove USER CODE",
		Short: "Drop a holding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}

			if !u.RemoveHolding(args[1]) {
				return fmt.Errorf("%s does not hold %s", u.UserID, args[1])
			}
			if err := a.store.Users.Save(ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("removed %s from %s's portfolio", args[1], u.UserID)))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list USER",
		Short: "Show a user's holdings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(holdingHeaders, holdingRows(u.PortfolioList, a.stockNames(ctx))))

			total := decimal.Zero
			for _, p := range u.PortfolioList {
				total = total.Add(p.Quantity.Mul(p.AveragePrice))
			}
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("total cost:"), total.StringFixed(0))
			return nil
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Manage a user's advisory chat sessions",
	}

	open := &cobra.Command{
		Use:   "open USER TITLE...",
		Short: "Start a chat session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}

			c := u.OpenChatSession(strings.Join(args[1:], " "))
			if err := a.store.Users.Save(ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.SessionID)
			return nil
		},
	}

	closeCmd := &cobra.Command{
		Use:   "close USER SESSION",
		Short: "End and delete a chat session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.loadUser(ctx, args[0])
			if err != nil {
				return err
			}

			if !u.CloseChatSession(args[1]) {
				return fmt.Errorf("%s has no chat session %s", u.UserID, args[1])
			}
			if err := a.store.Users.Save(ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("closed chat session "+args[1]))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list USER",
		Short: "Show a user's chat sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.loadUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(chatHeaders, chatRows(u.ChatSessionList)))
			return nil
		},
	}

	cmd.AddCommand(open, closeCmd, list)
	return cmd
}
