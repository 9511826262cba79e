package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeonbongjun/roboadvisor/internal/domain"
)

func newStocksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "Query the stock master",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stocks ordered by short code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			market, _ := cmd.Flags().GetString("market")
			limit, _ := cmd.Flags().GetInt("limit")
			after, _ := cmd.Flags().GetString("after")

			page, err := a.store.Stocks.List(cmd.Context(), domain.StockListOpts{
				Market: market,
				Limit:  limit,
				After:  after,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(page.Results))
			for i, s := range page.Results {
				rows[i] = []string{s.StockID, s.StockName, s.Market, s.TickerSymbol}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Code", "Name", "Market", "Standard code"}, rows))
			if page.HasMore {
				fmt.Fprintln(out, dimStyle.Render("more results: --after "+page.NextAfter))
			}
			return nil
		},
	}
	list.Flags().String("market", "", "only list stocks of this market (KOSPI, KOSDAQ, KONEX)")
	list.Flags().Int("limit", 20, "maximum number of stocks to list")
	list.Flags().String("after", "", "list stocks whose code sorts after this one")

	get := &cobra.Command{
		Use:   "get CODE",
		Short: "Show one stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store.Stocks.Get(cmd.Context(), args[0])
			if err != nil {
				return notFound(err, "stock %s not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(s.StockName))
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("code:         "), s.StockID)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("standard code:"), s.TickerSymbol)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("market:       "), s.Market)
			return nil
		},
	}

	count := &cobra.Command{
		Use:   "count",
		Short: "Print the number of stocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.store.Stocks.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.AddCommand(list, get, count)
	return cmd
}
