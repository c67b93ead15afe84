package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"arbscanner/internal/app"
	"arbscanner/internal/ledger"
	"arbscanner/internal/model"
)

func newStatsCommand() *cobra.Command {
	var (
		limit  int
		fromDB bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the trade ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := contextOrBackground(cmd.Context())

			reader, closeFn, err := app.OpenReader(ctx, cfg, fromDB, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			trades, err := reader.ListTrades(ctx, limit)
			if err != nil {
				return fmt.Errorf("list trades: %w", err)
			}
			printSummary(cmd.OutOrStdout(), ledger.Summarize(trades), trades)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Only consider the most recent N trades (0 = all)")
	cmd.Flags().BoolVar(&fromDB, "db", false, "Read trades from Postgres instead of the ledger file")

	return cmd
}

func printSummary(w io.Writer, s ledger.Summary, trades []model.TradeRecord) {
	fmt.Fprintf(w, "Trades:        %d (%d succeeded)\n", s.TotalTrades, s.Succeeded)
	fmt.Fprintf(w, "Total profit:  $%s\n", s.TotalProfitUSD.StringFixed(2))
	if s.TotalTrades == 0 {
		return
	}
	fmt.Fprintf(w, "Period:        %s to %s\n", s.First.Format("2006-01-02 15:04:05"), s.Last.Format("2006-01-02 15:04:05"))
	if s.Best != nil {
		fmt.Fprintf(w, "Best trade:    %s %s %s%% ($%s)\n",
			s.Best.Symbol, s.Best.Route, s.Best.NetProfitPct.StringFixed(4), s.Best.ProfitUSD.StringFixed(2))
	}

	statuses := make([]string, 0, len(s.ByStatus))
	for status := range s.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	fmt.Fprintln(w, "\nBy status:")
	for _, status := range statuses {
		fmt.Fprintf(w, "  %-10s %d\n", status, s.ByStatus[model.TradeStatus(status)])
	}

	routes := make([]string, 0, len(s.ByRoute))
	for route := range s.ByRoute {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		if s.ByRoute[routes[i]] != s.ByRoute[routes[j]] {
			return s.ByRoute[routes[i]] > s.ByRoute[routes[j]]
		}
		return routes[i] < routes[j]
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nROUTE\tTRADES")
	for _, route := range routes {
		fmt.Fprintf(tw, "%s\t%d\n", route, s.ByRoute[route])
	}
	tw.Flush()

	fmt.Fprintf(w, "\nLast %d trades:\n", min(len(trades), 5))
	for _, t := range trades[max(0, len(trades)-5):] {
		fmt.Fprintf(w, "  %s  %-9s %-10s %s %s%% $%s\n",
			t.ExecutedAt.Format("2006-01-02 15:04:05"), t.Symbol, t.Status, t.Route,
			t.NetProfitPct.StringFixed(4), t.ProfitUSD.StringFixed(2))
	}
}
