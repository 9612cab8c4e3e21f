package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"quantbot/config"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List recent trades from storage",
	Long: `List the most recent trades recorded by the engine, newest first.

Reads the store named by DATABASE_URL, so it works against a live
engine's database as well as an idle one.

Example:
  quantbot trades -n 25`,
	RunE: runTrades,
}

var tradesLimit int

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().IntVarP(&tradesLimit, "limit", "n", 10, "number of trades to show")
}

func runTrades(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	repo, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	trades, err := repo.RecentTrades(ctx, tradesLimit)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Println("no trades recorded yet")
		return nil
	}

	fmt.Printf("%-20s %-4s %12s %14s %12s  %s\n",
		"TIME (UTC)", "SIDE", "PRICE", "QUANTITY", "CASH AFTER", "REASON")
	for _, tr := range trades {
		fmt.Printf("%-20s %-4s %12.2f %14.6f %12.2f  %s\n",
			tr.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			tr.Side, tr.Price, tr.Quantity, tr.CashAfter, tr.Reason)
	}
	return nil
}
