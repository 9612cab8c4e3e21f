package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"quantbot/config"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show the persisted portfolio state",
	Long: `Show the portfolio row as last persisted by the engine.

Example:
  quantbot portfolio`,
	RunE: runPortfolio,
}

func init() {
	rootCmd.AddCommand(portfolioCmd)
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	repo, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	pf, found, err := repo.LoadPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	if !found {
		fmt.Println("no portfolio persisted yet; run the engine first")
		return nil
	}

	fmt.Printf("Cash balance:  $%.2f\n", pf.CashBalance)
	fmt.Printf("Asset balance: %.6f\n", pf.AssetBalance)
	if pf.InPosition {
		fmt.Printf("Position:      LONG (entry $%.2f, peak $%.2f)\n", pf.EntryPrice, pf.HighestPrice)
	} else {
		fmt.Println("Position:      flat")
	}
	fmt.Printf("Last updated:  %s\n", pf.LastUpdated.UTC().Format("2006-01-02 15:04:05"))
	return nil
}
