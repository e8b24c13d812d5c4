package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quicktime/lvntrader/journal"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print journal statistics",
	Long: `Summary reads the SQLite journal and prints per-day results plus
recent trades.

Examples:
  lvntrader summary
  lvntrader summary --days 5`,
	RunE: runSummary,
}

var summaryDays int

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().IntVar(&summaryDays, "days", 30, "how many days of trades to list")
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal.Type != "sqlite" {
		return fmt.Errorf("summary needs a sqlite journal, config has %q", cfg.Journal.Type)
	}

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return err
	}
	defer j.Close()

	days, err := j.DailySummaries()
	if err != nil {
		return err
	}
	if len(days) == 0 {
		fmt.Println("No journaled days yet.")
		return nil
	}

	fmt.Println("Date        Trades  W   L   BE  Net pts   Balance")
	for _, d := range days {
		fmt.Printf("%s  %-6d %-3d %-3d %-3d %+8.2f  $%.2f\n",
			d.Date, d.Trades, d.Wins, d.Losses, d.Breakevens, d.NetPnL, d.Balance)
	}

	end := time.Now()
	start := end.AddDate(0, 0, -summaryDays)
	trades, err := j.ListTradesBetween(start, end)
	if err != nil {
		return err
	}

	fmt.Printf("\n%d trades in the last %d days\n", len(trades), summaryDays)
	for _, t := range trades {
		fmt.Printf("%s  %-5s %.2f -> %.2f  %+6.2f pts  %s\n",
			t.ExitTime.Format("2006-01-02 15:04"), t.Direction,
			t.EntryPrice, t.ExitPrice, t.PnLPoints, t.ExitType)
	}
	return nil
}
