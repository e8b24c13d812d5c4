package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quicktime/lvntrader/cache"
	"github.com/quicktime/lvntrader/config"
	"github.com/quicktime/lvntrader/journal"
	"github.com/quicktime/lvntrader/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay cached session days through the strategy",
	Long: `Replay runs the trader over precomputed day caches and prints an
aggregate performance summary.

The date filter accepts an exact date, a substring, or an inclusive
start:end range.

Examples:
  lvntrader replay
  lvntrader replay --dates 2025-06-02
  lvntrader replay --dates 2025-06-02:2025-06-13`,
	RunE: runReplay,
}

var (
	replayDates  string
	replayNoJrnl bool
	replayPerDay bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayDates, "dates", "d", "", "date filter (exact, substring, or start:end)")
	replayCmd.Flags().BoolVar(&replayNoJrnl, "no-journal", false, "skip journal writes")
	replayCmd.Flags().BoolVar(&replayPerDay, "per-day", false, "print per-day results")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, err := cache.NewStore(cfg.Cache.Dir, log)
	if err != nil {
		return err
	}

	r := &replay.Runner{Store: store, Config: cfg.Trader, Log: log}
	if !replayNoJrnl {
		j, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer j.Close()
		r.Journal = j
	}

	res, err := r.Run(replayDates)
	if err != nil {
		return err
	}

	if replayPerDay {
		for _, day := range res.Days {
			fmt.Printf("%s  trades=%-3d wins=%-3d losses=%-3d net=%+.2f pts  levels=%d\n",
				day.Date, day.Trades, day.Wins, day.Losses, day.NetPnL, day.LVNLevels)
		}
		fmt.Println()
	}
	fmt.Println(replay.FormatSummary(res.Summary))
	return nil
}

// openJournal builds the backend named in config.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	if cfg.Journal.Type == "csv" {
		return journal.NewCSVJournal(cfg.Journal.Dir)
	}
	return journal.NewSQLite(cfg.Journal.DBPath)
}
