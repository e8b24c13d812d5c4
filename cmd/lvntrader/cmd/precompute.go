package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quicktime/lvntrader/cache"
	"github.com/quicktime/lvntrader/levels"
	"github.com/quicktime/lvntrader/precompute"
	"github.com/quicktime/lvntrader/signal"
)

var precomputeCmd = &cobra.Command{
	Use:   "precompute",
	Short: "Build per-day session caches from raw trade history",
	Long: `Precompute reads a trade history CSV and writes one compressed
record per session date: one-second bars, daily reference levels, the
LVN levels each impulse produced, and the retest signals that fired.

Examples:
  lvntrader precompute --trades data/nq_june.csv
  lvntrader precompute --trades data/nq_june.csv --cache-dir ./cache`,
	RunE: runPrecompute,
}

var (
	precomputeTrades   string
	precomputeCacheDir string
)

func init() {
	rootCmd.AddCommand(precomputeCmd)

	precomputeCmd.Flags().StringVarP(&precomputeTrades, "trades", "t", "", "CSV of trades (time,price,size,side,symbol)")
	precomputeCmd.Flags().StringVar(&precomputeCacheDir, "cache-dir", "", "cache directory (default from config)")
	precomputeCmd.MarkFlagRequired("trades")
}

func runPrecompute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	dir := cfg.Cache.Dir
	if precomputeCacheDir != "" {
		dir = precomputeCacheDir
	}
	store, err := cache.NewStore(dir, log)
	if err != nil {
		return err
	}

	trades, err := precompute.ReadTradesCSV(precomputeTrades)
	if err != nil {
		return err
	}
	log.Info().Int("trades", len(trades)).Str("file", precomputeTrades).Msg("trades loaded")

	b := &precompute.Builder{
		Symbol:     cfg.Trader.Symbol,
		Clock:      levels.SessionClock{UTCOffsetHours: cfg.Trader.UTCOffsetHours},
		MachineCfg: cfg.Machine,
		ProfileCfg: cfg.Profile,
		RetestCfg:  signal.DefaultRetestConfig(),
		Log:        log,
	}
	days, err := b.BuildDays(trades)
	if err != nil {
		return err
	}

	for _, day := range days {
		if err := store.Save(day); err != nil {
			return fmt.Errorf("save day %s: %w", day.Date, err)
		}
	}
	fmt.Printf("Cached %d days to %s\n", len(days), dir)
	return nil
}
