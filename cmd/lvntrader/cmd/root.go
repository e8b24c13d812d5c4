package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quicktime/lvntrader/config"
)

var rootCmd = &cobra.Command{
	Use:   "lvntrader",
	Short: "An LVN retest trading system for index futures",
	Long: `lvntrader trades low-volume-node retests on index futures.

It watches for breakouts of daily reference levels, profiles the
impulse that follows, and enters when price returns to a low-volume
node left behind by that impulse.

Commands cover the full workflow:
  - precompute: turn raw trade history into per-day session caches
  - replay:     run the strategy over cached days and report results
  - live:       trade a live feed with websocket and prometheus output
  - summary:    print journal statistics`,
}

var (
	cfgPath  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")
}

// loadConfig reads the config file when given, otherwise defaults,
// with .env and environment overrides applied either way.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	if cfgPath != "" {
		return config.LoadFromFile(cfgPath)
	}
	cfg := config.Default()
	cfg.ApplyEnv()
	return cfg, nil
}

// newLogger builds the process logger from config plus the --log-level
// override.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("bad log level %q: %w", level, err)
	}

	var log zerolog.Logger
	if cfg.Log.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(lvl).With().Timestamp().Logger(), nil
}
