// Package config loads and validates the application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/quicktime/lvntrader/profile"
	"github.com/quicktime/lvntrader/signal"
)

// Config is the complete application configuration.
type Config struct {
	Trader  signal.TraderConfig  `json:"trader" yaml:"trader"`
	Machine signal.MachineConfig `json:"machine" yaml:"machine"`
	Profile profile.Config       `json:"profile" yaml:"profile"`
	Feed    FeedConfig           `json:"feed" yaml:"feed"`
	Cache   CacheConfig          `json:"cache" yaml:"cache"`
	Journal JournalConfig        `json:"journal" yaml:"journal"`
	Server  ServerConfig         `json:"server" yaml:"server"`
	Log     LogConfig            `json:"log" yaml:"log"`
}

// FeedConfig describes the live trade feed.
type FeedConfig struct {
	URL          string `json:"url" yaml:"url"`
	MinTradeSize uint64 `json:"min_trade_size" yaml:"min_trade_size"`
}

// CacheConfig locates the per-day session cache.
type CacheConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	Type     string `json:"type" yaml:"type"` // "csv" or "sqlite"
	Dir      string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath   string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradeLog string `json:"trade_log,omitempty" yaml:"trade_log,omitempty"`
}

// ServerConfig holds the listen addresses for the dashboard websocket
// and the prometheus scrape endpoint.
type ServerConfig struct {
	WSAddr      string `json:"ws_addr" yaml:"ws_addr"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content, trying YAML first).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadEnv reads a .env file if one exists. Missing files are not an
// error; real environment variables win over file values.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields commonly set per deployment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LVN_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("LVN_SYMBOL"); v != "" {
		c.Trader.Symbol = v
	}
	if v := os.Getenv("LVN_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("LVN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on
// extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Trader.Symbol == "" {
		return fmt.Errorf("trader.symbol is required")
	}
	if c.Trader.Contracts <= 0 {
		return fmt.Errorf("trader.contracts must be positive")
	}
	if c.Trader.PointValue <= 0 {
		return fmt.Errorf("trader.point_value must be positive")
	}
	if c.Trader.DailyLossLimit <= 0 {
		return fmt.Errorf("trader.daily_loss_limit must be positive")
	}
	if c.Trader.MaxLVNRatio <= 0 || c.Trader.MaxLVNRatio >= 1 {
		return fmt.Errorf("trader.max_lvn_ratio must be between 0 and 1")
	}
	if c.Machine.BreakoutThreshold <= 0 {
		return fmt.Errorf("machine.breakout_threshold must be positive")
	}
	if c.Machine.MaxImpulseBars <= 0 {
		return fmt.Errorf("machine.max_impulse_bars must be positive")
	}
	if c.Profile.BucketWidth <= 0 {
		return fmt.Errorf("profile.bucket_width must be positive")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && c.Journal.Dir == "" {
		return fmt.Errorf("journal.dir required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path required for SQLite type")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Trader:  signal.DefaultTraderConfig(),
		Machine: signal.DefaultMachineConfig(),
		Profile: profile.DefaultConfig(),
		Feed: FeedConfig{
			URL:          "ws://localhost:9000/trades",
			MinTradeSize: 0,
		},
		Cache: CacheConfig{Dir: "./cache"},
		Journal: JournalConfig{
			Type:     "sqlite",
			DBPath:   "./journal.db",
			TradeLog: "./trade_log.csv",
		},
		Server: ServerConfig{
			WSAddr:      ":8080",
			MetricsAddr: ":9100",
		},
		Log: LogConfig{Level: "info"},
	}
}
