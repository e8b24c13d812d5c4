package exec

import (
	"fmt"

	"github.com/quicktime/lvntrader/signal"
)

// Mode selects how orders leave the engine.
type Mode string

const (
	Simulation Mode = "simulation"
	Paper      Mode = "paper"
	Live       Mode = "live"
)

// Config tunes the execution engine.
type Config struct {
	Mode            Mode    `yaml:"mode" json:"mode"`
	Symbol          string  `yaml:"symbol" json:"symbol"`
	Exchange        string  `yaml:"exchange" json:"exchange"`
	MaxPositionSize int     `yaml:"max_position_size" json:"max_position_size"`
	DailyLossLimit  float64 `yaml:"daily_loss_limit" json:"daily_loss_limit"`
	MaxDailyLosses  int     `yaml:"max_daily_losses" json:"max_daily_losses"`
	TakeProfit      float64 `yaml:"take_profit" json:"take_profit"`
	TrailingStop    float64 `yaml:"trailing_stop" json:"trailing_stop"`
	StopBuffer      float64 `yaml:"stop_buffer" json:"stop_buffer"`
	PointValue      float64 `yaml:"point_value" json:"point_value"`
	StartHour       int     `yaml:"start_hour" json:"start_hour"`
	StartMinute     int     `yaml:"start_minute" json:"start_minute"`
	EndHour         int     `yaml:"end_hour" json:"end_hour"`
	EndMinute       int     `yaml:"end_minute" json:"end_minute"`

	// FlattenOnLimit closes open positions the moment the daily loss
	// limit trips. The default only blocks new entries and lets working
	// brackets run to their stops.
	FlattenOnLimit bool `yaml:"flatten_on_limit" json:"flatten_on_limit"`
}

// DefaultConfig returns the production 1-contract NQ tuning. The daily loss
// limit is in points, so 100 points is $2,000 on one NQ.
func DefaultConfig() Config {
	return Config{
		Mode:            Simulation,
		Symbol:          "NQ.c.0",
		Exchange:        "CME",
		MaxPositionSize: 1,
		DailyLossLimit:  100.0,
		MaxDailyLosses:  3,
		TakeProfit:      0.0,
		TrailingStop:    1.5,
		StopBuffer:      2.0,
		PointValue:      20.0,
		StartHour:       9,
		StartMinute:     30,
		EndHour:         11,
		EndMinute:       0,
	}
}

// ConfigFromTrader derives an engine config from the shared trader tuning.
// The trader's daily loss limit is in dollars and the engine's in points.
func ConfigFromTrader(t signal.TraderConfig) Config {
	c := DefaultConfig()
	c.Symbol = t.Symbol
	c.Exchange = t.Exchange
	c.MaxPositionSize = t.Contracts
	c.DailyLossLimit = t.DailyLossLimit / t.PointValue
	c.MaxDailyLosses = t.MaxDailyLosses
	c.TakeProfit = t.TakeProfit
	c.TrailingStop = t.TrailingStop
	c.StopBuffer = t.StopBuffer
	c.PointValue = t.PointValue
	c.StartHour = t.StartHour
	c.StartMinute = t.StartMinute
	c.EndHour = t.EndHour
	c.EndMinute = t.EndMinute
	return c
}

// Validate rejects configs the engine cannot run with.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("exec config: symbol is required")
	}
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("exec config: max_position_size must be positive, got %d", c.MaxPositionSize)
	}
	if c.PointValue <= 0 {
		return fmt.Errorf("exec config: point_value must be positive, got %v", c.PointValue)
	}
	if c.TrailingStop < 0 || c.StopBuffer < 0 || c.TakeProfit < 0 {
		return fmt.Errorf("exec config: distances must not be negative")
	}
	switch c.Mode {
	case Simulation, Paper, Live:
	default:
		return fmt.Errorf("exec config: unknown mode %q", c.Mode)
	}
	return nil
}

// MaxDollarLoss converts the point limit to dollars for a contract count.
func (c Config) MaxDollarLoss(contracts int) float64 {
	return c.DailyLossLimit * c.PointValue * float64(contracts)
}

// InTradingHours checks a local clock time against the session window.
func (c Config) InTradingHours(hour, minute int) bool {
	current := hour*60 + minute
	start := c.StartHour*60 + c.StartMinute
	end := c.EndHour*60 + c.EndMinute
	return current >= start && current < end
}
