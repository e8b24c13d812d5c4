package signal

import (
	"math"

	"github.com/quicktime/lvntrader/market"
)

// MarketState classifies recent price action as rotational or directional.
type MarketState int

const (
	Balanced MarketState = iota
	Imbalanced
)

func (s MarketState) String() string {
	if s == Imbalanced {
		return "IMBALANCED"
	}
	return "BALANCED"
}

// MarketStateConfig tunes the balance detector.
type MarketStateConfig struct {
	LookbackBars       int     `yaml:"lookback_bars" json:"lookback_bars"`
	RotationThreshold  int     `yaml:"rotation_threshold" json:"rotation_threshold"`
	RangeExpansionMult float64 `yaml:"range_expansion_mult" json:"range_expansion_mult"`
	DeltaThreshold     int64   `yaml:"delta_threshold" json:"delta_threshold"`
}

// DefaultMarketStateConfig returns the production tuning.
func DefaultMarketStateConfig() MarketStateConfig {
	return MarketStateConfig{
		LookbackBars:       60,
		RotationThreshold:  3,
		RangeExpansionMult: 2.0,
		DeltaThreshold:     200,
	}
}

// MarketStateResult carries the classification plus the measurements behind
// it, for logging and journaling.
type MarketStateResult struct {
	State           MarketState
	FairValue       float64
	ATR             float64
	RotationCount   int
	RangeRatio      float64
	CumulativeDelta int64
	TrendDirection  int
}

// DetectMarketState classifies the window of bars ending at index idx.
// Fewer bars than the lookback yields Balanced with zeroed measurements.
func DetectMarketState(bars []market.Bar, idx int, cfg MarketStateConfig) MarketStateResult {
	if idx+1 < cfg.LookbackBars || idx >= len(bars) {
		return MarketStateResult{State: Balanced}
	}
	window := bars[idx+1-cfg.LookbackBars : idx+1]

	fair := vwap(window)
	atr := averageTrueRange(window)
	rotations := fairValueCrossings(window, fair)
	var cumDelta int64
	hi, lo := window[0].High, window[0].Low
	for _, b := range window {
		cumDelta += b.Delta
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}

	ratio := 0.0
	if atr > 0 {
		ratio = (hi - lo) / atr
	}

	res := MarketStateResult{
		FairValue:       fair,
		ATR:             atr,
		RotationCount:   rotations,
		RangeRatio:      ratio,
		CumulativeDelta: cumDelta,
	}
	if absInt64(cumDelta) > cfg.DeltaThreshold/2 {
		if cumDelta > 0 {
			res.TrendDirection = 1
		} else {
			res.TrendDirection = -1
		}
	}

	switch {
	case ratio >= cfg.RangeExpansionMult || absInt64(cumDelta) > cfg.DeltaThreshold:
		res.State = Imbalanced
	default:
		res.State = Balanced
	}
	return res
}

// vwap is the volume-weighted typical price over the window.
func vwap(bars []market.Bar) float64 {
	var pv, vol float64
	for _, b := range bars {
		pv += b.TypicalPrice() * float64(b.Volume)
		vol += float64(b.Volume)
	}
	if vol == 0 {
		var sum float64
		for _, b := range bars {
			sum += b.TypicalPrice()
		}
		return sum / float64(len(bars))
	}
	return pv / vol
}

func averageTrueRange(bars []market.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		}
		sum += tr
	}
	return sum / float64(len(bars))
}

// fairValueCrossings counts closes crossing from one side of fair value to
// the other. Repeated crossings mean two-sided rotational trade.
func fairValueCrossings(bars []market.Bar, fair float64) int {
	crossings := 0
	var prevAbove *bool
	for _, b := range bars {
		above := b.Close > fair
		if prevAbove != nil && above != *prevAbove {
			crossings++
		}
		a := above
		prevAbove = &a
	}
	return crossings
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
