// Package levels supplies the daily reference prices that anchor breakout
// detection: prior-day extremes, value-area bounds, and overnight extremes.
package levels

import (
	"github.com/quicktime/lvntrader/market"
)

// Kind identifies which reference level was broken.
type Kind int

const (
	PDH Kind = iota // prior day high
	PDL             // prior day low
	ONH             // overnight high
	ONL             // overnight low
	VAH             // value area high
	VAL             // value area low
)

func (k Kind) String() string {
	switch k {
	case PDH:
		return "PDH"
	case PDL:
		return "PDL"
	case ONH:
		return "ONH"
	case ONL:
		return "ONL"
	case VAH:
		return "VAH"
	case VAL:
		return "VAL"
	}
	return "UNKNOWN"
}

// DailyLevels holds one trading day's reference levels. Supplied once per
// day and read-only to the state machine; replaced wholesale when the next
// day's levels are computed or loaded.
type DailyLevels struct {
	Date        string  `json:"date"`
	PDH         float64 `json:"pdh"`
	PDL         float64 `json:"pdl"`
	PDC         float64 `json:"pdc"`
	POC         float64 `json:"poc"`
	VAH         float64 `json:"vah"`
	VAL         float64 `json:"val"`
	ONH         float64 `json:"onh"`
	ONL         float64 `json:"onl"`
	SessionHigh float64 `json:"session_high"`
	SessionLow  float64 `json:"session_low"`
}

// Breakout describes a level crossed beyond the breakout threshold.
type Breakout struct {
	Level     Kind
	Direction market.Direction
}

// CheckBreakout reports whether price has closed beyond one of the levels
// by more than threshold points. Levels are checked in significance order:
// prior-day extremes, then overnight, then value area. Zero-valued levels
// are treated as absent; the first cached day and hand-built partial level
// sets carry zeros for whatever could not be computed.
func (d DailyLevels) CheckBreakout(price, threshold float64) (Breakout, bool) {
	switch {
	case d.PDH > 0 && price > d.PDH+threshold:
		return Breakout{Level: PDH, Direction: market.Up}, true
	case d.PDL > 0 && price < d.PDL-threshold:
		return Breakout{Level: PDL, Direction: market.Down}, true
	case d.ONH > 0 && price > d.ONH+threshold:
		return Breakout{Level: ONH, Direction: market.Up}, true
	case d.ONL > 0 && price < d.ONL-threshold:
		return Breakout{Level: ONL, Direction: market.Down}, true
	case d.VAH > 0 && price > d.VAH+threshold:
		return Breakout{Level: VAH, Direction: market.Up}, true
	case d.VAL > 0 && price < d.VAL-threshold:
		return Breakout{Level: VAL, Direction: market.Down}, true
	}
	return Breakout{}, false
}
