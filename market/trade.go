package market

import "time"

// Side is the aggressor side of a trade.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Trade is a single market trade event. Immutable once produced.
type Trade struct {
	Time   time.Time
	Price  float64
	Size   uint64
	Side   Side
	Symbol string
}

// IsBuy reports whether the buyer was the aggressor.
func (t Trade) IsBuy() bool { return t.Side == Buy }
