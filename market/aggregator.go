package market

import "time"

// BarAggregator folds trades into one-second bars. At most one bar is in
// progress at a time; a trade in a later second finalizes the current bar
// and opens a new one. Seconds with no trades produce no bars.
//
// Trades must arrive in non-decreasing timestamp order. A trade older than
// the in-progress bar's second is skipped and counted, never folded.
type BarAggregator struct {
	current *barBuilder

	trades  uint64
	bars    uint64
	skipped uint64
}

type barBuilder struct {
	bucket time.Time
	bar    Bar
}

func NewBarAggregator() *BarAggregator {
	return &BarAggregator{}
}

// ProcessTrade folds one trade and returns the completed bar, if this trade
// started a new second. Returns nil while the current bar is still open.
func (a *BarAggregator) ProcessTrade(t Trade) *Bar {
	a.trades++

	bucket := t.Time.Truncate(time.Second)

	if a.current == nil {
		a.current = newBarBuilder(bucket, t)
		return nil
	}

	switch {
	case bucket.Equal(a.current.bucket):
		a.current.add(t)
		return nil
	case bucket.After(a.current.bucket):
		done := a.current.bar
		a.current = newBarBuilder(bucket, t)
		a.bars++
		return &done
	default:
		// Out of order: caller contract violation, skip.
		a.skipped++
		return nil
	}
}

// Flush finalizes and returns the in-progress bar, or nil if none.
// Used at end of stream or end of day.
func (a *BarAggregator) Flush() *Bar {
	if a.current == nil {
		return nil
	}
	done := a.current.bar
	a.current = nil
	a.bars++
	return &done
}

// Counters returns trades seen, bars completed, and trades skipped as
// out of order.
func (a *BarAggregator) Counters() (trades, bars, skipped uint64) {
	return a.trades, a.bars, a.skipped
}

func newBarBuilder(bucket time.Time, t Trade) *barBuilder {
	b := Bar{
		Time:       bucket,
		Open:       t.Price,
		High:       t.Price,
		Low:        t.Price,
		Close:      t.Price,
		Volume:     t.Size,
		TradeCount: 1,
		Symbol:     t.Symbol,
	}
	if t.IsBuy() {
		b.BuyVolume = t.Size
	} else {
		b.SellVolume = t.Size
	}
	b.Delta = int64(b.BuyVolume) - int64(b.SellVolume)
	return &barBuilder{bucket: bucket, bar: b}
}

func (bb *barBuilder) add(t Trade) {
	b := &bb.bar
	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price
	b.Volume += t.Size
	if t.IsBuy() {
		b.BuyVolume += t.Size
	} else {
		b.SellVolume += t.Size
	}
	b.Delta = int64(b.BuyVolume) - int64(b.SellVolume)
	b.TradeCount++
}
