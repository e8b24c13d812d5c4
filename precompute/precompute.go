// Package precompute turns raw trade history into the per-day session
// cache the replay and live commands consume.
package precompute

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/quicktime/lvntrader/cache"
	"github.com/quicktime/lvntrader/levels"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/profile"
	"github.com/quicktime/lvntrader/signal"
)

// ReadTradesCSV loads a trade history file with the header
// time,price,size,side,symbol. Times are RFC3339 and side is BUY or
// SELL.
func ReadTradesCSV(path string) ([]market.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trades %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 5 || header[0] != "time" {
		return nil, fmt.Errorf("unexpected header %v, want time,price,size,side,symbol", header)
	}

	var trades []market.Trade
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d time: %w", line, err)
		}
		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d price: %w", line, err)
		}
		size, err := strconv.ParseUint(rec[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d size: %w", line, err)
		}
		side := market.Buy
		if rec[3] == "SELL" || rec[3] == "S" {
			side = market.Sell
		}
		trades = append(trades, market.Trade{
			Time: ts, Price: price, Size: size, Side: side, Symbol: rec[4],
		})
	}
	return trades, nil
}

// Builder converts a trade stream into cached day records: one-second
// bars, the LVN levels each impulse produced, and the retest signals
// that fired.
type Builder struct {
	Symbol     string
	Clock      levels.SessionClock
	MachineCfg signal.MachineConfig
	ProfileCfg profile.Config
	RetestCfg  signal.RetestConfig
	Log        zerolog.Logger
}

// BuildDays processes trades in time order and emits one record per
// local calendar date. The first day has no prior session, so its
// machine never arms; it still contributes bars and next-day levels.
func (b *Builder) BuildDays(trades []market.Trade) ([]cache.DayRecord, error) {
	if len(trades) == 0 {
		return nil, fmt.Errorf("no trades to precompute")
	}

	byDay := b.groupByDay(trades)

	var days []cache.DayRecord
	var prevBars []market.Bar

	for _, day := range byDay {
		rec := cache.DayRecord{Date: day.date}

		agg := market.NewBarAggregator()
		for _, tr := range day.trades {
			if bar := agg.ProcessTrade(tr); bar != nil {
				rec.Bars = append(rec.Bars, *bar)
			}
		}
		if bar := agg.Flush(); bar != nil {
			rec.Bars = append(rec.Bars, *bar)
		}

		if prevBars != nil {
			rec.DailyLevels = b.computeLevels(day.date, prevBars)
			b.runMachine(&rec, day.trades)
		} else {
			b.Log.Info().Str("date", day.date).Msg("first day, no prior session levels")
			rec.DailyLevels.Date = day.date
		}

		b.Log.Info().
			Str("date", day.date).
			Int("bars", len(rec.Bars)).
			Int("lvn_levels", len(rec.LVNLevels)).
			Int("signals", len(rec.Signals)).
			Msg("day built")

		days = append(days, rec)
		prevBars = rec.Bars
	}
	return days, nil
}

type dayTrades struct {
	date   string
	trades []market.Trade
}

func (b *Builder) groupByDay(trades []market.Trade) []dayTrades {
	var out []dayTrades
	for _, tr := range trades {
		date := b.Clock.Local(tr.Time).Format("2006-01-02")
		if len(out) == 0 || out[len(out)-1].date != date {
			out = append(out, dayTrades{date: date})
		}
		d := &out[len(out)-1]
		d.trades = append(d.trades, tr)
	}
	return out
}

// computeLevels derives date's reference levels from the prior
// session's bars, split into RTH and overnight segments.
func (b *Builder) computeLevels(date string, prior []market.Bar) levels.DailyLevels {
	var rth, overnight []market.Bar
	for _, bar := range prior {
		switch {
		case b.Clock.InRTH(bar.Time):
			rth = append(rth, bar)
		case b.Clock.InOvernight(bar.Time):
			overnight = append(overnight, bar)
		}
	}
	return levels.ComputeFromSession(date, rth, overnight)
}

// runMachine replays the day through the breakout machine and retest
// tracker, collecting LVN levels and the signals that fired.
func (b *Builder) runMachine(rec *cache.DayRecord, trades []market.Trade) {
	machine := signal.NewMachine(b.Symbol, b.MachineCfg, b.ProfileCfg)
	machine.SetDailyLevels(rec.DailyLevels)
	tracker := signal.NewRetestTracker(b.RetestCfg, signal.DefaultMarketStateConfig(), b.Clock)

	agg := market.NewBarAggregator()
	process := func(bar market.Bar) {
		if ev := machine.ProcessBar(bar); ev != nil {
			switch ev.Kind {
			case signal.EventImpulseComplete:
				rec.LVNLevels = append(rec.LVNLevels, ev.LVNs...)
				tracker.AddLevels(ev.LVNs)
			case signal.EventHuntingTimeout:
				tracker.ClearImpulse(ev.ImpulseID)
			}
		}
		if sig := tracker.ProcessBar(bar); sig != nil {
			rec.Signals = append(rec.Signals, cache.SignalEntry{
				Time:       bar.Time,
				Direction:  sig.Direction.String(),
				Price:      sig.Price,
				LevelPrice: sig.LevelPrice,
				Delta:      sig.Delta,
				ImpulseID:  sig.ImpulseID,
			})
		}
	}

	for _, tr := range trades {
		machine.ProcessTrade(tr)
		if bar := agg.ProcessTrade(tr); bar != nil {
			process(*bar)
		}
	}
	if bar := agg.Flush(); bar != nil {
		process(*bar)
	}
}
