// Package replay drives the trader over cached session days and
// produces an aggregate performance summary.
package replay

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quicktime/lvntrader/cache"
	"github.com/quicktime/lvntrader/internal/id"
	"github.com/quicktime/lvntrader/journal"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/signal"
)

// Runner replays cached days through a fresh Trader. Journal is
// optional; when set, completed trades and per-day summaries are
// recorded to it.
type Runner struct {
	Store   *cache.Store
	Config  signal.TraderConfig
	Journal journal.Journal
	Log     zerolog.Logger
}

// DayResult is the per-day slice of a replay.
type DayResult struct {
	Date      string  `json:"date"`
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	NetPnL    float64 `json:"net_pnl"`
	LVNLevels int     `json:"lvn_levels"`
}

// Result is the outcome of a full replay run.
type Result struct {
	Days    []DayResult           `json:"days"`
	Summary signal.TradingSummary `json:"summary"`
}

type openEntry struct {
	direction signal.Direction
	price     float64
	stop      float64
	lvnLevel  float64
	bar       market.Bar
}

// Run replays every cached day matching filter, oldest first.
func (r *Runner) Run(filter string) (Result, error) {
	days, err := r.Store.LoadAll(filter)
	if err != nil {
		return Result{}, err
	}
	if len(days) == 0 {
		return Result{}, fmt.Errorf("no cached days match %q", filter)
	}

	trader := signal.NewTrader(r.Config, r.Log)

	var res Result
	var lastClose *float64
	var open *openEntry

	for i, day := range days {
		if i > 0 {
			trader.ResetForNewDay(lastClose)
			open = nil
		}
		trader.SetDailyLevels(day.DailyLevels)
		added := trader.AddLevels(day.LVNLevels)

		dayRes := DayResult{Date: day.Date, LVNLevels: added}

		for _, bar := range day.Bars {
			act := trader.ProcessBar(bar)
			r.applyAction(act, bar, &open, &dayRes)
			c := bar.Close
			lastClose = &c
		}

		r.Log.Info().
			Str("date", day.Date).
			Int("trades", dayRes.Trades).
			Float64("net_pnl", dayRes.NetPnL).
			Msg("day replayed")

		if r.Journal != nil {
			if err := r.recordDay(day, dayRes); err != nil {
				return Result{}, fmt.Errorf("record day %s: %w", day.Date, err)
			}
		}
		res.Days = append(res.Days, dayRes)
	}

	// Flatten anything still open so the summary counts every trade.
	trader.ResetForNewDay(lastClose)

	res.Summary = trader.Summary()
	return res, nil
}

// recordDay writes the day's precomputed signals and its summary to
// the journal.
func (r *Runner) recordDay(day cache.DayRecord, dayRes DayResult) error {
	for _, s := range day.Signals {
		err := r.Journal.RecordSignal(journal.SignalRecord{
			SignalID:   id.New(),
			Time:       s.Time,
			Symbol:     r.Config.Symbol,
			Direction:  s.Direction,
			Price:      s.Price,
			LevelPrice: s.LevelPrice,
			Delta:      s.Delta,
			ImpulseID:  s.ImpulseID,
		})
		if err != nil {
			return err
		}
	}
	return r.Journal.RecordDailySummary(journal.DailySummary{
		Date:   day.Date,
		Trades: dayRes.Trades,
		Wins:   dayRes.Wins,
		Losses: dayRes.Losses,
		NetPnL: dayRes.NetPnL,
	})
}

func (r *Runner) applyAction(act signal.Action, bar market.Bar, open **openEntry, day *DayResult) {
	switch a := act.(type) {
	case signal.Enter:
		*open = &openEntry{
			direction: a.Direction,
			price:     a.Price,
			stop:      a.Stop,
			lvnLevel:  a.Level,
			bar:       bar,
		}
	case signal.Exit:
		r.recordExit(a, bar, open, day)
	case signal.FlattenAll:
		if *open != nil {
			exit := signal.Exit{
				Direction: (*open).direction,
				Price:     bar.Close,
				PnLPoints: flatPnL(**open, bar.Close),
				Reason:    a.Reason,
			}
			r.recordExit(exit, bar, open, day)
		}
	}
}

func (r *Runner) recordExit(a signal.Exit, bar market.Bar, open **openEntry, day *DayResult) {
	day.Trades++
	switch {
	case a.PnLPoints > 0.5:
		day.Wins++
	case a.PnLPoints < -0.5:
		day.Losses++
	}
	dollars := a.PnLPoints*r.Config.PointValue*float64(r.Config.Contracts) -
		r.Config.Commission*float64(r.Config.Contracts)
	day.NetPnL += a.PnLPoints

	if r.Journal != nil && *open != nil {
		rec := journal.TradeRecord{
			TradeID:    id.New(),
			Symbol:     r.Config.Symbol,
			Direction:  a.Direction.String(),
			Quantity:   r.Config.Contracts,
			EntryPrice: (*open).price,
			ExitPrice:  a.Price,
			EntryTime:  (*open).bar.Time,
			ExitTime:   bar.Time,
			PnLPoints:  a.PnLPoints,
			PnLDollars: dollars,
			LVNLevel:   (*open).lvnLevel,
			ExitType:   a.Reason,
		}
		if err := r.Journal.RecordTrade(rec); err != nil {
			r.Log.Warn().Err(err).Str("trade_id", rec.TradeID).Msg("journal write failed")
		}
	}
	*open = nil
}

func flatPnL(e openEntry, exitPrice float64) float64 {
	pnl := exitPrice - e.price
	if e.direction == signal.Short {
		pnl = e.price - exitPrice
	}
	return pnl
}

// FormatSummary renders a replay summary as the multi-line report the
// CLI prints.
func FormatSummary(s signal.TradingSummary) string {
	pf := fmt.Sprintf("%.2f", s.ProfitFactor)
	if math.IsInf(s.ProfitFactor, 1) {
		pf = "inf"
	}
	return fmt.Sprintf(`Trades:        %d (%d W / %d L / %d BE)
Win rate:      %.1f%%
Profit factor: %s
Gross P&L:     %.2f pts
Net P&L:       %.2f pts
Avg win:       %.2f pts
Avg loss:      %.2f pts
Max drawdown:  $%.2f
Final balance: $%.2f
Days stopped:  %d
Sharpe:        %.2f`,
		s.TotalTrades, s.Wins, s.Losses, s.Breakevens,
		s.WinRate, pf,
		s.GrossPnL, s.NetPnL,
		s.AvgWin, s.AvgLoss,
		s.MaxDrawdown, s.FinalBalance,
		s.DaysStoppedEarly, s.SharpeRatio)
}
