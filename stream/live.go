// stream/live.go
package stream

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quicktime/lvntrader/cache"
	"github.com/quicktime/lvntrader/exec"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/metrics"
	"github.com/quicktime/lvntrader/signal"
)

const (
	tradeBuffer     = 4096
	statusEveryBars = 300
)

// Loop wires the feed, filter, bar aggregator, trader, and outputs
// together for a live session. A non-nil Exec mirrors every trading
// decision into the execution engine as bracket orders; a nil Exec runs
// the loop log-and-broadcast only.
type Loop struct {
	Source   TradeSource
	Trader   *signal.Trader
	Filter   *market.FilterConfig
	Hub      *Hub
	TradeLog *TradeLogger
	Store    *cache.Store
	Exec     *exec.Engine
	Log      zerolog.Logger

	agg       *market.BarAggregator
	barCount  int
	bracketID string
}

// Run consumes the feed until ctx is cancelled. Daily levels come from
// the most recent cached session when a store is configured.
func (l *Loop) Run(ctx context.Context) error {
	if l.Source == nil || l.Trader == nil {
		return fmt.Errorf("loop needs a source and a trader")
	}
	l.agg = market.NewBarAggregator()

	if l.Store != nil {
		day, ok, err := l.Store.LoadLatest()
		if err != nil {
			return fmt.Errorf("load cached levels: %w", err)
		}
		if ok {
			l.Trader.SetDailyLevels(day.DailyLevels)
			added := l.Trader.AddLevels(day.LVNLevels)
			l.Log.Info().
				Str("date", day.Date).
				Int("lvn_levels", added).
				Msg("loaded levels from cache")
		} else {
			l.Log.Warn().Msg("no cached sessions, trading without daily levels")
		}
	}

	trades := make(chan market.Trade, tradeBuffer)
	errc := make(chan error, 1)
	go func() { errc <- l.Source.Run(ctx, trades) }()

	for {
		select {
		case <-ctx.Done():
			l.flush(ctx)
			return ctx.Err()
		case err := <-errc:
			l.drain(ctx, trades)
			l.flush(ctx)
			return err
		case tr := <-trades:
			l.processTrade(ctx, tr)
		}
	}
}

func (l *Loop) processTrade(ctx context.Context, tr market.Trade) {
	metrics.TradesIngested.Inc()
	if l.Filter != nil && !l.Filter.Accept(tr) {
		metrics.TradesFiltered.Inc()
		return
	}
	l.Trader.ProcessTrade(tr)
	if bar := l.agg.ProcessTrade(tr); bar != nil {
		l.handleBar(ctx, *bar)
		l.barCount++
		if l.barCount%statusEveryBars == 0 {
			l.Log.Info().Msg(l.Trader.Status())
		}
	}
}

// drain consumes trades still queued when the source exits so none are
// silently lost.
func (l *Loop) drain(ctx context.Context, trades <-chan market.Trade) {
	for {
		select {
		case tr := <-trades:
			l.processTrade(ctx, tr)
		default:
			return
		}
	}
}

// flush closes out the partial bar at shutdown.
func (l *Loop) flush(ctx context.Context) {
	if bar := l.agg.Flush(); bar != nil {
		l.handleBar(ctx, *bar)
	}
}

func (l *Loop) handleBar(ctx context.Context, bar market.Bar) {
	metrics.BarsBuilt.Inc()

	act := l.Trader.ProcessBar(bar)
	metrics.Phase.Set(float64(l.Trader.Phase()))
	metrics.TrackedLevels.Set(float64(l.Trader.LevelCount()))
	l.execAction(ctx, act, bar)

	switch a := act.(type) {
	case nil:
	case signal.SignalPending:
		// Entry happens on the next bar's open; nothing to publish yet.
		l.Log.Info().Msg("signal pending")
	case signal.Enter:
		metrics.SignalsFired.WithLabelValues(a.Direction.String()).Inc()
		l.Log.Info().
			Str("direction", a.Direction.String()).
			Float64("price", a.Price).
			Float64("stop", a.Stop).
			Float64("target", a.Target).
			Msg("entry")
		l.tradeLogEntry(func(t *TradeLogger) error {
			return t.Entry(bar.Time, a.Direction.String(), a.Price, a.Stop, a.Target)
		})
		l.publish(Message{
			Type: "entry", Time: bar.Time,
			Direction: a.Direction.String(),
			Price:     a.Price, Stop: a.Stop, Target: a.Target,
		})
	case signal.Exit:
		l.Log.Info().
			Str("direction", a.Direction.String()).
			Float64("price", a.Price).
			Float64("pnl_points", a.PnLPoints).
			Str("reason", a.Reason).
			Msg("exit")
		metrics.TradesClosed.WithLabelValues(a.Reason).Inc()
		l.tradeLogEntry(func(t *TradeLogger) error {
			return t.Exit(bar.Time, a.Direction.String(), a.Price, a.PnLPoints, a.Reason)
		})
		l.publish(Message{
			Type: "exit", Time: bar.Time,
			Direction: a.Direction.String(),
			Price:     a.Price, PnLPoints: a.PnLPoints, Reason: a.Reason,
		})
	case signal.UpdateStop:
		l.tradeLogEntry(func(t *TradeLogger) error {
			return t.StopUpdate(bar.Time, a.NewStop)
		})
		l.publish(Message{Type: "stop_update", Time: bar.Time, Stop: a.NewStop})
	case signal.FlattenAll:
		l.Log.Warn().Str("reason", a.Reason).Msg("flatten all")
		l.tradeLogEntry(func(t *TradeLogger) error {
			return t.Flatten(bar.Time, a.Reason)
		})
		l.publish(Message{Type: "flatten", Time: bar.Time, Reason: a.Reason})
	}
}

// execAction mirrors a trading decision into the execution engine. The
// engine applies its own risk gates, so a rejected entry leaves the loop
// without a bracket to manage.
func (l *Loop) execAction(ctx context.Context, act signal.Action, bar market.Bar) {
	if l.Exec == nil {
		return
	}
	switch a := act.(type) {
	case signal.Enter:
		side := exec.Buy
		if a.Direction == signal.Short {
			side = exec.Sell
		}
		bracketID, err := l.Exec.ExecuteSignal(ctx, exec.Signal{
			Side:     side,
			LVNLevel: a.Level,
			Price:    a.Price,
		}, a.Contracts)
		if err != nil {
			l.Log.Warn().Err(err).Msg("entry rejected by execution engine")
			return
		}
		l.bracketID = bracketID
	case signal.UpdateStop:
		if err := l.Exec.UpdateTrailingStops(ctx, bar.Close); err != nil {
			l.Log.Warn().Err(err).Msg("trailing stop push failed")
		}
	case signal.Exit:
		if l.bracketID != "" {
			l.Exec.ProcessExitFill(ctx, l.bracketID, a.Price, a.Reason)
			l.bracketID = ""
		}
	case signal.FlattenAll:
		if err := l.Exec.FlattenAll(ctx, a.Reason); err != nil {
			l.Log.Warn().Err(err).Msg("flatten failed")
		}
		l.bracketID = ""
	}
}

func (l *Loop) publish(msg Message) {
	if l.Hub != nil {
		l.Hub.Broadcast(msg)
	}
}

func (l *Loop) logErr(err error) {
	if err != nil {
		l.Log.Warn().Err(err).Msg("trade log write failed")
	}
}

// A nil TradeLog is allowed so tests and dry runs can skip the file.
func (l *Loop) tradeLogEntry(fn func(*TradeLogger) error) {
	if l.TradeLog == nil {
		return
	}
	l.logErr(fn(l.TradeLog))
}
