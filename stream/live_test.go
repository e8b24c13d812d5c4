package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicktime/lvntrader/exec"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/signal"
)

type scriptedSource struct {
	trades []market.Trade
}

func (s *scriptedSource) Run(ctx context.Context, out chan<- market.Trade) error {
	for _, tr := range s.trades {
		select {
		case out <- tr:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	// Feed drained; hand back a clean shutdown.
	return nil
}

func tradeAt(sec int, price float64, size uint64) market.Trade {
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	return market.Trade{
		Time: base.Add(time.Duration(sec) * time.Second), Price: price,
		Size: size, Side: market.Buy, Symbol: "NQ",
	}
}

func TestWireTradeParsing(t *testing.T) {
	t.Parallel()

	raw := `{"time":"2025-06-02T15:00:00Z","price":21500.25,"size":3,"side":"SELL","symbol":"NQ"}`
	var wt wireTrade
	require.NoError(t, json.Unmarshal([]byte(raw), &wt))

	tr := wt.toTrade()
	assert.Equal(t, 21500.25, tr.Price)
	assert.Equal(t, uint64(3), tr.Size)
	assert.Equal(t, market.Sell, tr.Side)
	assert.Equal(t, "NQ", tr.Symbol)
}

func TestLoopRequiresSourceAndTrader(t *testing.T) {
	t.Parallel()

	l := &Loop{Log: zerolog.Nop()}
	assert.Error(t, l.Run(context.Background()))
}

func TestLoopDrainsScriptedFeed(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{trades: []market.Trade{
		tradeAt(0, 21500, 2),
		tradeAt(0, 21500.5, 1),
		tradeAt(1, 21500.25, 3),
		tradeAt(2, 21500, 2),
	}}
	trader := signal.NewTrader(signal.DefaultTraderConfig(), zerolog.Nop())
	l := &Loop{
		Source: src,
		Trader: trader,
		Filter: market.NewFilterConfig(0),
		Log:    zerolog.Nop(),
	}

	require.NoError(t, l.Run(context.Background()))
	// Bars 15:00:00 and 15:00:01 complete in the loop, the partial
	// 15:00:02 bar on the shutdown flush. No levels, so no trades.
	assert.True(t, trader.IsFlat())
}

func TestLoopMirrorsActionsToEngine(t *testing.T) {
	t.Parallel()

	cfg := exec.DefaultConfig()
	cfg.TakeProfit = 30.0
	broker := exec.NewSimBroker()
	engine := exec.NewEngine(cfg, broker, zerolog.Nop())

	l := &Loop{Exec: engine, Log: zerolog.Nop()}
	ctx := context.Background()
	bar := market.Bar{
		Time: time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
		Open: 21505, High: 21506, Low: 21504, Close: 21505,
		Volume: 10, Symbol: "NQ",
	}

	l.execAction(ctx, signal.Enter{
		Direction: signal.Long, Price: 21505, Stop: 21498, Target: 21535, Level: 21500, Contracts: 1,
	}, bar)
	require.NotEmpty(t, l.bracketID)
	// Entry market order plus the stop and target legs.
	assert.Len(t, broker.Orders(), 3)
	assert.Equal(t, 1, engine.PositionManager().NetPosition())

	// A rejected entry leaves the tracked bracket alone.
	first := l.bracketID
	l.execAction(ctx, signal.Enter{
		Direction: signal.Long, Price: 21506, Level: 21500, Contracts: 1,
	}, bar)
	assert.Equal(t, first, l.bracketID)

	runBar := bar
	runBar.Close = 21512
	l.execAction(ctx, signal.UpdateStop{NewStop: 21506}, runBar)

	l.execAction(ctx, signal.Exit{
		Direction: signal.Long, Price: 21535, PnLPoints: 30, Reason: "TARGET",
	}, runBar)
	assert.Empty(t, l.bracketID)
	assert.True(t, engine.PositionManager().IsFlat())
	require.Len(t, engine.PositionManager().TradeHistory(), 1)
	assert.Equal(t, "TARGET", engine.PositionManager().TradeHistory()[0].ExitType)
}

func TestLoopFilterDropsSmallTrades(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{trades: []market.Trade{
		tradeAt(0, 21500, 1),
		tradeAt(1, 21500, 1),
	}}
	trader := signal.NewTrader(signal.DefaultTraderConfig(), zerolog.Nop())
	l := &Loop{
		Source: src,
		Trader: trader,
		Filter: market.NewFilterConfig(5),
		Log:    zerolog.Nop(),
	}

	require.NoError(t, l.Run(context.Background()))
	assert.True(t, trader.IsFlat())
}
