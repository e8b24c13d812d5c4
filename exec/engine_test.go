package exec

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicktime/lvntrader/journal"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *SimBroker) {
	t.Helper()
	broker := NewSimBroker()
	return NewEngineWithBalance(cfg, broker, 50000.0, zerolog.Nop()), broker
}

func testSignal() Signal {
	return Signal{Side: Buy, LVNLevel: 21500.0, Price: 21505.0, Delta: 100}
}

func TestExecuteSignalOpensBracket(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.TakeProfit = 30.0
	cfg.TrailingStop = 6.0
	cfg.StopBuffer = 1.5
	engine, broker := newTestEngine(t, cfg)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.PositionManager().NetPosition())

	b := engine.PositionManager().Bracket(bracketID)
	require.NotNil(t, b)
	assert.Equal(t, 21505.0, b.EntryPrice)
	assert.Equal(t, 21498.5, b.StopLoss.StopPrice)
	assert.Equal(t, 21535.0, b.TakeProfit.LimitPrice)

	// Entry market order plus the stop and target legs.
	orders := broker.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, Market, orders[0].Type)
	assert.Equal(t, Stop, orders[1].Type)
	assert.Equal(t, Limit, orders[2].Type)
}

func TestExecuteSignalRespectsPositionCap(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t, DefaultConfig())

	_, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)

	_, err = engine.ExecuteSignal(context.Background(), testSignal(), 1)
	assert.ErrorIs(t, err, ErrMaxPosition)
}

func TestExecuteSignalRejectsOppositeDirection(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxPositionSize = 2
	engine, _ := newTestEngine(t, cfg)

	_, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)

	short := testSignal()
	short.Side = Sell
	_, err = engine.ExecuteSignal(context.Background(), short, 1)
	assert.ErrorIs(t, err, ErrOppositePosition)
}

func TestDailyLossLimitBlocksNewSignals(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.DailyLossLimit = 10.0
	engine, _ := newTestEngine(t, cfg)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)

	// A 15 point loss blows through the 10 point limit.
	engine.ProcessExitFill(context.Background(), bracketID, 21490.0, "STOP")

	assert.True(t, engine.IsDailyLimitHit())
	assert.True(t, engine.IsTradingStopped())

	_, err = engine.ExecuteSignal(context.Background(), testSignal(), 1)
	assert.ErrorIs(t, err, ErrDailyLimit)
}

func TestDailyLimitDoesNotFlattenByDefault(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.DailyLossLimit = 10.0
	engine, broker := newTestEngine(t, cfg)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)
	before := len(broker.Orders())

	engine.ProcessExitFill(context.Background(), bracketID, 21490.0, "STOP")

	require.True(t, engine.IsDailyLimitHit())
	// No cancel sweep and no extra market order: existing brackets keep
	// working their stops.
	assert.Zero(t, broker.CancelCount())
	assert.Len(t, broker.Orders(), before)
}

func TestDailyLimitFlattensWhenConfigured(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.DailyLossLimit = 10.0
	cfg.FlattenOnLimit = true
	engine, broker := newTestEngine(t, cfg)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)

	engine.ProcessExitFill(context.Background(), bracketID, 21490.0, "STOP")

	require.True(t, engine.IsDailyLimitHit())
	assert.Equal(t, 1, broker.CancelCount())
}

func TestMaxDailyLosses(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxDailyLosses = 3
	cfg.DailyLossLimit = 1000.0
	engine, _ := newTestEngine(t, cfg)

	for i := 0; i < 3; i++ {
		bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
		require.NoError(t, err)
		// Two point loss each time.
		engine.ProcessExitFill(context.Background(), bracketID, 21503.0, "STOP")

		if i < 2 {
			assert.False(t, engine.IsMaxLossesHit(), "should not trip after %d losses", i+1)
		}
	}

	assert.True(t, engine.IsMaxLossesHit())
	assert.True(t, engine.IsTradingStopped())

	_, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	assert.ErrorIs(t, err, ErrMaxLosses)
}

func TestCheckExitTriggers(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.TakeProfit = 30.0
	cfg.StopBuffer = 1.5
	engine, _ := newTestEngine(t, cfg)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)

	assert.Empty(t, engine.CheckExitTriggers(21510.0))

	exits := engine.CheckExitTriggers(21498.0)
	require.Len(t, exits, 1)
	assert.Equal(t, bracketID, exits[0].BracketID)
	assert.Equal(t, 21498.5, exits[0].Price)
	assert.Equal(t, "STOP", exits[0].ExitType)

	exits = engine.CheckExitTriggers(21536.0)
	require.Len(t, exits, 1)
	assert.Equal(t, "TARGET", exits[0].ExitType)
}

func TestTrailingStopsPushToBroker(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.TakeProfit = 30.0
	cfg.TrailingStop = 6.0
	cfg.StopBuffer = 1.5
	engine, broker := newTestEngine(t, cfg)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)

	require.NoError(t, engine.UpdateTrailingStops(context.Background(), 21515.0))

	b := engine.PositionManager().Bracket(bracketID)
	assert.Equal(t, 21509.0, b.StopLoss.StopPrice)

	// The broker's copy of the stop order moved too.
	for _, o := range broker.Orders() {
		if o.Type == Stop {
			assert.Equal(t, 21509.0, o.StopPrice)
		}
	}

	ev := <-engine.Events()
	for ev.Kind != TrailingStopUpdated {
		ev = <-engine.Events()
	}
	assert.Equal(t, 21509.0, ev.NewStop)
}

func TestResetDailyClearsLimits(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.DailyLossLimit = 10.0
	engine, _ := newTestEngine(t, cfg)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)
	engine.ProcessExitFill(context.Background(), bracketID, 21490.0, "STOP")
	require.True(t, engine.IsDailyLimitHit())

	engine.ResetDaily()
	assert.False(t, engine.IsDailyLimitHit())
	assert.False(t, engine.IsTradingStopped())
	assert.Zero(t, engine.DailyPnL())

	_, err = engine.ExecuteSignal(context.Background(), testSignal(), 1)
	assert.NoError(t, err)
}

type recordingJournal struct {
	trades []journal.TradeRecord
}

func (r *recordingJournal) RecordTrade(t journal.TradeRecord) error {
	r.trades = append(r.trades, t)
	return nil
}

func (r *recordingJournal) RecordSignal(journal.SignalRecord) error { return nil }

func (r *recordingJournal) RecordDailySummary(journal.DailySummary) error { return nil }

func (r *recordingJournal) Close() error { return nil }

func TestExitFillWritesJournal(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t, DefaultConfig())

	j := &recordingJournal{}
	engine.SetJournal(j)

	bracketID, err := engine.ExecuteSignal(context.Background(), testSignal(), 1)
	require.NoError(t, err)
	engine.ProcessExitFill(context.Background(), bracketID, 21535.0, "TARGET")

	require.Len(t, j.trades, 1)
	rec := j.trades[0]
	assert.Equal(t, bracketID, rec.TradeID)
	assert.Equal(t, "LONG", rec.Direction)
	assert.Equal(t, 21505.0, rec.EntryPrice)
	assert.Equal(t, 21535.0, rec.ExitPrice)
	assert.Equal(t, 30.0, rec.PnLPoints)
	// 30 pts * $20 per point
	assert.Equal(t, 600.0, rec.PnLDollars)
	assert.Equal(t, "TARGET", rec.ExitType)
}
