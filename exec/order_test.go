package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongBracketExitOrders(t *testing.T) {
	t.Parallel()
	b := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	b.SetExitOrders(21505.0, 30.0, 1.5)

	assert.Equal(t, 21505.0, b.EntryPrice)
	require.NotNil(t, b.StopLoss)
	require.NotNil(t, b.TakeProfit)
	// Stop anchors to the LVN level, target to the fill.
	assert.Equal(t, 21498.5, b.StopLoss.StopPrice)
	assert.Equal(t, 21535.0, b.TakeProfit.LimitPrice)
	assert.Equal(t, Sell, b.StopLoss.Side)
	assert.Equal(t, PositionOpen, b.State)
}

func TestShortBracketExitOrders(t *testing.T) {
	t.Parallel()
	b := NewShortBracket("NQ.c.0", "CME", 1, 21500.0)
	b.SetExitOrders(21495.0, 30.0, 1.5)

	assert.Equal(t, 21501.5, b.StopLoss.StopPrice)
	assert.Equal(t, 21465.0, b.TakeProfit.LimitPrice)
	assert.Equal(t, Buy, b.StopLoss.Side)
}

func TestTrailingStopLong(t *testing.T) {
	t.Parallel()
	b := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	b.SetExitOrders(21505.0, 30.0, 1.5)

	stop, moved := b.UpdateTrailingStop(21515.0, 6.0)
	require.True(t, moved)
	assert.Equal(t, 21509.0, stop)

	stop, moved = b.UpdateTrailingStop(21520.0, 6.0)
	require.True(t, moved)
	assert.Equal(t, 21514.0, stop)

	// Pullback never loosens the stop.
	_, moved = b.UpdateTrailingStop(21518.0, 6.0)
	assert.False(t, moved)
	assert.Equal(t, 21514.0, b.StopLoss.StopPrice)
}

func TestTrailingStopShort(t *testing.T) {
	t.Parallel()
	b := NewShortBracket("NQ.c.0", "CME", 1, 21500.0)
	b.SetExitOrders(21495.0, 30.0, 1.5)

	stop, moved := b.UpdateTrailingStop(21485.0, 6.0)
	require.True(t, moved)
	assert.Equal(t, 21491.0, stop)

	_, moved = b.UpdateTrailingStop(21488.0, 6.0)
	assert.False(t, moved)
}

func TestUnrealizedPnL(t *testing.T) {
	t.Parallel()
	b := NewLongBracket("NQ.c.0", "CME", 2, 21500.0)

	_, ok := b.UnrealizedPnL(21515.0)
	assert.False(t, ok)

	b.SetExitOrders(21505.0, 30.0, 1.5)

	pnl, ok := b.UnrealizedPnL(21515.0)
	require.True(t, ok)
	assert.Equal(t, 20.0, pnl)

	pnl, _ = b.UnrealizedPnL(21500.0)
	assert.Equal(t, -10.0, pnl)
}

func TestCompleteRealizesPnL(t *testing.T) {
	t.Parallel()
	b := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	b.SetExitOrders(21505.0, 30.0, 1.5)
	b.CompleteAt(21535.0)

	assert.Equal(t, Complete, b.State)
	assert.Equal(t, 30.0, b.RealizedPnL)
	assert.True(t, b.Terminal())
	require.NotNil(t, b.ClosedAt)
}

func TestOrderRecordFill(t *testing.T) {
	t.Parallel()
	o := MarketOrder("NQ.c.0", "CME", Buy, 2)

	o.RecordFill(1, 21500.0)
	assert.Equal(t, PartiallyFilled, o.State)
	assert.Equal(t, 21500.0, o.AvgFillPrice)

	o.RecordFill(1, 21502.0)
	assert.Equal(t, Filled, o.State)
	assert.Equal(t, 21501.0, o.AvgFillPrice)
	assert.True(t, o.Terminal())
}
