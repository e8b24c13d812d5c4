package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionManagerRoundTrip(t *testing.T) {
	t.Parallel()
	pm := NewPositionManager("NQ.c.0", 50000.0, 20.0)
	assert.True(t, pm.IsFlat())

	b := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	pm.AddBracket(b)
	pm.RecordEntryFill(b.ID, 21505.0, 1, Buy)

	assert.Equal(t, 1, pm.NetPosition())
	avg, ok := pm.AvgEntryPrice()
	require.True(t, ok)
	assert.Equal(t, 21505.0, avg)

	rec, ok := pm.RecordExitFill(b.ID, 21515.0, "TARGET")
	require.True(t, ok)
	assert.Equal(t, 10.0, rec.PnLPoints)
	assert.Equal(t, "TARGET", rec.ExitType)

	assert.True(t, pm.IsFlat())
	assert.Equal(t, 50200.0, pm.RunningBalance())
	assert.Equal(t, 10.0, pm.DailyPnLPoints())
	assert.Equal(t, 200.0, pm.DailyPnLDollars())
	assert.Equal(t, 1, pm.DailySummary().Wins)
	assert.Len(t, pm.TradeHistory(), 1)
}

func TestPositionManagerShortLoss(t *testing.T) {
	t.Parallel()
	pm := NewPositionManager("NQ.c.0", 50000.0, 20.0)

	b := NewShortBracket("NQ.c.0", "CME", 2, 21500.0)
	pm.AddBracket(b)
	pm.RecordEntryFill(b.ID, 21495.0, 2, Sell)
	assert.Equal(t, -2, pm.NetPosition())

	rec, ok := pm.RecordExitFill(b.ID, 21500.0, "STOP")
	require.True(t, ok)
	// Five points against, two contracts.
	assert.Equal(t, -10.0, rec.PnLPoints)

	assert.Equal(t, 49800.0, pm.RunningBalance())
	assert.Equal(t, 1, pm.DailySummary().Losses)
	assert.Equal(t, -10.0, pm.DailySummary().LargestLoss)
	assert.Equal(t, 200.0, pm.Drawdown())
}

func TestPositionManagerWeightedEntry(t *testing.T) {
	t.Parallel()
	pm := NewPositionManager("NQ.c.0", 50000.0, 20.0)

	b1 := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	b2 := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	pm.AddBracket(b1)
	pm.AddBracket(b2)
	pm.RecordEntryFill(b1.ID, 21500.0, 1, Buy)
	pm.RecordEntryFill(b2.ID, 21510.0, 1, Buy)

	assert.Equal(t, 2, pm.NetPosition())
	avg, _ := pm.AvgEntryPrice()
	assert.Equal(t, 21505.0, avg)
}

func TestPositionManagerUnknownBracket(t *testing.T) {
	t.Parallel()
	pm := NewPositionManager("NQ.c.0", 50000.0, 20.0)
	_, ok := pm.RecordExitFill("nope", 21500.0, "STOP")
	assert.False(t, ok)
}

func TestCleanupCompleted(t *testing.T) {
	t.Parallel()
	pm := NewPositionManager("NQ.c.0", 50000.0, 20.0)

	b := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	pm.AddBracket(b)
	pm.RecordEntryFill(b.ID, 21505.0, 1, Buy)
	pm.RecordExitFill(b.ID, 21510.0, "TARGET")

	require.Len(t, pm.ActiveBrackets(), 1)
	pm.CleanupCompleted()
	assert.Empty(t, pm.ActiveBrackets())
}

func TestResetDailyKeepsBalance(t *testing.T) {
	t.Parallel()
	pm := NewPositionManager("NQ.c.0", 50000.0, 20.0)

	b := NewLongBracket("NQ.c.0", "CME", 1, 21500.0)
	pm.AddBracket(b)
	pm.RecordEntryFill(b.ID, 21505.0, 1, Buy)
	pm.RecordExitFill(b.ID, 21495.0, "STOP")
	require.Equal(t, 49800.0, pm.RunningBalance())

	pm.ResetDaily()
	assert.Zero(t, pm.DailyPnLPoints())
	assert.Zero(t, pm.DailySummary().TradeCount)
	assert.Equal(t, 49800.0, pm.RunningBalance())
	assert.Equal(t, 49800.0, pm.DailySummary().PeakBalance)
}
