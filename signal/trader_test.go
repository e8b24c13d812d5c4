package signal

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicktime/lvntrader/market"
)

func testTrader(t *testing.T, cfg TraderConfig) *Trader {
	t.Helper()
	return NewTrader(cfg, zerolog.Nop())
}

// tradeBar builds a bar at 10:00 ET with explicit OHLC.
func tradeBar(sec int, open, high, low, close float64) market.Bar {
	t0 := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	return market.Bar{
		Time:   t0.Add(time.Duration(sec) * time.Second),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 100,
		Symbol: "NQ",
	}
}

func TestTraderEntersOnNextBarOpen(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}

	act := tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502))
	require.IsType(t, Enter{}, act)
	enter := act.(Enter)
	assert.Equal(t, Long, enter.Direction)
	assert.Equal(t, 21502.0, enter.Price)
	assert.Equal(t, 21498.0, enter.Stop)
	assert.Equal(t, 21532.0, enter.Target)
	assert.Equal(t, 1, enter.Contracts)
	assert.False(t, tr.IsFlat())

	// While the position rides, the trailing stop is reported every bar.
	act = tr.ProcessBar(tradeBar(1, 21502, 21504, 21501, 21503))
	require.IsType(t, UpdateStop{}, act)
	assert.Equal(t, 21498.0, act.(UpdateStop).NewStop)
}

func TestTraderSkipsPendingOutsideHours(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}

	// 20:00 UTC is 15:00 ET, past the 11:00 session end.
	bar := tradeBar(0, 21502, 21503, 21501, 21502)
	bar.Time = time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)
	assert.Nil(t, tr.ProcessBar(bar))
	assert.True(t, tr.IsFlat())
}

func TestTraderStopExit(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))

	act := tr.ProcessBar(tradeBar(1, 21501, 21501, 21497, 21498))
	require.IsType(t, Exit{}, act)
	exit := act.(Exit)
	assert.Equal(t, "STOP", exit.Reason)
	assert.Equal(t, 21498.0, exit.Price)
	// Four points against us plus a half point of slippage each way.
	assert.InDelta(t, -5.0, exit.PnLPoints, 1e-9)
	assert.True(t, tr.IsFlat())
}

func TestTraderTargetExit(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))

	// The trail ratchets from this bar's high to 21527 before exits are
	// checked, so the low has to hold above it for the target to fill.
	act := tr.ProcessBar(tradeBar(1, 21528, 21533, 21528, 21531))
	require.IsType(t, Exit{}, act)
	exit := act.(Exit)
	assert.Equal(t, "TARGET", exit.Reason)
	assert.Equal(t, 21532.0, exit.Price)
	assert.InDelta(t, 29.0, exit.PnLPoints, 1e-9)
}

func TestTraderShortExits(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())
	tr.pending = &Signal{Direction: Short, Price: 21499, LevelPrice: 21500}

	act := tr.ProcessBar(tradeBar(0, 21498, 21499, 21497, 21498))
	require.IsType(t, Enter{}, act)
	enter := act.(Enter)
	assert.Equal(t, Short, enter.Direction)
	assert.Equal(t, 21502.0, enter.Stop)
	assert.Equal(t, 21468.0, enter.Target)
	assert.Equal(t, 21500.0, enter.Level)

	act = tr.ProcessBar(tradeBar(1, 21469, 21470, 21467, 21469))
	require.IsType(t, Exit{}, act)
	exit := act.(Exit)
	assert.Equal(t, "TARGET", exit.Reason)
	assert.Equal(t, 21468.0, exit.Price)
	assert.InDelta(t, 29.0, exit.PnLPoints, 1e-9)
}

func TestTraderTimeoutExit(t *testing.T) {
	t.Parallel()
	cfg := DefaultTraderConfig()
	cfg.MaxHoldBars = 2
	tr := testTrader(t, cfg)
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))

	require.IsType(t, UpdateStop{}, tr.ProcessBar(tradeBar(1, 21502, 21504, 21501, 21503)))
	act := tr.ProcessBar(tradeBar(2, 21503, 21505, 21502, 21504))
	require.IsType(t, Exit{}, act)
	assert.Equal(t, "TIMEOUT", act.(Exit).Reason)
	assert.Equal(t, 21504.0, act.(Exit).Price)
}

func TestTraderTrailingStopRatchets(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))

	// Price runs eight points: trail moves to high minus the trailing
	// distance and never backs off.
	act := tr.ProcessBar(tradeBar(1, 21505, 21510, 21505, 21509))
	require.IsType(t, UpdateStop{}, act)
	assert.Equal(t, 21504.0, act.(UpdateStop).NewStop)

	act = tr.ProcessBar(tradeBar(2, 21509, 21509, 21506, 21507))
	require.IsType(t, UpdateStop{}, act)
	assert.Equal(t, 21504.0, act.(UpdateStop).NewStop)

	// A dip through the trail exits at the trail.
	act = tr.ProcessBar(tradeBar(3, 21506, 21506, 21503, 21504))
	require.IsType(t, Exit{}, act)
	assert.Equal(t, "STOP", act.(Exit).Reason)
	assert.Equal(t, 21504.0, act.(Exit).Price)
}

func TestTraderDailyLossLimitFlattens(t *testing.T) {
	t.Parallel()
	cfg := DefaultTraderConfig()
	cfg.DailyLossLimit = 3.0
	tr := testTrader(t, cfg)
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))
	require.IsType(t, Exit{}, tr.ProcessBar(tradeBar(1, 21501, 21501, 21497, 21498)))

	act := tr.ProcessBar(tradeBar(2, 21498, 21499, 21497, 21498))
	require.IsType(t, FlattenAll{}, act)
	assert.Equal(t, "Daily loss limit", act.(FlattenAll).Reason)
	assert.True(t, tr.DailyStopped())

	// Halted for the rest of the day.
	assert.Nil(t, tr.ProcessBar(tradeBar(3, 21498, 21499, 21497, 21498)))
}

func TestTraderMaxDailyLossesStops(t *testing.T) {
	t.Parallel()
	cfg := DefaultTraderConfig()
	cfg.MaxDailyLosses = 1
	tr := testTrader(t, cfg)
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))
	require.IsType(t, Exit{}, tr.ProcessBar(tradeBar(1, 21501, 21501, 21497, 21498)))

	assert.True(t, tr.DailyStopped())
	assert.Nil(t, tr.ProcessBar(tradeBar(2, 21498, 21499, 21497, 21498)))
}

func TestTraderSummary(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())

	// One winner to the target.
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))
	require.IsType(t, Exit{}, tr.ProcessBar(tradeBar(1, 21528, 21533, 21528, 21531)))

	// One loser to the stop.
	tr.pending = &Signal{Direction: Long, Price: 21509, LevelPrice: 21508}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(2, 21510, 21511, 21509, 21510)))
	require.IsType(t, Exit{}, tr.ProcessBar(tradeBar(3, 21509, 21509, 21505, 21506)))

	s := tr.Summary()
	assert.Equal(t, 2, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.InDelta(t, 29.0, s.AvgWin, 1e-9)
	assert.InDelta(t, -5.0, s.AvgLoss, 1e-9)
	assert.InDelta(t, 24.0, s.NetPnL, 1e-9)
	assert.InDelta(t, 2.0, s.TotalSlippage, 1e-9)
	assert.InDelta(t, 26.0, s.GrossPnL, 1e-9)
	assert.InDelta(t, 8.0, s.TotalCommission, 1e-9)
	assert.InDelta(t, 5.8, s.ProfitFactor, 1e-9)
	// 30000 + (29*20 - 4) - (5*20 + 4)
	assert.InDelta(t, 30472.0, s.FinalBalance, 1e-9)
	assert.InDelta(t, 104.0, s.MaxDrawdown, 1e-9)
}

func TestTraderResetForNewDay(t *testing.T) {
	t.Parallel()
	tr := testTrader(t, DefaultTraderConfig())
	tr.pending = &Signal{Direction: Long, Price: 21501, LevelPrice: 21500}
	require.IsType(t, Enter{}, tr.ProcessBar(tradeBar(0, 21502, 21503, 21501, 21502)))

	last := 21510.0
	tr.ResetForNewDay(&last)
	assert.True(t, tr.IsFlat())

	s := tr.Summary()
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	// 30000 + 8 pts * $20, no slippage or commission modeled at EOD close
	assert.InDelta(t, 30160.0, s.FinalBalance, 1e-9)
}
