package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicktime/lvntrader/levels"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/profile"
)

func testTracker() *RetestTracker {
	cfg := DefaultRetestConfig()
	cfg.EndHour = 16
	return NewRetestTracker(cfg, DefaultMarketStateConfig(), levels.SessionClock{UTCOffsetHours: -5})
}

func testLevel(price float64, dir market.Direction, impulseID string) profile.Level {
	return profile.Level{
		ImpulseID:   impulseID,
		Price:       price,
		VolumeRatio: 0.10,
		Direction:   dir,
		Symbol:      "NQ",
	}
}

// rthBar builds a bar inside regular hours (15:00 UTC is 10:00 ET).
func rthBar(sec int, close float64, delta int64) market.Bar {
	t0 := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	return market.Bar{
		Time:   t0.Add(time.Duration(sec) * time.Second),
		Open:   close,
		High:   close + 0.5,
		Low:    close - 0.5,
		Close:  close,
		Volume: 100,
		Delta:  delta,
		Symbol: "NQ",
	}
}

func TestAddLevelsFiltersQuality(t *testing.T) {
	t.Parallel()
	tr := testTracker()

	thin := testLevel(21500, market.Up, "a")
	thick := testLevel(21510, market.Up, "a")
	thick.VolumeRatio = 0.30

	assert.Equal(t, 1, tr.AddLevels([]profile.Level{thin, thick}))
	assert.Equal(t, 1, tr.LevelCount())

	// Same price collapses to the same key.
	assert.Equal(t, 0, tr.AddLevels([]profile.Level{thin}))
}

func TestClearImpulse(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	tr.AddLevels([]profile.Level{
		testLevel(21500, market.Up, "a"),
		testLevel(21490, market.Up, "a"),
		testLevel(21400, market.Down, "b"),
	})
	require.Equal(t, 3, tr.LevelCount())

	assert.Equal(t, 2, tr.ClearImpulse("a"))
	assert.Equal(t, 1, tr.LevelCount())
}

// driveRetest walks price through touch, pullback, and retest of a level at
// 21500 and returns the signal from the final approach bar.
func driveRetest(t *testing.T, tr *RetestTracker, finalDelta int64) *Signal {
	t.Helper()
	sec := 0
	feed := func(close float64, delta int64) *Signal {
		sig := tr.ProcessBar(rthBar(sec, close, delta))
		sec++
		return sig
	}

	// Climb toward the level. This primes the market-state buffer and the
	// steady one-sided delta keeps the window imbalanced.
	price := 21440.5
	for price < 21499.5 {
		require.Nil(t, feed(price, 50))
		price++
	}
	// Touch, then pull away far enough to arm.
	require.Nil(t, feed(21499.5, 50))
	for price = 21501.5; price <= 21515.5; price += 2 {
		require.Nil(t, feed(price, 50))
	}
	// Return to the level. The arrival bar flips the state to Retesting
	// and is itself eligible to fire.
	for price = 21513.5; price > 21502.5; price -= 2 {
		require.Nil(t, feed(price, 50))
	}
	return feed(21500.5, finalDelta)
}

func TestRetestSignalFires(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	tr.AddLevels([]profile.Level{testLevel(21500, market.Up, "imp-1")})

	sig := driveRetest(t, tr, 150)
	require.NotNil(t, sig)
	assert.Equal(t, Long, sig.Direction)
	assert.Equal(t, 21500.0, sig.LevelPrice)
	assert.Equal(t, "imp-1", sig.ImpulseID)
	assert.Equal(t, int64(150), sig.Delta)
}

func TestRetestRejectsOpposingDelta(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	tr.AddLevels([]profile.Level{testLevel(21500, market.Up, "imp-1")})

	// Strong selling into an Up level never fires a long.
	assert.Nil(t, driveRetest(t, tr, -150))
}

func TestRetestRejectsSmallDelta(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	tr.AddLevels([]profile.Level{testLevel(21500, market.Up, "imp-1")})

	assert.Nil(t, driveRetest(t, tr, 50))
}

func TestRetestOutsideTradingHours(t *testing.T) {
	t.Parallel()
	cfg := DefaultRetestConfig()
	cfg.EndHour = 16
	// 02:00 UTC is 21:00 ET, well outside the session.
	tr := NewRetestTracker(cfg, DefaultMarketStateConfig(), levels.SessionClock{UTCOffsetHours: -5 - 13})
	tr.AddLevels([]profile.Level{testLevel(21500, market.Up, "imp-1")})

	assert.Nil(t, driveRetest(t, tr, 150))
}

func TestRetestGlobalCooldown(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	tr.AddLevels([]profile.Level{
		testLevel(21500, market.Up, "imp-1"),
		testLevel(21516, market.Up, "imp-2"),
	})

	require.NotNil(t, driveRetest(t, tr, 150))

	// A second level retests right away but the global cooldown holds.
	sec := 1000
	feed := func(close float64, delta int64) *Signal {
		sig := tr.ProcessBar(rthBar(sec, close, delta))
		sec++
		return sig
	}
	for p := 21502.5; p < 21516; p += 2 {
		assert.Nil(t, feed(p, 50))
	}
	assert.Nil(t, feed(21516.5, 150))
}
