package signal

import (
	"math"
	"sort"

	"github.com/quicktime/lvntrader/levels"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/profile"
)

// LevelState tracks where a level is in the touch, pullback, retest cycle.
type LevelState int

const (
	Untouched LevelState = iota
	Touched
	Armed
	Retesting
)

func (s LevelState) String() string {
	switch s {
	case Untouched:
		return "UNTOUCHED"
	case Touched:
		return "TOUCHED"
	case Armed:
		return "ARMED"
	case Retesting:
		return "RETESTING"
	}
	return "UNKNOWN"
}

// RetestConfig tunes signal generation on tracked LVN levels.
type RetestConfig struct {
	LevelTolerance    float64 `yaml:"level_tolerance" json:"level_tolerance"`
	RetestDistance    float64 `yaml:"retest_distance" json:"retest_distance"`
	MinDelta          int64   `yaml:"min_delta" json:"min_delta"`
	MaxBarRange       float64 `yaml:"max_bar_range" json:"max_bar_range"`
	MaxLVNRatio       float64 `yaml:"max_lvn_ratio" json:"max_lvn_ratio"`
	CooldownBars      int     `yaml:"cooldown_bars" json:"cooldown_bars"`
	LevelCooldownBars int     `yaml:"level_cooldown_bars" json:"level_cooldown_bars"`
	StartHour         int     `yaml:"start_hour" json:"start_hour"`
	StartMinute       int     `yaml:"start_minute" json:"start_minute"`
	EndHour           int     `yaml:"end_hour" json:"end_hour"`
	EndMinute         int     `yaml:"end_minute" json:"end_minute"`
}

// DefaultRetestConfig returns the production NQ tuning.
func DefaultRetestConfig() RetestConfig {
	return RetestConfig{
		LevelTolerance:    2.0,
		RetestDistance:    8.0,
		MinDelta:          100,
		MaxBarRange:       1.5,
		MaxLVNRatio:       0.15,
		CooldownBars:      60,
		LevelCooldownBars: 600,
		StartHour:         9,
		StartMinute:       30,
		EndHour:           16,
		EndMinute:         0,
	}
}

// Signal is a retest entry trigger.
type Signal struct {
	Direction   Direction
	Price       float64
	LevelPrice  float64
	ImpulseID   string
	Delta       int64
	VolumeRatio float64
}

type trackedLevel struct {
	price         float64
	impulseID     string
	direction     market.Direction
	volumeRatio   float64
	state         LevelState
	firstTouchBar int
	armedBar      int
	lastTradedBar int
}

// bufferCap bounds the bar history kept for market-state detection.
const bufferCap = 200

// RetestTracker watches price interact with LVN levels and fires a signal
// when an armed level is retested under the right order-flow conditions.
// Level states advance on every bar; the trading-hours and market-state
// gates apply only to signal emission.
type RetestTracker struct {
	cfg     RetestConfig
	msCfg   MarketStateConfig
	clock   levels.SessionClock
	levels  map[int64]*trackedLevel
	buffer  []market.Bar
	barNum  int
	lastBar int
}

// NewRetestTracker builds an empty tracker.
func NewRetestTracker(cfg RetestConfig, msCfg MarketStateConfig, clock levels.SessionClock) *RetestTracker {
	return &RetestTracker{
		cfg:     cfg,
		msCfg:   msCfg,
		clock:   clock,
		levels:  make(map[int64]*trackedLevel),
		lastBar: -1 << 30,
	}
}

// levelKey quantizes a price to tenths so identical levels collapse.
func levelKey(price float64) int64 {
	return int64(math.Round(price * 10))
}

// AddLevels installs new LVN levels, skipping any whose volume ratio is
// above the quality cutoff. Returns how many were accepted.
func (r *RetestTracker) AddLevels(lvns []profile.Level) int {
	added := 0
	for _, l := range lvns {
		if l.VolumeRatio > r.cfg.MaxLVNRatio {
			continue
		}
		key := levelKey(l.Price)
		if _, ok := r.levels[key]; ok {
			continue
		}
		r.levels[key] = &trackedLevel{
			price:         l.Price,
			impulseID:     l.ImpulseID,
			direction:     l.Direction,
			volumeRatio:   l.VolumeRatio,
			state:         Untouched,
			lastTradedBar: -1 << 30,
		}
		added++
	}
	return added
}

// ClearImpulse removes every level that came from the given impulse.
func (r *RetestTracker) ClearImpulse(impulseID string) int {
	removed := 0
	for key, l := range r.levels {
		if l.impulseID == impulseID {
			delete(r.levels, key)
			removed++
		}
	}
	return removed
}

// Clear removes all tracked levels.
func (r *RetestTracker) Clear() {
	r.levels = make(map[int64]*trackedLevel)
}

// LevelCount returns how many levels are being tracked.
func (r *RetestTracker) LevelCount() int { return len(r.levels) }

// ProcessBar advances level states and returns a signal if one fires.
func (r *RetestTracker) ProcessBar(bar market.Bar) *Signal {
	r.barNum++
	r.buffer = append(r.buffer, bar)
	if len(r.buffer) > bufferCap {
		r.buffer = r.buffer[1:]
	}

	r.updateStates(bar.Close)

	if r.barNum-r.lastBar < r.cfg.CooldownBars {
		return nil
	}
	if !r.inTradingHours(bar) {
		return nil
	}
	ms := DetectMarketState(r.buffer, len(r.buffer)-1, r.msCfg)
	if ms.State != Imbalanced {
		return nil
	}
	if absInt64(bar.Delta) < r.cfg.MinDelta {
		return nil
	}
	if bar.Range() > r.cfg.MaxBarRange {
		return nil
	}

	for _, key := range r.sortedKeys() {
		l := r.levels[key]
		if l.state != Retesting {
			continue
		}
		if math.Abs(bar.Close-l.price) > r.cfg.LevelTolerance {
			continue
		}
		if r.barNum-l.lastTradedBar < r.cfg.LevelCooldownBars {
			continue
		}
		dir := Long
		if l.direction == market.Down {
			dir = Short
		}
		if dir == Long && bar.Delta < 0 {
			continue
		}
		if dir == Short && bar.Delta > 0 {
			continue
		}

		r.lastBar = r.barNum
		l.lastTradedBar = r.barNum
		l.state = Touched
		return &Signal{
			Direction:   dir,
			Price:       bar.Close,
			LevelPrice:  l.price,
			ImpulseID:   l.impulseID,
			Delta:       bar.Delta,
			VolumeRatio: l.volumeRatio,
		}
	}
	return nil
}

func (r *RetestTracker) updateStates(price float64) {
	for _, l := range r.levels {
		dist := math.Abs(price - l.price)
		switch l.state {
		case Untouched:
			if dist <= r.cfg.LevelTolerance {
				l.state = Touched
				l.firstTouchBar = r.barNum
			}
		case Touched:
			if dist > r.cfg.RetestDistance {
				l.state = Armed
				l.armedBar = r.barNum
			}
		case Armed:
			if dist <= r.cfg.LevelTolerance {
				l.state = Retesting
			}
		case Retesting:
			if dist > r.cfg.LevelTolerance*2 {
				if dist > r.cfg.RetestDistance {
					l.state = Armed
				} else {
					l.state = Touched
				}
			}
		}
	}
}

func (r *RetestTracker) inTradingHours(bar market.Bar) bool {
	local := r.clock.Local(bar.Time)
	mins := local.Hour()*60 + local.Minute()
	start := r.cfg.StartHour*60 + r.cfg.StartMinute
	end := r.cfg.EndHour*60 + r.cfg.EndMinute
	return mins >= start && mins < end
}

// sortedKeys iterates levels in price order so the lowest qualifying level
// wins deterministically.
func (r *RetestTracker) sortedKeys() []int64 {
	keys := make([]int64, 0, len(r.levels))
	for k := range r.levels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
