package signal

import (
	"time"

	"github.com/quicktime/lvntrader/internal/id"
	"github.com/quicktime/lvntrader/market"
)

// Score holds the five quality criteria for an impulse leg.
type Score struct {
	BrokeSwing      bool
	Fast            bool
	Uniform         bool
	VolumeIncreased bool
	SufficientSize  bool
}

// Total counts how many criteria passed.
func (s Score) Total() int {
	n := 0
	for _, ok := range []bool{s.BrokeSwing, s.Fast, s.Uniform, s.VolumeIncreased, s.SufficientSize} {
		if ok {
			n++
		}
	}
	return n
}

// Leg is a completed impulse move.
type Leg struct {
	ID          string           `json:"id"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	StartPrice  float64          `json:"start_price"`
	EndPrice    float64          `json:"end_price"`
	Direction   market.Direction `json:"direction"`
	Bars        int              `json:"bars"`
	TotalVolume uint64           `json:"total_volume"`
	Score       Score            `json:"score"`
}

// MoveSize is the leg's extent in points.
func (l Leg) MoveSize() float64 {
	if l.Direction == market.Up {
		return l.EndPrice - l.StartPrice
	}
	return l.StartPrice - l.EndPrice
}

// ImpulseBuilder accumulates bars for an impulse in progress and scores it
// incrementally. The extreme reached so far is treated as the leg's end.
type ImpulseBuilder struct {
	cfg        MachineConfig
	id         string
	start      time.Time
	startPrice float64
	direction  market.Direction
	bars       []market.Bar
	high       float64
	low        float64
}

// NewImpulseBuilder starts a builder from the breakout bar.
func NewImpulseBuilder(cfg MachineConfig, first market.Bar, dir market.Direction) *ImpulseBuilder {
	b := &ImpulseBuilder{
		cfg:        cfg,
		id:         id.New(),
		start:      first.Time,
		startPrice: first.Open,
		direction:  dir,
		high:       first.High,
		low:        first.Low,
	}
	b.bars = append(b.bars, first)
	return b
}

// AddBar extends the impulse with the next bar.
func (b *ImpulseBuilder) AddBar(bar market.Bar) {
	b.bars = append(b.bars, bar)
	if bar.High > b.high {
		b.high = bar.High
	}
	if bar.Low < b.low {
		b.low = bar.Low
	}
}

func (b *ImpulseBuilder) ID() string                  { return b.id }
func (b *ImpulseBuilder) Start() time.Time            { return b.start }
func (b *ImpulseBuilder) Direction() market.Direction { return b.direction }
func (b *ImpulseBuilder) BarCount() int               { return len(b.bars) }

// EndPrice is the extreme reached so far in the impulse direction.
func (b *ImpulseBuilder) EndPrice() float64 {
	if b.direction == market.Up {
		return b.high
	}
	return b.low
}

// MoveSize is the points traveled from the start price to the extreme.
func (b *ImpulseBuilder) MoveSize() float64 {
	if b.direction == market.Up {
		return b.high - b.startPrice
	}
	return b.startPrice - b.low
}

// Sufficient reports whether the move has reached the minimum size.
func (b *ImpulseBuilder) Sufficient() bool {
	return b.MoveSize() >= b.cfg.MinImpulseSize
}

// Score evaluates the five criteria. brokeSwing is decided by the caller
// (breakout legs broke a level by construction). priorAvgVolume is the
// rolling per-bar average before the impulse started.
func (b *ImpulseBuilder) Score(brokeSwing bool, priorAvgVolume float64) Score {
	return Score{
		BrokeSwing:      brokeSwing,
		Fast:            len(b.bars) <= b.cfg.MaxFastBars,
		Uniform:         uniformBars(b.bars, b.direction),
		VolumeIncreased: b.volumeIncreased(priorAvgVolume),
		SufficientSize:  b.Sufficient(),
	}
}

// Leg snapshots the builder into a completed leg ending at the given time.
func (b *ImpulseBuilder) Leg(end time.Time, brokeSwing bool, priorAvgVolume float64) Leg {
	var vol uint64
	for _, bar := range b.bars {
		vol += bar.Volume
	}
	return Leg{
		ID:          b.id,
		Start:       b.start,
		End:         end,
		StartPrice:  b.startPrice,
		EndPrice:    b.EndPrice(),
		Direction:   b.direction,
		Bars:        len(b.bars),
		TotalVolume: vol,
		Score:       b.Score(brokeSwing, priorAvgVolume),
	}
}

func (b *ImpulseBuilder) volumeIncreased(priorAvg float64) bool {
	if priorAvg <= 0 || len(b.bars) == 0 {
		return false
	}
	var total uint64
	for _, bar := range b.bars {
		total += bar.Volume
	}
	avg := float64(total) / float64(len(b.bars))
	return avg > priorAvg*1.2
}

// uniformBars requires at least 70% of candles closing in the move direction
// and adjacent bodies overlapping less than half on average.
func uniformBars(bars []market.Bar, dir market.Direction) bool {
	if len(bars) == 0 {
		return false
	}
	directional := 0
	for _, b := range bars {
		if dir == market.Up && b.Close > b.Open {
			directional++
		} else if dir == market.Down && b.Close < b.Open {
			directional++
		}
	}
	if float64(directional)/float64(len(bars)) < 0.7 {
		return false
	}
	if len(bars) < 2 {
		return true
	}
	var overlap, totalBody float64
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1], bars[i]
		pLo, pHi := bodyRange(prev)
		cLo, cHi := bodyRange(cur)
		lo := pLo
		if cLo > lo {
			lo = cLo
		}
		hi := pHi
		if cHi < hi {
			hi = cHi
		}
		if hi > lo {
			overlap += hi - lo
		}
		totalBody += cHi - cLo
	}
	if totalBody <= 0 {
		return true
	}
	return overlap/totalBody < 0.5
}

func bodyRange(b market.Bar) (lo, hi float64) {
	if b.Open < b.Close {
		return b.Open, b.Close
	}
	return b.Close, b.Open
}
