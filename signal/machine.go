package signal

import (
	"github.com/quicktime/lvntrader/levels"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/profile"
)

// Phase of the signal pipeline.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseProfiling
	PhaseHunting
	PhaseInPosition
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseProfiling:
		return "PROFILING"
	case PhaseHunting:
		return "HUNTING"
	case PhaseInPosition:
		return "IN_POSITION"
	}
	return "UNKNOWN"
}

// MachineConfig tunes breakout detection and impulse qualification.
type MachineConfig struct {
	BreakoutThreshold float64 `yaml:"breakout_threshold" json:"breakout_threshold"`
	MaxImpulseBars    int     `yaml:"max_impulse_bars" json:"max_impulse_bars"`
	MinImpulseSize    float64 `yaml:"min_impulse_size" json:"min_impulse_size"`
	MinImpulseScore   int     `yaml:"min_impulse_score" json:"min_impulse_score"`
	MaxFastBars       int     `yaml:"max_fast_bars" json:"max_fast_bars"`
	MaxHuntingBars    int     `yaml:"max_hunting_bars" json:"max_hunting_bars"`
	VolumeLookback    int     `yaml:"volume_lookback" json:"volume_lookback"`
}

// DefaultMachineConfig returns the production NQ tuning.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		BreakoutThreshold: 2.0,
		MaxImpulseBars:    300,
		MinImpulseSize:    30.0,
		MinImpulseScore:   4,
		MaxFastBars:       5,
		MaxHuntingBars:    600,
		VolumeLookback:    60,
	}
}

// EventKind tags a machine transition.
type EventKind int

const (
	EventBreakout EventKind = iota
	EventImpulseComplete
	EventImpulseInvalid
	EventHuntingTimeout
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventBreakout:
		return "BREAKOUT"
	case EventImpulseComplete:
		return "IMPULSE_COMPLETE"
	case EventImpulseInvalid:
		return "IMPULSE_INVALID"
	case EventHuntingTimeout:
		return "HUNTING_TIMEOUT"
	case EventReset:
		return "RESET"
	}
	return "UNKNOWN"
}

// Event is a state transition reported by the machine for one bar.
type Event struct {
	Kind      EventKind
	Level     levels.Kind
	Direction market.Direction
	Price     float64
	ImpulseID string
	Leg       *Leg
	LVNs      []profile.Level
	Reason    string
}

// Machine drives the breakout to impulse to hunting cycle for one symbol.
// It is single-goroutine: the caller feeds it bars and trades in order.
type Machine struct {
	cfg        MachineConfig
	profileCfg profile.Config
	symbol     string

	phase        Phase
	daily        *levels.DailyLevels
	builder      *ImpulseBuilder
	brokenLevel  levels.Kind
	priorAvgVol  float64
	trades       []market.Trade
	huntingStart int
	barCount     int
	volWindow    []uint64
}

// NewMachine builds an idle machine. Daily levels must be set before
// breakouts can fire.
func NewMachine(symbol string, cfg MachineConfig, profileCfg profile.Config) *Machine {
	return &Machine{
		cfg:        cfg,
		profileCfg: profileCfg,
		symbol:     symbol,
		phase:      PhaseIdle,
	}
}

func (m *Machine) Phase() Phase { return m.phase }

// ActiveImpulseID returns the id of the impulse being profiled or hunted,
// or "" when idle.
func (m *Machine) ActiveImpulseID() string {
	if m.builder == nil {
		return ""
	}
	return m.builder.ID()
}

// SetDailyLevels installs the reference levels used for breakout checks.
func (m *Machine) SetDailyLevels(d levels.DailyLevels) {
	m.daily = &d
}

// ProcessTrade collects trades while an impulse is being profiled. The
// collected window feeds LVN extraction when the impulse completes.
func (m *Machine) ProcessTrade(t market.Trade) {
	if m.phase == PhaseProfiling {
		m.trades = append(m.trades, t)
	}
}

// ProcessBar advances the machine one bar and returns the transition that
// happened, or nil.
func (m *Machine) ProcessBar(bar market.Bar) *Event {
	m.barCount++
	defer m.pushVolume(bar.Volume)

	switch m.phase {
	case PhaseIdle:
		return m.checkBreakout(bar)
	case PhaseProfiling:
		return m.profile(bar)
	case PhaseHunting:
		if m.barCount-m.huntingStart > m.cfg.MaxHuntingBars {
			impulseID := m.ActiveImpulseID()
			m.Reset()
			return &Event{Kind: EventHuntingTimeout, ImpulseID: impulseID, Reason: "no retest within window"}
		}
	}
	return nil
}

// Reset drops the active impulse and returns to idle. Daily levels and the
// rolling volume window survive.
func (m *Machine) Reset() {
	m.phase = PhaseIdle
	m.builder = nil
	m.trades = nil
}

// ResetForNewDay clears everything that belongs to the previous session.
func (m *Machine) ResetForNewDay() {
	m.Reset()
	m.daily = nil
	m.volWindow = m.volWindow[:0]
	m.barCount = 0
	m.huntingStart = 0
}

func (m *Machine) checkBreakout(bar market.Bar) *Event {
	if m.daily == nil {
		return nil
	}
	bo, ok := m.daily.CheckBreakout(bar.Close, m.cfg.BreakoutThreshold)
	if !ok {
		return nil
	}
	m.builder = NewImpulseBuilder(m.cfg, bar, bo.Direction)
	m.brokenLevel = bo.Level
	m.priorAvgVol = m.avgVolume()
	m.trades = m.trades[:0]
	m.phase = PhaseProfiling
	return &Event{
		Kind:      EventBreakout,
		Level:     bo.Level,
		Direction: bo.Direction,
		Price:     bar.Close,
		ImpulseID: m.builder.ID(),
	}
}

func (m *Machine) profile(bar market.Bar) *Event {
	m.builder.AddBar(bar)

	if m.builder.BarCount() > m.cfg.MaxImpulseBars {
		impulseID := m.builder.ID()
		m.Reset()
		return &Event{Kind: EventImpulseInvalid, ImpulseID: impulseID, Reason: "impulse timed out"}
	}
	if m.retraced(bar) {
		impulseID := m.builder.ID()
		m.Reset()
		return &Event{Kind: EventImpulseInvalid, ImpulseID: impulseID, Reason: "retraced past half of move"}
	}
	if !m.builder.Sufficient() {
		return nil
	}
	score := m.builder.Score(true, m.priorAvgVol)
	if score.Total() < m.cfg.MinImpulseScore {
		return nil
	}

	leg := m.builder.Leg(bar.Time, true, m.priorAvgVol)
	lvns := profile.Extract(m.trades, m.builder.Start(), bar.Time,
		leg.ID, leg.Direction, m.symbol, m.profileCfg)
	m.phase = PhaseHunting
	m.huntingStart = m.barCount
	m.trades = nil
	return &Event{
		Kind:      EventImpulseComplete,
		Direction: leg.Direction,
		Price:     leg.EndPrice,
		ImpulseID: leg.ID,
		Leg:       &leg,
		LVNs:      lvns,
	}
}

// retraced reports whether price gave back more than half the move measured
// from the extreme reached so far.
func (m *Machine) retraced(bar market.Bar) bool {
	move := m.builder.MoveSize()
	if move <= 0 {
		return false
	}
	var retrace float64
	if m.builder.Direction() == market.Up {
		retrace = m.builder.EndPrice() - bar.Close
	} else {
		retrace = bar.Close - m.builder.EndPrice()
	}
	return retrace > move*0.5
}

func (m *Machine) pushVolume(v uint64) {
	m.volWindow = append(m.volWindow, v)
	if len(m.volWindow) > m.cfg.VolumeLookback {
		m.volWindow = m.volWindow[1:]
	}
}

func (m *Machine) avgVolume() float64 {
	if len(m.volWindow) == 0 {
		return 0
	}
	var total uint64
	for _, v := range m.volWindow {
		total += v
	}
	return float64(total) / float64(len(m.volWindow))
}

// HuntingDeadline reports the bar index at which hunting gives up, for
// status display.
func (m *Machine) HuntingDeadline() (int, bool) {
	if m.phase != PhaseHunting {
		return 0, false
	}
	return m.huntingStart + m.cfg.MaxHuntingBars, true
}
