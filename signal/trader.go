package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quicktime/lvntrader/levels"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/profile"
)

// TraderConfig is the flat tuning surface shared by live trading and replay.
type TraderConfig struct {
	Symbol          string  `yaml:"symbol" json:"symbol"`
	Exchange        string  `yaml:"exchange" json:"exchange"`
	Contracts       int     `yaml:"contracts" json:"contracts"`
	TakeProfit      float64 `yaml:"take_profit" json:"take_profit"`
	TrailingStop    float64 `yaml:"trailing_stop" json:"trailing_stop"`
	StopBuffer      float64 `yaml:"stop_buffer" json:"stop_buffer"`
	MaxHoldBars     int     `yaml:"max_hold_bars" json:"max_hold_bars"`
	MinDelta        int64   `yaml:"min_delta" json:"min_delta"`
	MaxLVNRatio     float64 `yaml:"max_lvn_ratio" json:"max_lvn_ratio"`
	LevelTolerance  float64 `yaml:"level_tolerance" json:"level_tolerance"`
	StartingBalance float64 `yaml:"starting_balance" json:"starting_balance"`
	MaxDailyLosses  int     `yaml:"max_daily_losses" json:"max_daily_losses"`
	DailyLossLimit  float64 `yaml:"daily_loss_limit" json:"daily_loss_limit"`
	PointValue      float64 `yaml:"point_value" json:"point_value"`
	Slippage        float64 `yaml:"slippage" json:"slippage"`
	Commission      float64 `yaml:"commission" json:"commission"`
	StartHour       int     `yaml:"start_hour" json:"start_hour"`
	StartMinute     int     `yaml:"start_minute" json:"start_minute"`
	EndHour         int     `yaml:"end_hour" json:"end_hour"`
	EndMinute       int     `yaml:"end_minute" json:"end_minute"`
	UTCOffsetHours  int     `yaml:"utc_offset_hours" json:"utc_offset_hours"`
}

// DefaultTraderConfig returns the production NQ tuning.
func DefaultTraderConfig() TraderConfig {
	return TraderConfig{
		Symbol:          "NQ",
		Exchange:        "CME",
		Contracts:       1,
		TakeProfit:      30.0,
		TrailingStop:    6.0,
		StopBuffer:      2.0,
		MaxHoldBars:     300,
		MinDelta:        100,
		MaxLVNRatio:     0.15,
		LevelTolerance:  2.0,
		StartingBalance: 30000.0,
		MaxDailyLosses:  3,
		DailyLossLimit:  1000.0,
		PointValue:      20.0,
		Slippage:        0.5,
		Commission:      4.0,
		StartHour:       9,
		StartMinute:     30,
		EndHour:         11,
		EndMinute:       0,
		UTCOffsetHours:  -5,
	}
}

// retestConfig builds the retest tuning from the flat config.
func (c TraderConfig) retestConfig() RetestConfig {
	r := DefaultRetestConfig()
	r.LevelTolerance = c.LevelTolerance
	r.MinDelta = c.MinDelta
	r.MaxLVNRatio = c.MaxLVNRatio
	r.StartHour = c.StartHour
	r.StartMinute = c.StartMinute
	r.EndHour = c.EndHour
	r.EndMinute = c.EndMinute
	return r
}

type openPosition struct {
	direction    Direction
	entryPrice   float64
	entryTime    time.Time
	levelPrice   float64
	initialStop  float64
	takeProfit   float64
	trailingStop float64
	highest      float64
	lowest       float64
	barCount     int
}

// Trader is the broker-agnostic trading state shared by live trading and
// replay. It consumes completed bars and emits Actions; the execution side
// turns those into orders.
type Trader struct {
	cfg       TraderConfig
	retestCfg RetestConfig
	clock     levels.SessionClock
	tracker   *RetestTracker
	machine   *Machine
	log       zerolog.Logger

	pending  *Signal
	position *openPosition

	// impulse that produced the current trade, so its levels can be
	// cleared after the exit
	tradeImpulseID string

	dailyLosses     int
	dailyPnL        float64
	totalTrades     int
	wins            int
	losses          int
	breakevens      int
	runningBalance  float64
	peakBalance     float64
	maxDrawdown     float64
	grossProfit     float64
	grossLoss       float64
	tradePnLs       []float64
	totalCommission float64
	totalSlippage   float64

	inHours      bool
	dailyStopped bool
	barCount     int

	currentDate    string
	daysStopped    int
	signalsSkipped int
}

// NewTrader builds a trader without breakout detection. Levels come from
// AddLevels (replay from cache, or yesterday's precompute for live).
func NewTrader(cfg TraderConfig, log zerolog.Logger) *Trader {
	clock := levels.SessionClock{UTCOffsetHours: cfg.UTCOffsetHours}
	retestCfg := cfg.retestConfig()
	return &Trader{
		cfg:            cfg,
		retestCfg:      retestCfg,
		clock:          clock,
		tracker:        NewRetestTracker(retestCfg, DefaultMarketStateConfig(), clock),
		log:            log,
		runningBalance: cfg.StartingBalance,
		peakBalance:    cfg.StartingBalance,
	}
}

// NewTraderWithMachine builds a trader that detects breakouts and extracts
// LVN levels in real time.
func NewTraderWithMachine(cfg TraderConfig, machineCfg MachineConfig, profileCfg profile.Config, log zerolog.Logger) *Trader {
	t := NewTrader(cfg, log)
	t.machine = NewMachine(cfg.Symbol, machineCfg, profileCfg)
	return t
}

// SetDailyLevels installs reference levels for breakout detection.
func (t *Trader) SetDailyLevels(d levels.DailyLevels) {
	if t.machine != nil {
		t.machine.SetDailyLevels(d)
	}
}

// ProcessTrade feeds a raw trade to the machine for LVN extraction while an
// impulse is being profiled.
func (t *Trader) ProcessTrade(tr market.Trade) {
	if t.machine != nil {
		t.machine.ProcessTrade(tr)
	}
}

// Profiling reports whether an impulse is currently being profiled.
func (t *Trader) Profiling() bool {
	return t.machine != nil && t.machine.Phase() == PhaseProfiling
}

// Phase reports the pipeline phase for status display.
func (t *Trader) Phase() Phase {
	if t.position != nil {
		return PhaseInPosition
	}
	if t.machine != nil {
		return t.machine.Phase()
	}
	return PhaseHunting
}

// AddLevels installs LVN levels directly.
func (t *Trader) AddLevels(lvns []profile.Level) int {
	return t.tracker.AddLevels(lvns)
}

// ClearLevels drops all tracked levels.
func (t *Trader) ClearLevels() {
	t.tracker.Clear()
}

// LevelCount reports how many LVN levels are tracked.
func (t *Trader) LevelCount() int { return t.tracker.LevelCount() }

// IsFlat reports whether there is no position and no pending entry.
func (t *Trader) IsFlat() bool {
	return t.position == nil && t.pending == nil
}

// DailyStopped reports whether trading is halted for the day.
func (t *Trader) DailyStopped() bool { return t.dailyStopped }

// ResetDaily clears the per-day counters.
func (t *Trader) ResetDaily() {
	t.dailyLosses = 0
	t.dailyPnL = 0
	t.dailyStopped = false
	t.log.Info().Float64("balance", t.runningBalance).Msg("daily stats reset")
}

// ResetForNewDay closes any open position at the last known price, drops
// pending signals and levels, and resets daily stats. Used between replay
// days.
func (t *Trader) ResetForNewDay(lastPrice *float64) {
	if pos := t.position; pos != nil {
		t.position = nil
		exitPrice := pos.entryPrice
		if lastPrice != nil {
			exitPrice = *lastPrice
		}
		pnl := exitPrice - pos.entryPrice
		if pos.direction == Short {
			pnl = pos.entryPrice - exitPrice
		}
		t.totalTrades++
		t.runningBalance += pnl * t.cfg.PointValue * float64(t.cfg.Contracts)
		switch {
		case pnl > 1.0:
			t.wins++
			t.grossProfit += pnl
		case pnl < -1.0:
			t.losses++
			t.grossLoss += math.Abs(pnl)
		default:
			t.breakevens++
		}
		t.log.Info().
			Str("direction", pos.direction.String()).
			Float64("price", exitPrice).
			Float64("pnl_points", pnl).
			Msg("eod close")
	}
	t.pending = nil
	t.tradeImpulseID = ""
	t.ClearLevels()
	t.ResetDaily()
	if t.machine != nil {
		t.machine.ResetForNewDay()
	}
}

// ProcessBar advances the trader one completed bar. The returned Action is
// nil when nothing happened.
func (t *Trader) ProcessBar(bar market.Bar) Action {
	t.barCount++
	t.checkDateChange(bar)
	t.checkTradingHours(bar)

	if t.dailyStopped {
		return nil
	}
	if t.dailyPnL <= -t.cfg.DailyLossLimit {
		t.log.Warn().Float64("daily_pnl", t.dailyPnL).Msg("daily loss limit reached")
		t.dailyStopped = true
		return FlattenAll{Reason: "Daily loss limit"}
	}

	t.stepMachine(bar)

	if act := t.enterPending(bar); act != nil {
		return act
	}
	if act := t.managePosition(bar); act != nil {
		return act
	}

	// Level states must track price even while in a position or outside
	// hours, so the tracker always sees the bar.
	sig := t.tracker.ProcessBar(bar)
	if sig != nil && t.position == nil && t.pending == nil && t.inHours && !t.dailyStopped {
		t.log.Info().
			Str("direction", sig.Direction.String()).
			Float64("price", sig.Price).
			Float64("level", sig.LevelPrice).
			Int64("delta", sig.Delta).
			Msg("signal")
		t.tradeImpulseID = sig.ImpulseID
		t.pending = sig
		return SignalPending{}
	}
	return nil
}

func (t *Trader) stepMachine(bar market.Bar) {
	if t.machine == nil {
		return
	}
	ev := t.machine.ProcessBar(bar)
	if ev == nil {
		return
	}
	switch ev.Kind {
	case EventBreakout:
		t.log.Info().
			Str("level", ev.Level.String()).
			Float64("price", ev.Price).
			Str("direction", ev.Direction.String()).
			Msg("breakout detected")
	case EventImpulseComplete:
		added := t.tracker.AddLevels(ev.LVNs)
		t.log.Info().
			Str("impulse_id", ev.ImpulseID).
			Int("lvn_count", len(ev.LVNs)).
			Int("added", added).
			Str("direction", ev.Direction.String()).
			Msg("impulse complete")
		for _, lvn := range ev.LVNs {
			t.log.Debug().Float64("price", lvn.Price).Float64("volume_ratio", lvn.VolumeRatio).Msg("lvn level")
		}
	case EventImpulseInvalid:
		t.log.Info().Str("reason", ev.Reason).Msg("impulse invalid")
	case EventHuntingTimeout:
		removed := t.tracker.ClearImpulse(ev.ImpulseID)
		t.log.Info().Str("impulse_id", ev.ImpulseID).Int("removed", removed).Msg("hunting timeout")
	case EventReset:
		t.log.Debug().Msg("machine reset")
	}
}

// enterPending fills a signal queued on the previous bar at this bar's open.
func (t *Trader) enterPending(bar market.Bar) Action {
	if t.pending == nil {
		return nil
	}
	sig := t.pending
	t.pending = nil

	if t.dailyStopped {
		t.signalsSkipped++
		t.log.Info().Str("direction", sig.Direction.String()).Msg("signal skipped, daily stop active")
		return nil
	}
	if !t.inHours {
		t.log.Info().Msg("signal skipped, outside trading hours")
		return nil
	}

	entry := bar.Open
	var stop, target float64
	if sig.Direction == Long {
		stop = sig.LevelPrice - t.cfg.StopBuffer
		target = entry + t.cfg.TakeProfit
	} else {
		stop = sig.LevelPrice + t.cfg.StopBuffer
		target = entry - t.cfg.TakeProfit
	}

	t.position = &openPosition{
		direction:    sig.Direction,
		entryPrice:   entry,
		entryTime:    bar.Time,
		levelPrice:   sig.LevelPrice,
		initialStop:  stop,
		takeProfit:   target,
		trailingStop: stop,
		highest:      entry,
		lowest:       entry,
	}

	t.log.Info().
		Str("direction", sig.Direction.String()).
		Float64("price", entry).
		Float64("stop", stop).
		Float64("target", target).
		Msg("entry")

	return Enter{
		Direction: sig.Direction,
		Price:     entry,
		Stop:      stop,
		Target:    target,
		Level:     sig.LevelPrice,
		Contracts: t.cfg.Contracts,
	}
}

func (t *Trader) managePosition(bar market.Bar) Action {
	pos := t.position
	if pos == nil {
		return nil
	}
	pos.barCount++
	pos.highest = math.Max(pos.highest, bar.High)
	pos.lowest = math.Min(pos.lowest, bar.Low)

	// Trailing stop activates once price moves a full trailing distance in
	// our favor, then only ratchets.
	if pos.direction == Long {
		if pos.highest >= pos.entryPrice+t.cfg.TrailingStop {
			if trail := pos.highest - t.cfg.TrailingStop; trail > pos.trailingStop {
				pos.trailingStop = trail
				t.log.Debug().Float64("stop", trail).Msg("trailing stop updated")
			}
		}
	} else {
		if pos.lowest <= pos.entryPrice-t.cfg.TrailingStop {
			if trail := pos.lowest + t.cfg.TrailingStop; trail < pos.trailingStop {
				pos.trailingStop = trail
				t.log.Debug().Float64("stop", trail).Msg("trailing stop updated")
			}
		}
	}

	exit := false
	exitPrice := bar.Close
	reason := ""
	if pos.direction == Long {
		if bar.Low <= pos.trailingStop {
			exit, exitPrice, reason = true, pos.trailingStop, "STOP"
		} else if bar.High >= pos.takeProfit {
			exit, exitPrice, reason = true, pos.takeProfit, "TARGET"
		}
	} else {
		if bar.High >= pos.trailingStop {
			exit, exitPrice, reason = true, pos.trailingStop, "STOP"
		} else if bar.Low <= pos.takeProfit {
			exit, exitPrice, reason = true, pos.takeProfit, "TARGET"
		}
	}
	if !exit && pos.barCount >= t.cfg.MaxHoldBars {
		exit, exitPrice, reason = true, bar.Close, "TIMEOUT"
	}
	if !exit {
		return UpdateStop{NewStop: pos.trailingStop}
	}
	return t.closePosition(pos, exitPrice, reason)
}

func (t *Trader) closePosition(pos *openPosition, exitPrice float64, reason string) Action {
	grossPoints := exitPrice - pos.entryPrice
	if pos.direction == Short {
		grossPoints = pos.entryPrice - exitPrice
	}

	// Slippage hits both the entry and exit fills.
	slippage := t.cfg.Slippage * 2
	pnlPoints := grossPoints - slippage
	t.totalSlippage += slippage

	grossDollars := pnlPoints * t.cfg.PointValue * float64(t.cfg.Contracts)
	commission := t.cfg.Commission * float64(t.cfg.Contracts)
	pnlDollars := grossDollars - commission
	t.totalCommission += commission

	t.dailyPnL += pnlPoints
	t.runningBalance += pnlDollars
	t.totalTrades++
	t.tradePnLs = append(t.tradePnLs, pnlPoints)

	if t.runningBalance > t.peakBalance {
		t.peakBalance = t.runningBalance
	}
	if dd := t.peakBalance - t.runningBalance; dd > t.maxDrawdown {
		t.maxDrawdown = dd
	}

	ev := t.log.Info().
		Str("reason", reason).
		Str("direction", pos.direction.String()).
		Float64("price", exitPrice).
		Float64("pnl_points", pnlPoints).
		Float64("pnl_dollars", pnlDollars)
	switch {
	case pnlPoints > 0.5:
		t.wins++
		t.grossProfit += pnlPoints
		ev.Str("result", "WIN").Msg("exit")
	case pnlPoints < -0.5:
		t.losses++
		t.dailyLosses++
		t.grossLoss += math.Abs(pnlPoints)
		ev.Str("result", "LOSS").Msg("exit")
		if t.cfg.MaxDailyLosses > 0 && t.dailyLosses >= t.cfg.MaxDailyLosses {
			t.log.Warn().Int("max_daily_losses", t.cfg.MaxDailyLosses).Msg("max daily losses reached")
			t.dailyStopped = true
		}
	default:
		t.breakevens++
		ev.Str("result", "BREAKEVEN").Msg("exit")
	}

	direction := pos.direction
	t.position = nil

	if t.machine != nil && t.tradeImpulseID != "" {
		removed := t.tracker.ClearImpulse(t.tradeImpulseID)
		t.log.Info().Str("impulse_id", t.tradeImpulseID).Int("removed", removed).Msg("cleared impulse levels after exit")
		t.tradeImpulseID = ""
		t.machine.Reset()
	}

	return Exit{
		Direction: direction,
		Price:     exitPrice,
		PnLPoints: pnlPoints,
		Reason:    reason,
	}
}

func (t *Trader) checkTradingHours(bar market.Bar) {
	local := t.clock.Local(bar.Time)
	mins := local.Hour()*60 + local.Minute()
	start := t.cfg.StartHour*60 + t.cfg.StartMinute
	end := t.cfg.EndHour*60 + t.cfg.EndMinute
	t.inHours = mins >= start && mins < end
}

func (t *Trader) checkDateChange(bar market.Bar) {
	date := t.clock.Local(bar.Time).Format("2006-01-02")
	if t.currentDate == date {
		return
	}
	if t.dailyStopped {
		t.daysStopped++
	}
	t.currentDate = date
	t.dailyLosses = 0
	t.dailyPnL = 0
	t.dailyStopped = false
}

// Status returns a one-line state summary for periodic logging.
func (t *Trader) Status() string {
	winRate := 0.0
	if t.totalTrades > 0 {
		winRate = float64(t.wins) / float64(t.totalTrades) * 100
	}
	pos := "FLAT"
	if t.position != nil {
		pos = "OPEN"
	}
	return fmt.Sprintf("Balance: $%.2f | Day P&L: %.2f pts | Trades: %d | WR: %.1f%% | Position: %s",
		t.runningBalance, t.dailyPnL, t.totalTrades, winRate, pos)
}

// TradingSummary aggregates results across a replay run.
type TradingSummary struct {
	TotalTrades      int     `json:"total_trades"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	Breakevens       int     `json:"breakevens"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	GrossPnL         float64 `json:"gross_pnl"`
	TotalSlippage    float64 `json:"total_slippage"`
	TotalCommission  float64 `json:"total_commission"`
	NetPnL           float64 `json:"net_pnl"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	FinalBalance     float64 `json:"final_balance"`
	DaysStoppedEarly int     `json:"days_stopped_early"`
	SignalsSkipped   int     `json:"signals_skipped"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
}

// Summary computes the run statistics from realized trades.
func (t *Trader) Summary() TradingSummary {
	winRate := 0.0
	if t.totalTrades > 0 {
		winRate = float64(t.wins) / float64(t.totalTrades) * 100
	}

	netPnL := t.grossProfit - t.grossLoss
	grossPnL := netPnL + t.totalSlippage

	profitFactor := 0.0
	if t.grossLoss > 0 {
		profitFactor = t.grossProfit / t.grossLoss
	} else if t.grossProfit > 0 {
		profitFactor = math.Inf(1)
	}

	avgWin := 0.0
	if t.wins > 0 {
		avgWin = t.grossProfit / float64(t.wins)
	}
	avgLoss := 0.0
	if t.losses > 0 {
		avgLoss = -(t.grossLoss / float64(t.losses))
	}

	daysStopped := t.daysStopped
	if t.dailyStopped {
		daysStopped++
	}

	// Annualized Sharpe from per-trade net points.
	sharpe := 0.0
	if t.totalTrades > 1 && len(t.tradePnLs) > 0 {
		mean := netPnL / float64(t.totalTrades)
		variance := 0.0
		for _, r := range t.tradePnLs {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(t.totalTrades)
		if std := math.Sqrt(variance); std > 0 {
			sharpe = (mean / std) * math.Sqrt(252)
		}
	}

	return TradingSummary{
		TotalTrades:      t.totalTrades,
		Wins:             t.wins,
		Losses:           t.losses,
		Breakevens:       t.breakevens,
		WinRate:          winRate,
		ProfitFactor:     profitFactor,
		GrossPnL:         grossPnL,
		TotalSlippage:    t.totalSlippage,
		TotalCommission:  t.totalCommission,
		NetPnL:           netPnL,
		AvgWin:           avgWin,
		AvgLoss:          avgLoss,
		MaxDrawdown:      t.maxDrawdown,
		FinalBalance:     t.runningBalance,
		DaysStoppedEarly: daysStopped,
		SignalsSkipped:   t.signalsSkipped,
		SharpeRatio:      sharpe,
	}
}
