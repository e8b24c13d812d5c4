package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quicktime/lvntrader/journal"
	"github.com/quicktime/lvntrader/metrics"
)

// Sentinel errors returned by ExecuteSignal.
var (
	ErrDailyLimit       = errors.New("daily loss limit reached, no new trades")
	ErrMaxLosses        = errors.New("max daily losses reached, no new trades")
	ErrMaxPosition      = errors.New("would exceed max position size")
	ErrOppositePosition = errors.New("position open in the opposite direction")
)

// EventKind tags an execution event.
type EventKind int

const (
	SignalExecuted EventKind = iota
	EntryFilled
	ExitFilled
	TrailingStopUpdated
	DailyLimitReached
	MaxLossesReached
	PositionFlattened
	ExecutionError
)

func (k EventKind) String() string {
	switch k {
	case SignalExecuted:
		return "SIGNAL_EXECUTED"
	case EntryFilled:
		return "ENTRY_FILLED"
	case ExitFilled:
		return "EXIT_FILLED"
	case TrailingStopUpdated:
		return "TRAILING_STOP_UPDATED"
	case DailyLimitReached:
		return "DAILY_LIMIT_REACHED"
	case MaxLossesReached:
		return "MAX_LOSSES_REACHED"
	case PositionFlattened:
		return "POSITION_FLATTENED"
	case ExecutionError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Event is emitted on the engine's event channel as orders progress.
type Event struct {
	Kind      EventKind
	BracketID string
	Side      Side
	LVNLevel  float64
	FillPrice float64
	Quantity  int
	PnLPoints float64
	ExitType  string
	NewStop   float64
	LossCount int
	Reason    string
	Message   string
}

// ExitTrigger names a bracket whose stop or target price traded.
type ExitTrigger struct {
	BracketID string
	Price     float64
	ExitType  string
}

// Signal is an entry request from the signal pipeline.
type Signal struct {
	Side     Side
	LVNLevel float64
	Price    float64
	Delta    float64
}

const eventBuffer = 1000

// Engine turns signals into bracket orders through a Broker and enforces
// the daily risk limits. Events are delivered on a buffered channel and
// dropped when no one drains it.
type Engine struct {
	mu            sync.Mutex
	cfg           Config
	broker        Broker
	pm            *PositionManager
	events        chan Event
	dailyLimitHit bool
	maxLossesHit  bool
	journal       journal.Journal
	log           zerolog.Logger
}

// NewEngine builds an engine with the default 50k tracking balance.
func NewEngine(cfg Config, broker Broker, log zerolog.Logger) *Engine {
	return NewEngineWithBalance(cfg, broker, 50000.0, log)
}

// NewEngineWithBalance sets the starting balance for prop-firm tracking.
func NewEngineWithBalance(cfg Config, broker Broker, startingBalance float64, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		broker: broker,
		pm:     NewPositionManager(cfg.Symbol, startingBalance, cfg.PointValue),
		events: make(chan Event, eventBuffer),
		log:    log,
	}
}

// Events is the engine's event stream.
func (e *Engine) Events() <-chan Event { return e.events }

// SetJournal attaches a journal; every exit fill is recorded to it.
func (e *Engine) SetJournal(j journal.Journal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.journal = j
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// ExecuteSignal submits a bracket for the signal. Risk gates run first: the
// daily limits, an open position in the opposite direction, and the
// position cap each reject the trade with a sentinel error.
func (e *Engine) ExecuteSignal(ctx context.Context, sig Signal, quantity int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dailyLimitHit {
		return "", ErrDailyLimit
	}
	if e.maxLossesHit {
		return "", fmt.Errorf("%w (limit %d)", ErrMaxLosses, e.cfg.MaxDailyLosses)
	}
	net := e.pm.NetPosition()
	if (net > 0 && sig.Side == Sell) || (net < 0 && sig.Side == Buy) {
		return "", fmt.Errorf("%w (net %d)", ErrOppositePosition, net)
	}
	if current := abs(net); current+quantity > e.cfg.MaxPositionSize {
		return "", fmt.Errorf("%w (%d + %d > %d)", ErrMaxPosition, current, quantity, e.cfg.MaxPositionSize)
	}

	var bracket *BracketOrder
	if sig.Side == Buy {
		bracket = NewLongBracket(e.cfg.Symbol, e.cfg.Exchange, quantity, sig.LVNLevel)
	} else {
		bracket = NewShortBracket(e.cfg.Symbol, e.cfg.Exchange, quantity, sig.LVNLevel)
	}

	brokerID, err := e.broker.SubmitMarketOrder(ctx, e.cfg.Symbol, sig.Side, quantity)
	if err != nil {
		e.emit(Event{Kind: ExecutionError, Message: err.Error()})
		return "", fmt.Errorf("submit entry: %w", err)
	}
	bracket.Entry.BrokerOrderID = brokerID
	bracket.Entry.UpdateState(Submitted)
	metrics.OrdersSubmitted.Inc()

	e.log.Info().
		Str("side", sig.Side.String()).
		Int("quantity", quantity).
		Float64("lvn_level", sig.LVNLevel).
		Msg("signal executed")

	e.pm.AddBracket(bracket)
	e.emit(Event{Kind: SignalExecuted, BracketID: bracket.ID, Side: sig.Side, LVNLevel: sig.LVNLevel})

	if e.cfg.Mode == Simulation {
		if err := e.simulateEntryFillLocked(ctx, bracket.ID, sig.Price); err != nil {
			return "", err
		}
	}
	return bracket.ID, nil
}

// simulateEntryFillLocked fills the entry immediately and places the exits.
func (e *Engine) simulateEntryFillLocked(ctx context.Context, bracketID string, fillPrice float64) error {
	bracket := e.pm.Bracket(bracketID)
	if bracket == nil {
		return fmt.Errorf("simulate fill: bracket %q not found", bracketID)
	}

	side := bracket.PositionSide()
	quantity := bracket.Entry.Quantity

	e.pm.RecordEntryFill(bracketID, fillPrice, quantity, side)
	bracket.Entry.RecordFill(quantity, fillPrice)
	bracket.SetExitOrders(fillPrice, e.cfg.TakeProfit, e.cfg.StopBuffer)

	exitSide := side.Opposite()
	stopID, err := e.broker.SubmitStopOrder(ctx, e.cfg.Symbol, exitSide, quantity, bracket.StopLoss.StopPrice)
	if err != nil {
		return fmt.Errorf("submit stop: %w", err)
	}
	bracket.StopLoss.BrokerOrderID = stopID
	bracket.StopLoss.UpdateState(Working)

	targetID, err := e.broker.SubmitLimitOrder(ctx, e.cfg.Symbol, exitSide, quantity, bracket.TakeProfit.LimitPrice)
	if err != nil {
		return fmt.Errorf("submit target: %w", err)
	}
	bracket.TakeProfit.BrokerOrderID = targetID
	bracket.TakeProfit.UpdateState(Working)

	e.log.Info().
		Float64("stop", bracket.StopLoss.StopPrice).
		Float64("target", bracket.TakeProfit.LimitPrice).
		Msg("bracket orders placed")

	e.emit(Event{Kind: EntryFilled, BracketID: bracketID, FillPrice: fillPrice, Quantity: quantity})
	return nil
}

// UpdateTrailingStops ratchets every open bracket's stop and pushes the
// change to the broker.
func (e *Engine) UpdateTrailingStops(ctx context.Context, price float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, b := range e.pm.ActiveBrackets() {
		if b.State != PositionOpen {
			continue
		}
		newStop, moved := b.UpdateTrailingStop(price, e.cfg.TrailingStop)
		if !moved {
			continue
		}
		if b.StopLoss.BrokerOrderID != "" {
			if err := e.broker.ModifyOrder(ctx, b.StopLoss.BrokerOrderID, &newStop, nil); err != nil {
				return fmt.Errorf("modify stop: %w", err)
			}
		}
		e.log.Debug().Str("bracket_id", b.ID).Float64("stop", newStop).Msg("trailing stop updated")
		e.emit(Event{Kind: TrailingStopUpdated, BracketID: b.ID, NewStop: newStop})
	}
	return nil
}

// CheckExitTriggers reports brackets whose stop or target the price hit.
// Simulation mode calls ProcessExitFill with each trigger.
func (e *Engine) CheckExitTriggers(price float64) []ExitTrigger {
	e.mu.Lock()
	defer e.mu.Unlock()

	var exits []ExitTrigger
	for _, b := range e.pm.ActiveBrackets() {
		if b.State != PositionOpen {
			continue
		}
		side := b.PositionSide()
		if b.StopLoss != nil {
			hit := price <= b.StopLoss.StopPrice
			if side == Sell {
				hit = price >= b.StopLoss.StopPrice
			}
			if hit {
				exits = append(exits, ExitTrigger{BracketID: b.ID, Price: b.StopLoss.StopPrice, ExitType: "STOP"})
				continue
			}
		}
		if b.TakeProfit != nil {
			hit := price >= b.TakeProfit.LimitPrice
			if side == Sell {
				hit = price <= b.TakeProfit.LimitPrice
			}
			if hit {
				exits = append(exits, ExitTrigger{BracketID: b.ID, Price: b.TakeProfit.LimitPrice, ExitType: "TARGET"})
			}
		}
	}
	return exits
}

// ProcessExitFill realizes the exit and evaluates the daily limits.
func (e *Engine) ProcessExitFill(ctx context.Context, bracketID string, fillPrice float64, exitType string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.pm.RecordExitFill(bracketID, fillPrice, exitType)
	if !ok {
		return
	}
	metrics.NetPosition.Set(float64(e.pm.NetPosition()))
	e.log.Info().
		Str("exit_type", exitType).
		Float64("price", fillPrice).
		Float64("pnl_points", rec.PnLPoints).
		Float64("pnl_dollars", rec.PnLPoints*e.cfg.PointValue).
		Msg("exit filled")

	e.emit(Event{Kind: ExitFilled, BracketID: bracketID, FillPrice: fillPrice, PnLPoints: rec.PnLPoints, ExitType: exitType})
	metrics.TradesClosed.WithLabelValues(exitType).Inc()
	metrics.DailyPnLPoints.Set(e.pm.DailyPnLPoints())
	metrics.Balance.Set(e.pm.RunningBalance())

	if e.journal != nil {
		direction := "LONG"
		if rec.Side == Sell {
			direction = "SHORT"
		}
		err := e.journal.RecordTrade(journal.TradeRecord{
			TradeID:    rec.BracketID,
			Symbol:     e.cfg.Symbol,
			Direction:  direction,
			Quantity:   rec.Quantity,
			EntryPrice: rec.EntryPrice,
			ExitPrice:  rec.ExitPrice,
			EntryTime:  rec.EntryTime,
			ExitTime:   rec.ExitTime,
			PnLPoints:  rec.PnLPoints,
			PnLDollars: rec.PnLPoints * e.cfg.PointValue * float64(rec.Quantity),
			LVNLevel:   rec.LVNLevel,
			ExitType:   exitType,
		})
		if err != nil {
			e.log.Warn().Err(err).Str("bracket_id", bracketID).Msg("journal write failed")
		}
	}

	e.checkDailyLimitLocked(ctx)
}

func (e *Engine) checkDailyLimitLocked(ctx context.Context) {
	dailyPnL := e.pm.DailyPnLPoints()
	if !e.dailyLimitHit && dailyPnL <= -e.cfg.DailyLossLimit {
		e.dailyLimitHit = true
		e.log.Warn().
			Float64("daily_pnl", dailyPnL).
			Float64("limit", e.cfg.DailyLossLimit).
			Msg("daily loss limit reached")
		e.emit(Event{Kind: DailyLimitReached, PnLPoints: dailyPnL})
		if e.cfg.FlattenOnLimit {
			if err := e.flattenAllLocked(ctx, "Daily loss limit"); err != nil {
				e.emit(Event{Kind: ExecutionError, Message: err.Error()})
			}
		}
	}

	losses := e.pm.DailySummary().Losses
	if !e.maxLossesHit && losses >= e.cfg.MaxDailyLosses {
		e.maxLossesHit = true
		e.log.Warn().
			Int("losses", losses).
			Int("limit", e.cfg.MaxDailyLosses).
			Msg("max daily losses reached")
		e.emit(Event{Kind: MaxLossesReached, LossCount: losses})
	}
}

// IsDailyLimitHit reports whether the point loss limit tripped today.
func (e *Engine) IsDailyLimitHit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dailyLimitHit
}

// IsMaxLossesHit reports whether the losing-trade cap tripped today.
func (e *Engine) IsMaxLossesHit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxLossesHit
}

// IsTradingStopped reports whether either daily gate has tripped.
func (e *Engine) IsTradingStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dailyLimitHit || e.maxLossesHit
}

// FlattenAll cancels working orders and market-closes the net position.
func (e *Engine) FlattenAll(ctx context.Context, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flattenAllLocked(ctx, reason)
}

func (e *Engine) flattenAllLocked(ctx context.Context, reason string) error {
	e.log.Info().Str("reason", reason).Msg("flattening all positions")

	if err := e.broker.CancelAllOrders(ctx); err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}

	if position := e.pm.NetPosition(); position != 0 {
		side := Sell
		if position < 0 {
			side = Buy
		}
		if _, err := e.broker.SubmitMarketOrder(ctx, e.cfg.Symbol, side, abs(position)); err != nil {
			return fmt.Errorf("flatten position: %w", err)
		}
	}

	e.emit(Event{Kind: PositionFlattened, Reason: reason})
	return nil
}

// PositionManager exposes position and P&L state. Callers must not retain
// it across engine calls.
func (e *Engine) PositionManager() *PositionManager { return e.pm }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// DailyPnL is today's realized P&L in points.
func (e *Engine) DailyPnL() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pm.DailyPnLPoints()
}

// Balance is the running tracking balance.
func (e *Engine) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pm.RunningBalance()
}

// ResetDaily clears the limits and the session tally for a new day.
func (e *Engine) ResetDaily() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pm.ResetDaily()
	e.dailyLimitHit = false
	e.maxLossesHit = false
	e.log.Info().Msg("reset for new trading day")
}

// Status logs the one-line position summary.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pm.StatsSummary()
}
