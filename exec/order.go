// Package exec turns trading signals into bracket orders and enforces the
// daily risk limits.
package exec

import (
	"time"

	"github.com/quicktime/lvntrader/internal/id"
)

// Side of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the closing side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType of an order.
type OrderType int

const (
	Market OrderType = iota
	Limit
	Stop
	StopLimit
)

// OrderState tracks an order through its lifecycle.
type OrderState int

const (
	Pending OrderState = iota
	Submitted
	Working
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s OrderState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Submitted:
		return "SUBMITTED"
	case Working:
		return "WORKING"
	case PartiallyFilled:
		return "PARTIAL"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// Order is a single order leg.
type Order struct {
	ID              string     `json:"id"`
	BrokerOrderID   string     `json:"broker_order_id,omitempty"`
	Symbol          string     `json:"symbol"`
	Exchange        string     `json:"exchange"`
	Side            Side       `json:"side"`
	Type            OrderType  `json:"type"`
	Quantity        int        `json:"quantity"`
	FilledQuantity  int        `json:"filled_quantity"`
	LimitPrice      float64    `json:"limit_price,omitempty"`
	StopPrice       float64    `json:"stop_price,omitempty"`
	AvgFillPrice    float64    `json:"avg_fill_price,omitempty"`
	State           OrderState `json:"state"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MarketOrder builds a pending market order.
func MarketOrder(symbol, exchange string, side Side, quantity int) Order {
	now := time.Now().UTC()
	return Order{
		ID:        id.New(),
		Symbol:    symbol,
		Exchange:  exchange,
		Side:      side,
		Type:      Market,
		Quantity:  quantity,
		State:     Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StopOrder builds a pending stop order.
func StopOrder(symbol, exchange string, side Side, quantity int, stopPrice float64) Order {
	o := MarketOrder(symbol, exchange, side, quantity)
	o.Type = Stop
	o.StopPrice = stopPrice
	return o
}

// LimitOrder builds a pending limit order.
func LimitOrder(symbol, exchange string, side Side, quantity int, limitPrice float64) Order {
	o := MarketOrder(symbol, exchange, side, quantity)
	o.Type = Limit
	o.LimitPrice = limitPrice
	return o
}

// Terminal reports whether the order can no longer fill.
func (o *Order) Terminal() bool {
	return o.State == Filled || o.State == Cancelled || o.State == Rejected
}

// Active reports whether the order is live at the broker.
func (o *Order) Active() bool {
	return o.State == Submitted || o.State == Working || o.State == PartiallyFilled
}

// UpdateState transitions the order.
func (o *Order) UpdateState(s OrderState) {
	o.State = s
	o.UpdatedAt = time.Now().UTC()
}

// RecordFill folds a fill into the weighted average fill price.
func (o *Order) RecordFill(quantity int, price float64) {
	prev := o.AvgFillPrice * float64(o.FilledQuantity)
	o.FilledQuantity += quantity
	o.AvgFillPrice = (prev + price*float64(quantity)) / float64(o.FilledQuantity)
	if o.FilledQuantity >= o.Quantity {
		o.State = Filled
	} else {
		o.State = PartiallyFilled
	}
	o.UpdatedAt = time.Now().UTC()
}

// BracketState tracks a bracket through its lifecycle.
type BracketState int

const (
	PendingEntry BracketState = iota
	EntryWorking
	PositionOpen
	Exiting
	Complete
	BracketCancelled
)

func (s BracketState) String() string {
	switch s {
	case PendingEntry:
		return "PENDING_ENTRY"
	case EntryWorking:
		return "ENTRY_WORKING"
	case PositionOpen:
		return "POSITION_OPEN"
	case Exiting:
		return "EXITING"
	case Complete:
		return "COMPLETE"
	case BracketCancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// BracketOrder is an entry with its protective stop and target, anchored to
// the LVN level that produced the signal.
type BracketOrder struct {
	ID            string       `json:"id"`
	Entry         Order        `json:"entry"`
	StopLoss      *Order       `json:"stop_loss,omitempty"`
	TakeProfit    *Order       `json:"take_profit,omitempty"`
	State         BracketState `json:"state"`
	EntryPrice    float64      `json:"entry_price,omitempty"`
	ExitPrice     float64      `json:"exit_price,omitempty"`
	LVNLevel      float64      `json:"lvn_level"`
	RealizedPnL   float64      `json:"realized_pnl,omitempty"`
	HighWaterMark float64      `json:"high_water_mark,omitempty"`
	LowWaterMark  float64      `json:"low_water_mark,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
	filled        bool
}

// NewLongBracket creates a bracket entering long at market.
func NewLongBracket(symbol, exchange string, quantity int, lvnLevel float64) *BracketOrder {
	return &BracketOrder{
		ID:        id.New(),
		Entry:     MarketOrder(symbol, exchange, Buy, quantity),
		State:     PendingEntry,
		LVNLevel:  lvnLevel,
		CreatedAt: time.Now().UTC(),
	}
}

// NewShortBracket creates a bracket entering short at market.
func NewShortBracket(symbol, exchange string, quantity int, lvnLevel float64) *BracketOrder {
	b := NewLongBracket(symbol, exchange, quantity, lvnLevel)
	b.Entry.Side = Sell
	return b
}

// PositionSide is the direction of the position the bracket opens.
func (b *BracketOrder) PositionSide() Side { return b.Entry.Side }

// SetExitOrders creates the stop and target after the entry fills. The stop
// sits beyond the LVN level, not relative to the fill.
func (b *BracketOrder) SetExitOrders(entryPrice, takeProfitPts, stopBuffer float64) {
	b.EntryPrice = entryPrice
	b.filled = true

	long := b.Entry.Side == Buy
	var stopPrice, targetPrice float64
	if long {
		stopPrice = b.LVNLevel - stopBuffer
		targetPrice = entryPrice + takeProfitPts
		b.HighWaterMark = entryPrice
	} else {
		stopPrice = b.LVNLevel + stopBuffer
		targetPrice = entryPrice - takeProfitPts
		b.LowWaterMark = entryPrice
	}

	stop := StopOrder(b.Entry.Symbol, b.Entry.Exchange, b.Entry.Side.Opposite(), b.Entry.Quantity, stopPrice)
	target := LimitOrder(b.Entry.Symbol, b.Entry.Exchange, b.Entry.Side.Opposite(), b.Entry.Quantity, targetPrice)
	b.StopLoss = &stop
	b.TakeProfit = &target
	b.State = PositionOpen
}

// UpdateTrailingStop ratchets the stop behind the water mark. Returns the
// new stop price and true when it moved.
func (b *BracketOrder) UpdateTrailingStop(price, trailingPts float64) (float64, bool) {
	if b.StopLoss == nil || !b.filled {
		return 0, false
	}
	if b.Entry.Side == Buy {
		if price > b.HighWaterMark {
			b.HighWaterMark = price
		}
		newStop := b.HighWaterMark - trailingPts
		if newStop > b.StopLoss.StopPrice {
			b.StopLoss.StopPrice = newStop
			b.StopLoss.UpdatedAt = time.Now().UTC()
			return newStop, true
		}
		return 0, false
	}
	if price < b.LowWaterMark {
		b.LowWaterMark = price
	}
	newStop := b.LowWaterMark + trailingPts
	if newStop < b.StopLoss.StopPrice {
		b.StopLoss.StopPrice = newStop
		b.StopLoss.UpdatedAt = time.Now().UTC()
		return newStop, true
	}
	return 0, false
}

// CompleteAt closes the bracket and realizes P&L in points times quantity.
func (b *BracketOrder) CompleteAt(exitPrice float64) {
	now := time.Now().UTC()
	b.ExitPrice = exitPrice
	b.ClosedAt = &now
	b.State = Complete

	if b.filled {
		pnl := exitPrice - b.EntryPrice
		if b.Entry.Side == Sell {
			pnl = b.EntryPrice - exitPrice
		}
		b.RealizedPnL = pnl * float64(b.Entry.Quantity)
	}
}

// Terminal reports whether the bracket is finished.
func (b *BracketOrder) Terminal() bool {
	return b.State == Complete || b.State == BracketCancelled
}

// UnrealizedPnL returns open P&L in points times quantity, or false when
// the entry has not filled.
func (b *BracketOrder) UnrealizedPnL(price float64) (float64, bool) {
	if !b.filled {
		return 0, false
	}
	pnl := price - b.EntryPrice
	if b.Entry.Side == Sell {
		pnl = b.EntryPrice - price
	}
	return pnl * float64(b.Entry.Quantity), true
}
