package exec

import (
	"fmt"
	"time"
)

// TradeRecord is one completed round trip.
type TradeRecord struct {
	BracketID  string    `json:"bracket_id"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Side       Side      `json:"side"`
	Quantity   int       `json:"quantity"`
	PnLPoints  float64   `json:"pnl_points"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	LVNLevel   float64   `json:"lvn_level"`
	ExitType   string    `json:"exit_type"`
}

// DailyPnL is the per-session tally.
type DailyPnL struct {
	Date        string  `json:"date"`
	GrossPnL    float64 `json:"gross_pnl"`
	TradeCount  int     `json:"trade_count"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`
	MaxDrawdown float64 `json:"max_drawdown"`
	PeakBalance float64 `json:"peak_balance"`
}

const maxTradeHistory = 1000

// PositionManager tracks net position, active brackets, and P&L. It is not
// goroutine safe; the Engine serializes access.
type PositionManager struct {
	symbol          string
	netPosition     int
	avgEntryPrice   float64
	hasEntry        bool
	activeBrackets  []*BracketOrder
	tradeHistory    []TradeRecord
	daily           DailyPnL
	runningBalance  float64
	startingBalance float64
	pointValue      float64
}

// NewPositionManager starts flat with the given balance.
func NewPositionManager(symbol string, startingBalance, pointValue float64) *PositionManager {
	return &PositionManager{
		symbol:          symbol,
		runningBalance:  startingBalance,
		startingBalance: startingBalance,
		pointValue:      pointValue,
		daily:           DailyPnL{Date: time.Now().UTC().Format("2006-01-02")},
	}
}

func (p *PositionManager) NetPosition() int { return p.netPosition }

func (p *PositionManager) IsFlat() bool { return p.netPosition == 0 }

// AvgEntryPrice returns the weighted entry price of the open position.
func (p *PositionManager) AvgEntryPrice() (float64, bool) {
	return p.avgEntryPrice, p.hasEntry
}

func (p *PositionManager) RunningBalance() float64 { return p.runningBalance }

// DailyPnLPoints is today's realized P&L in points.
func (p *PositionManager) DailyPnLPoints() float64 { return p.daily.GrossPnL }

// DailyPnLDollars is today's realized P&L in dollars.
func (p *PositionManager) DailyPnLDollars() float64 {
	return p.daily.GrossPnL * p.pointValue
}

// Drawdown from the starting balance, zero when above water.
func (p *PositionManager) Drawdown() float64 {
	if p.runningBalance < p.startingBalance {
		return p.startingBalance - p.runningBalance
	}
	return 0
}

// AddBracket registers a new bracket order.
func (p *PositionManager) AddBracket(b *BracketOrder) {
	p.activeBrackets = append(p.activeBrackets, b)
}

// Bracket finds an active bracket by id.
func (p *PositionManager) Bracket(id string) *BracketOrder {
	for _, b := range p.activeBrackets {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// ActiveBrackets returns all registered brackets, terminal ones included
// until CleanupCompleted runs.
func (p *PositionManager) ActiveBrackets() []*BracketOrder {
	return p.activeBrackets
}

// RecordEntryFill updates net position and the weighted average entry.
func (p *PositionManager) RecordEntryFill(bracketID string, fillPrice float64, quantity int, side Side) {
	signed := quantity
	if side == Sell {
		signed = -quantity
	}

	switch {
	case p.netPosition == 0:
		p.avgEntryPrice = fillPrice
		p.hasEntry = true
	case (p.netPosition > 0) == (signed > 0):
		old := p.avgEntryPrice * float64(abs(p.netPosition))
		p.avgEntryPrice = (old + fillPrice*float64(quantity)) / float64(abs(p.netPosition)+quantity)
	}
	p.netPosition += signed

	if b := p.Bracket(bracketID); b != nil {
		b.EntryPrice = fillPrice
		b.filled = true
	}
}

// RecordExitFill realizes the bracket's P&L and returns the trade record.
// Returns false when the bracket is unknown or never filled.
func (p *PositionManager) RecordExitFill(bracketID string, fillPrice float64, exitType string) (TradeRecord, bool) {
	b := p.Bracket(bracketID)
	if b == nil || !b.filled {
		return TradeRecord{}, false
	}

	side := b.PositionSide()
	quantity := b.Entry.Quantity
	pnlPoints := (fillPrice - b.EntryPrice) * float64(quantity)
	if side == Sell {
		pnlPoints = (b.EntryPrice - fillPrice) * float64(quantity)
	}

	p.runningBalance += pnlPoints * p.pointValue
	p.daily.GrossPnL += pnlPoints
	p.daily.TradeCount++
	if pnlPoints > 0 {
		p.daily.Wins++
		if pnlPoints > p.daily.LargestWin {
			p.daily.LargestWin = pnlPoints
		}
	} else {
		p.daily.Losses++
		if pnlPoints < p.daily.LargestLoss {
			p.daily.LargestLoss = pnlPoints
		}
	}

	if p.runningBalance > p.daily.PeakBalance {
		p.daily.PeakBalance = p.runningBalance
	}
	if dd := p.daily.PeakBalance - p.runningBalance; dd > p.daily.MaxDrawdown {
		p.daily.MaxDrawdown = dd
	}

	signed := quantity
	if side == Sell {
		signed = -quantity
	}
	p.netPosition -= signed
	if p.netPosition == 0 {
		p.hasEntry = false
		p.avgEntryPrice = 0
	}

	rec := TradeRecord{
		BracketID:  bracketID,
		EntryPrice: b.EntryPrice,
		ExitPrice:  fillPrice,
		Side:       side,
		Quantity:   quantity,
		PnLPoints:  pnlPoints,
		EntryTime:  b.CreatedAt,
		ExitTime:   time.Now().UTC(),
		LVNLevel:   b.LVNLevel,
		ExitType:   exitType,
	}
	p.tradeHistory = append(p.tradeHistory, rec)
	if len(p.tradeHistory) > maxTradeHistory {
		p.tradeHistory = p.tradeHistory[1:]
	}

	b.CompleteAt(fillPrice)
	return rec, true
}

// CleanupCompleted drops terminal brackets.
func (p *PositionManager) CleanupCompleted() {
	kept := p.activeBrackets[:0]
	for _, b := range p.activeBrackets {
		if !b.Terminal() {
			kept = append(kept, b)
		}
	}
	p.activeBrackets = kept
}

// UnrealizedPnL sums open P&L across filled brackets.
func (p *PositionManager) UnrealizedPnL(price float64) float64 {
	var total float64
	for _, b := range p.activeBrackets {
		if b.Terminal() {
			continue
		}
		if pnl, ok := b.UnrealizedPnL(price); ok {
			total += pnl
		}
	}
	return total
}

// TotalPnL is realized plus unrealized, in points.
func (p *PositionManager) TotalPnL(price float64) float64 {
	return p.daily.GrossPnL + p.UnrealizedPnL(price)
}

// ResetDaily starts a fresh session tally. The peak carries the current
// balance so drawdown measures from here.
func (p *PositionManager) ResetDaily() {
	p.daily = DailyPnL{
		Date:        time.Now().UTC().Format("2006-01-02"),
		PeakBalance: p.runningBalance,
	}
}

// TradeHistory returns completed trades, oldest first.
func (p *PositionManager) TradeHistory() []TradeRecord { return p.tradeHistory }

// DailySummary returns today's tally.
func (p *PositionManager) DailySummary() DailyPnL { return p.daily }

// WinRate is today's fraction of winning trades.
func (p *PositionManager) WinRate() float64 {
	if p.daily.TradeCount == 0 {
		return 0
	}
	return float64(p.daily.Wins) / float64(p.daily.TradeCount)
}

// StatsSummary is a one-line status string for periodic logging.
func (p *PositionManager) StatsSummary() string {
	return fmt.Sprintf("Balance: $%.2f | Day P&L: %.1f pts ($%.2f) | Trades: %d | WR: %.1f%%",
		p.runningBalance, p.daily.GrossPnL, p.DailyPnLDollars(), p.daily.TradeCount, p.WinRate()*100)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
