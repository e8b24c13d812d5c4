// Package journal persists trades, signals, and daily summaries.
package journal

import "time"

// TradeRecord is one completed round trip.
type TradeRecord struct {
	TradeID    string
	Symbol     string
	Direction  string
	Quantity   int
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnLPoints  float64
	PnLDollars float64
	LVNLevel   float64
	ExitType   string
}

// SignalRecord is a retest signal, whether or not it became a trade.
type SignalRecord struct {
	SignalID   string
	Time       time.Time
	Symbol     string
	Direction  string
	Price      float64
	LevelPrice float64
	Delta      int64
	ImpulseID  string
}

// DailySummary is the end-of-session tally.
type DailySummary struct {
	Date        string
	Trades      int
	Wins        int
	Losses      int
	Breakevens  int
	GrossPnL    float64
	NetPnL      float64
	MaxDrawdown float64
	Balance     float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSignal(SignalRecord) error
	RecordDailySummary(DailySummary) error
	Close() error
}
