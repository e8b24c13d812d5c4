// journal/sqlite.go
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists trades, signals and daily summaries to a local
// sqlite3 database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) the database at path and
// ensures the schema exists.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordTrade(t TradeRecord) error {
	_, err := s.db.Exec(`INSERT INTO trades
		(trade_id, symbol, direction, quantity, entry_price, exit_price,
		 entry_time, exit_time, pnl_points, pnl_dollars, lvn_level, exit_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Direction, t.Quantity, t.EntryPrice, t.ExitPrice,
		t.EntryTime, t.ExitTime, t.PnLPoints, t.PnLDollars, t.LVNLevel, t.ExitType)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (s *SQLite) RecordSignal(sig SignalRecord) error {
	_, err := s.db.Exec(`INSERT INTO signals
		(signal_id, time, symbol, direction, price, level_price, delta, impulse_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.SignalID, sig.Time, sig.Symbol, sig.Direction, sig.Price,
		sig.LevelPrice, sig.Delta, sig.ImpulseID)
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", sig.SignalID, err)
	}
	return nil
}

func (s *SQLite) RecordDailySummary(d DailySummary) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO daily_summary
		(date, trades, wins, losses, breakevens, gross_pnl, net_pnl, max_drawdown, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Date, d.Trades, d.Wins, d.Losses, d.Breakevens,
		d.GrossPnL, d.NetPnL, d.MaxDrawdown, d.Balance)
	if err != nil {
		return fmt.Errorf("insert daily summary %s: %w", d.Date, err)
	}
	return nil
}

// ListTradesBetween returns all trades whose exit time falls inside
// [start, end], ordered oldest first.
func (s *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := s.db.Query(`SELECT trade_id, symbol, direction, quantity,
		entry_price, exit_price, entry_time, exit_time,
		pnl_points, pnl_dollars, lvn_level, exit_type
		FROM trades WHERE exit_time >= ? AND exit_time <= ?
		ORDER BY exit_time ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		err := rows.Scan(&t.TradeID, &t.Symbol, &t.Direction, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.EntryTime, &t.ExitTime,
			&t.PnLPoints, &t.PnLDollars, &t.LVNLevel, &t.ExitType)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DailySummaries returns every stored daily summary ordered by date.
func (s *SQLite) DailySummaries() ([]DailySummary, error) {
	rows, err := s.db.Query(`SELECT date, trades, wins, losses, breakevens,
		gross_pnl, net_pnl, max_drawdown, balance
		FROM daily_summary ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query daily summaries: %w", err)
	}
	defer rows.Close()

	var days []DailySummary
	for rows.Next() {
		var d DailySummary
		err := rows.Scan(&d.Date, &d.Trades, &d.Wins, &d.Losses, &d.Breakevens,
			&d.GrossPnL, &d.NetPnL, &d.MaxDrawdown, &d.Balance)
		if err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
