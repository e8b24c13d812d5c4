// journal/csv.go
package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVJournal writes trades, signals and daily summaries to three CSV
// files under a single directory. Rows are flushed as they are written
// so a crash loses at most the current record.
type CSVJournal struct {
	tradeFile   *os.File
	signalFile  *os.File
	summaryFile *os.File

	trades    *csv.Writer
	signals   *csv.Writer
	summaries *csv.Writer
}

// NewCSVJournal creates dir if needed and opens trades.csv,
// signals.csv and daily_summary.csv inside it, writing header rows.
func NewCSVJournal(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir %s: %w", dir, err)
	}

	j := &CSVJournal{}

	var err error
	j.tradeFile, j.trades, err = newCSVFile(filepath.Join(dir, "trades.csv"),
		[]string{"trade_id", "symbol", "direction", "quantity", "entry_price",
			"exit_price", "entry_time", "exit_time", "pnl_points", "pnl_dollars",
			"lvn_level", "exit_type"})
	if err != nil {
		return nil, err
	}
	j.signalFile, j.signals, err = newCSVFile(filepath.Join(dir, "signals.csv"),
		[]string{"signal_id", "time", "symbol", "direction", "price",
			"level_price", "delta", "impulse_id"})
	if err != nil {
		j.Close()
		return nil, err
	}
	j.summaryFile, j.summaries, err = newCSVFile(filepath.Join(dir, "daily_summary.csv"),
		[]string{"date", "trades", "wins", "losses", "breakevens",
			"gross_pnl", "net_pnl", "max_drawdown", "balance"})
	if err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func newCSVFile(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("write header %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("flush header %s: %w", path, err)
	}
	return f, w, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	row := []string{
		t.TradeID,
		t.Symbol,
		t.Direction,
		strconv.Itoa(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.EntryTime.Format(time.RFC3339),
		t.ExitTime.Format(time.RFC3339),
		f(t.PnLPoints),
		f(t.PnLDollars),
		f(t.LVNLevel),
		t.ExitType,
	}
	return writeRow(j.trades, row)
}

func (j *CSVJournal) RecordSignal(s SignalRecord) error {
	row := []string{
		s.SignalID,
		s.Time.Format(time.RFC3339),
		s.Symbol,
		s.Direction,
		f(s.Price),
		f(s.LevelPrice),
		strconv.FormatInt(s.Delta, 10),
		s.ImpulseID,
	}
	return writeRow(j.signals, row)
}

func (j *CSVJournal) RecordDailySummary(d DailySummary) error {
	row := []string{
		d.Date,
		strconv.Itoa(d.Trades),
		strconv.Itoa(d.Wins),
		strconv.Itoa(d.Losses),
		strconv.Itoa(d.Breakevens),
		f(d.GrossPnL),
		f(d.NetPnL),
		f(d.MaxDrawdown),
		f(d.Balance),
	}
	return writeRow(j.summaries, row)
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	var first error
	for _, f := range []*os.File{j.tradeFile, j.signalFile, j.summaryFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// f formats a float with fixed six decimal places for stable diffs.
func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
