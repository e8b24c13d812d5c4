// stream/tradelog.go
package stream

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// TradeLogger appends live trading events to a CSV file, one row per
// entry, exit, stop move, or flatten. Rows are flushed immediately.
type TradeLogger struct {
	f *os.File
	w *csv.Writer
}

func NewTradeLogger(path string) (*TradeLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trade log %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	header := []string{"timestamp", "event_type", "direction", "price", "stop", "target", "pnl_points", "reason"}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write trade log header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush trade log header: %w", err)
	}
	return &TradeLogger{f: f, w: w}, nil
}

func (l *TradeLogger) Entry(ts time.Time, direction string, price, stop, target float64) error {
	return l.write(ts, "ENTRY", direction, fp(price), fp(stop), fp(target), "", "")
}

func (l *TradeLogger) Exit(ts time.Time, direction string, price, pnlPoints float64, reason string) error {
	return l.write(ts, "EXIT", direction, fp(price), "", "", fp(pnlPoints), reason)
}

func (l *TradeLogger) StopUpdate(ts time.Time, newStop float64) error {
	return l.write(ts, "STOP_UPDATE", "", "", fp(newStop), "", "", "")
}

func (l *TradeLogger) Flatten(ts time.Time, reason string) error {
	return l.write(ts, "FLATTEN", "", "", "", "", "", reason)
}

func (l *TradeLogger) write(ts time.Time, event, direction, price, stop, target, pnl, reason string) error {
	row := []string{ts.Format(time.RFC3339), event, direction, price, stop, target, pnl, reason}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *TradeLogger) Close() error {
	return l.f.Close()
}

func fp(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}
