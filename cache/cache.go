// Package cache stores per-day session data as compressed JSON so
// replays and parameter sweeps can skip raw trade ingestion.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"

	"github.com/quicktime/lvntrader/levels"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/profile"
)

const fileSuffix = ".json.xz"

// SignalEntry is a retest signal as it was emitted during the day.
type SignalEntry struct {
	Time       time.Time `json:"time"`
	Direction  string    `json:"direction"`
	Price      float64   `json:"price"`
	LevelPrice float64   `json:"level_price"`
	Delta      int64     `json:"delta"`
	ImpulseID  string    `json:"impulse_id"`
}

// DayRecord is everything computed for one session date.
type DayRecord struct {
	Date        string             `json:"date"`
	Bars        []market.Bar       `json:"bars_1s"`
	LVNLevels   []profile.Level    `json:"lvn_levels"`
	DailyLevels levels.DailyLevels `json:"daily_levels"`
	Signals     []SignalEntry      `json:"signals"`
}

// Store reads and writes DayRecords under a single directory, one
// {date}.json.xz file per session.
type Store struct {
	dir string
	log zerolog.Logger
}

func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir, date+fileSuffix)
}

// Save writes rec to {date}.json.xz. The write goes through a temp
// file and rename so a crash never leaves a truncated record.
func (s *Store) Save(rec DayRecord) error {
	if rec.Date == "" {
		return fmt.Errorf("day record has no date")
	}

	tmp, err := os.CreateTemp(s.dir, rec.Date+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w, err := xz.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("xz writer: %w", err)
	}
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		tmp.Close()
		return fmt.Errorf("encode day %s: %w", rec.Date, err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finish xz stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(rec.Date)); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Load reads the record for one date.
func (s *Store) Load(date string) (DayRecord, error) {
	f, err := os.Open(s.path(date))
	if err != nil {
		return DayRecord{}, fmt.Errorf("open day %s: %w", date, err)
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return DayRecord{}, fmt.Errorf("xz reader for %s: %w", date, err)
	}
	var rec DayRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return DayRecord{}, fmt.Errorf("decode day %s: %w", date, err)
	}
	return rec, nil
}

// Dates returns every cached date sorted ascending.
func (s *Store) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		dates = append(dates, strings.TrimSuffix(name, fileSuffix))
	}
	sort.Strings(dates)
	return dates, nil
}

// LoadAll loads every cached day matching filter, oldest first. A day
// that fails to load is logged and skipped rather than aborting the
// whole run.
//
// Filter forms: empty matches everything, "start:end" is an inclusive
// date range, anything else matches dates equal to or containing it.
func (s *Store) LoadAll(filter string) ([]DayRecord, error) {
	dates, err := s.Dates()
	if err != nil {
		return nil, err
	}

	var days []DayRecord
	for _, date := range dates {
		if !matchDate(date, filter) {
			continue
		}
		rec, err := s.Load(date)
		if err != nil {
			s.log.Warn().Err(err).Str("date", date).Msg("skipping unreadable day cache")
			continue
		}
		days = append(days, rec)
	}
	return days, nil
}

// LoadLatest returns the most recent cached day. The second return is
// false when the cache is empty.
func (s *Store) LoadLatest() (DayRecord, bool, error) {
	dates, err := s.Dates()
	if err != nil {
		return DayRecord{}, false, err
	}
	if len(dates) == 0 {
		return DayRecord{}, false, nil
	}
	rec, err := s.Load(dates[len(dates)-1])
	if err != nil {
		return DayRecord{}, false, err
	}
	return rec, true, nil
}

func matchDate(date, filter string) bool {
	if filter == "" {
		return true
	}
	if start, end, ok := strings.Cut(filter, ":"); ok {
		return date >= start && date <= end
	}
	return date == filter || strings.Contains(date, filter)
}
