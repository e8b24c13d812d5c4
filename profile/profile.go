// Package profile builds per-price volume profiles from trades and extracts
// low-volume nodes (LVNs): price buckets whose traded volume is
// disproportionately thin relative to the profile's average.
package profile

import (
	"math"
	"sort"
	"time"

	"github.com/quicktime/lvntrader/market"
)

// Config tunes volume-profile bucketing and LVN qualification.
type Config struct {
	// BucketWidth is the price bucket size in points (a tick multiple).
	BucketWidth float64 `yaml:"bucket_width" json:"bucket_width"`
	// Threshold is the volume/average ratio below which a bucket is an LVN.
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// DefaultConfig returns the NQ defaults: 0.5-point buckets, 15% threshold.
func DefaultConfig() Config {
	return Config{
		BucketWidth: 0.5,
		Threshold:   0.15,
	}
}

// Level is a low-volume node derived from one impulse leg's volume profile.
// ImpulseID is a back-reference, not ownership: the leg may be discarded
// while the level is still tracked for a retest.
type Level struct {
	ImpulseID   string           `json:"impulse_id"`
	Price       float64          `json:"price"`
	Volume      uint64           `json:"volume"`
	AvgVolume   float64          `json:"avg_volume"`
	VolumeRatio float64          `json:"volume_ratio"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Direction   market.Direction `json:"direction"`
	Symbol      string           `json:"symbol"`
}

// BucketKey maps a price to its integer bucket. Integer keys avoid
// floating-point bucket drift.
func BucketKey(price, width float64) int64 {
	return int64(math.Round(price / width))
}

// BucketPrice maps a bucket key back to its canonical price.
func BucketPrice(key int64, width float64) float64 {
	return float64(key) * width
}

// Extract computes the volume profile of the trades inside [start, end]
// (inclusive) and returns the qualifying LVNs sorted ascending by price.
// Empty input yields empty output.
//
// Both the batch pipeline and the live state machine call this same
// function, so the two paths always agree for identical inputs.
func Extract(trades []market.Trade, start, end time.Time, impulseID string, dir market.Direction, symbol string, cfg Config) []Level {
	volumeAt := make(map[int64]uint64)
	for _, t := range trades {
		if t.Time.Before(start) || t.Time.After(end) {
			continue
		}
		volumeAt[BucketKey(t.Price, cfg.BucketWidth)] += t.Size
	}
	if len(volumeAt) == 0 {
		return nil
	}

	var total uint64
	for _, v := range volumeAt {
		total += v
	}
	avg := float64(total) / float64(len(volumeAt))

	var levels []Level
	for key, vol := range volumeAt {
		ratio := float64(vol) / avg
		if ratio >= cfg.Threshold {
			continue
		}
		levels = append(levels, Level{
			ImpulseID:   impulseID,
			Price:       BucketPrice(key, cfg.BucketWidth),
			Volume:      vol,
			AvgVolume:   avg,
			VolumeRatio: ratio,
			Start:       start,
			End:         end,
			Direction:   dir,
			Symbol:      symbol,
		})
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}
