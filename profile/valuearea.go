package profile

import (
	"sort"

	"github.com/quicktime/lvntrader/market"
)

// ValueArea is the point of control plus the price band holding 70% of the
// session's volume, expanded outward from the POC.
type ValueArea struct {
	POC float64
	VAH float64
	VAL float64
}

const valueAreaFraction = 0.70

// ComputeValueArea builds a volume-at-price histogram from trades and
// returns the POC and value-area bounds. A zero value is returned for
// empty input.
func ComputeValueArea(trades []market.Trade, bucketWidth float64) ValueArea {
	volumeAt := make(map[int64]uint64)
	for _, t := range trades {
		volumeAt[BucketKey(t.Price, bucketWidth)] += t.Size
	}
	return valueAreaFromHistogram(volumeAt, bucketWidth)
}

// ComputeValueAreaFromBars approximates the histogram from bars by
// spreading each bar's volume across its OHLC prices. Used when only the
// bar series survives (day cache, prior-session levels).
func ComputeValueAreaFromBars(bars []market.Bar, bucketWidth float64) ValueArea {
	volumeAt := make(map[int64]uint64)
	for _, b := range bars {
		quarter := b.Volume / 4
		rem := b.Volume % 4
		for i, p := range [4]float64{b.Open, b.High, b.Low, b.Close} {
			v := quarter
			if i == 0 {
				v += rem
			}
			volumeAt[BucketKey(p, bucketWidth)] += v
		}
	}
	return valueAreaFromHistogram(volumeAt, bucketWidth)
}

func valueAreaFromHistogram(volumeAt map[int64]uint64, bucketWidth float64) ValueArea {
	if len(volumeAt) == 0 {
		return ValueArea{}
	}

	keys := make([]int64, 0, len(volumeAt))
	var total uint64
	for k, v := range volumeAt {
		keys = append(keys, k)
		total += v
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	pocIdx := 0
	for i, k := range keys {
		if volumeAt[k] > volumeAt[keys[pocIdx]] {
			pocIdx = i
		}
	}

	target := uint64(float64(total) * valueAreaFraction)
	lo, hi := pocIdx, pocIdx
	acc := volumeAt[keys[pocIdx]]

	// Expand from POC toward the heavier neighbor until 70% is covered.
	for acc < target {
		canLower := lo > 0
		canHigher := hi < len(keys)-1
		if !canLower && !canHigher {
			break
		}

		var lower, upper uint64
		if canLower {
			lower = volumeAt[keys[lo-1]]
		}
		if canHigher {
			upper = volumeAt[keys[hi+1]]
		}

		if canLower && (lower >= upper || !canHigher) {
			lo--
			acc += lower
		} else {
			hi++
			acc += upper
		}
	}

	return ValueArea{
		POC: BucketPrice(keys[pocIdx], bucketWidth),
		VAL: BucketPrice(keys[lo], bucketWidth),
		VAH: BucketPrice(keys[hi], bucketWidth),
	}
}
