package levels

import (
	"time"

	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/profile"
)

// Value-area profile bucket width in points.
const profileBucketWidth = 1.0

// SessionClock converts event timestamps to exchange-local session minutes
// using a fixed UTC offset. Daylight saving is deliberately not modelled;
// the offset is configuration.
type SessionClock struct {
	// UTCOffsetHours is the exchange-local offset, e.g. -5 for ET standard.
	UTCOffsetHours int
}

// Local shifts a UTC timestamp into the session-local frame.
func (c SessionClock) Local(t time.Time) time.Time {
	return t.Add(time.Duration(c.UTCOffsetHours) * time.Hour)
}

// InRTH reports whether t falls in the regular session, 09:30-16:00 local.
func (c SessionClock) InRTH(t time.Time) bool {
	l := c.Local(t)
	m := l.Hour()*60 + l.Minute()
	return m >= 9*60+30 && m < 16*60
}

// InOvernight reports whether t falls in the overnight session,
// 18:00 through 09:30 local the next day.
func (c SessionClock) InOvernight(t time.Time) bool {
	l := c.Local(t)
	m := l.Hour()*60 + l.Minute()
	return m >= 18*60 || m < 9*60+30
}

// ComputeFromSession derives the next day's reference levels from a prior
// session's bars. rth supplies the prior-day extremes, close, and the
// value-area profile; overnight supplies the overnight extremes and may be
// empty.
func ComputeFromSession(date string, rth, overnight []market.Bar) DailyLevels {
	d := DailyLevels{Date: date}
	if len(rth) == 0 {
		return d
	}

	d.PDH, d.PDL = highLow(rth)
	d.PDC = rth[len(rth)-1].Close
	d.SessionHigh, d.SessionLow = d.PDH, d.PDL

	va := profile.ComputeValueAreaFromBars(rth, profileBucketWidth)
	d.POC, d.VAH, d.VAL = va.POC, va.VAH, va.VAL

	if len(overnight) > 0 {
		d.ONH, d.ONL = highLow(overnight)
	}
	return d
}

// ApproximateFromRange derives levels when no volume profile is available:
// the value area is taken as 30% of the session range either side of its
// midpoint.
func ApproximateFromRange(date string, high, low, close float64) DailyLevels {
	mid := (high + low) / 2
	band := (high - low) * 0.30
	return DailyLevels{
		Date:        date,
		PDH:         high,
		PDL:         low,
		PDC:         close,
		POC:         mid,
		VAH:         mid + band,
		VAL:         mid - band,
		SessionHigh: high,
		SessionLow:  low,
	}
}

func highLow(bars []market.Bar) (high, low float64) {
	high, low = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}
