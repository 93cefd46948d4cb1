package activity

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vault-md/vaultheat/internal/metrics"
)

// DateLayout is the calendar date format of ledger keys.
const DateLayout = "2006-01-02"

// ErrInvalidDelta is returned when a negative or non-finite delta is folded.
var ErrInvalidDelta = errors.New("activity: delta must be a finite non-negative number")

// FoldDelta adds delta to table[date][kind], creating missing entries at 0.
// The ledger only ever grows.
func FoldDelta(table map[string]DailyActivity, date string, kind metrics.Kind, delta float64) error {
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: %v for %s on %s", ErrInvalidDelta, delta, kind, date)
	}

	day, ok := table[date]
	if !ok {
		day = make(DailyActivity)
		table[date] = day
	}
	day[kind] += delta
	return nil
}

// DateKey returns the calendar date of mtime (unix milliseconds) in loc.
func DateKey(mtime int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(mtime).In(loc).Format(DateLayout)
}

// ParseDateKey parses a ledger key.
func ParseDateKey(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}

// ProjectSeries extracts the date → value series of one kind, keeping only
// dates where that kind has a non-zero total.
func ProjectSeries(table map[string]DailyActivity, kind metrics.Kind) map[string]float64 {
	series := make(map[string]float64)
	for date, totals := range table {
		if value, ok := totals[kind]; ok && value != 0 {
			series[date] = value
		}
	}
	return series
}
