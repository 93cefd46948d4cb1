// Package heatmap renders daily activity series as a calendar heatmap, a
// terminal table and tooltip text.
package heatmap

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/config"
	"github.com/vault-md/vaultheat/internal/metrics"
)

// TooltipDateLayout is the date format used in tooltips.
const TooltipDateLayout = "January 2, 2006"

// Palette is the colour ramp from the lowest to the highest bucket.
var Palette = []string{"#14432a", "#166b34", "#37a446", "#4dd05a"}

// ErrInvalidYear is returned by DateRange for a year that is neither
// "Past year" nor a four digit year.
var ErrInvalidYear = errors.New("heatmap: invalid year")

// FormatValue renders value in the unit of kind.
func FormatValue(kind metrics.Kind, value float64) string {
	switch kind {
	case metrics.FileSize:
		if value <= 0 {
			return "0 B"
		}
		return humanize.IBytes(uint64(math.Round(value)))
	default:
		return humanize.Comma(int64(math.Round(value)))
	}
}

// Tooltip returns the hover text for one day.
func Tooltip(kind metrics.Kind, date time.Time, value float64) string {
	day := date.Format(TooltipDateLayout)
	if value == 0 {
		return "No changes on " + day
	}

	switch kind {
	case metrics.WordCount:
		return fmt.Sprintf("%s word %s on %s", FormatValue(kind, value), plural(value), day)
	case metrics.FileSize:
		return fmt.Sprintf("%s worth of file changes on %s", FormatValue(kind, value), day)
	default:
		return fmt.Sprintf("%s %s %s on %s", FormatValue(kind, value), kind, plural(value), day)
	}
}

func plural(value float64) string {
	if value == 1 {
		return "change"
	}
	return "changes"
}

// ColorScale maps values onto Palette with thresholds at 0, max/3, 2max/3
// and max.
type ColorScale struct {
	Thresholds []float64
	Colors     []string
}

// NewColorScale builds the scale for a series whose largest value is peak.
func NewColorScale(peak float64) ColorScale {
	return ColorScale{
		Thresholds: []float64{0, math.Floor(peak / 3), math.Floor(2 * peak / 3), peak},
		Colors:     Palette,
	}
}

// Max returns the upper bound of the scale.
func (s ColorScale) Max() float64 {
	return s.Thresholds[len(s.Thresholds)-1]
}

// Level returns the bucket index of value, 0 for empty days and 1 to
// len(Colors) otherwise.
func (s ColorScale) Level(value float64) int {
	if value <= 0 {
		return 0
	}
	level := 1
	for i := 1; i < len(s.Thresholds)-1; i++ {
		if value > s.Thresholds[i] {
			level = i + 1
		}
	}
	if value >= s.Max() {
		level = len(s.Colors)
	}
	return level
}

// DateRange returns the first and last day shown for year. "Past year"
// covers the 13 calendar months starting one year before now; a four digit
// year covers January 1 to December 31.
func DateRange(year string, now time.Time) (start, end time.Time, err error) {
	loc := now.Location()

	if year == "" || year == config.PastYear {
		from := now.AddDate(-1, 0, 0)
		start = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 13, -1)
		return start, end, nil
	}

	if len(year) != 4 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidYear, year)
	}
	y, convErr := strconv.Atoi(year)
	if convErr != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidYear, year)
	}
	start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	end = time.Date(y, time.December, 31, 0, 0, 0, 0, loc)
	return start, end, nil
}

// Day is one date of a series inside a range.
type Day struct {
	Date  time.Time
	Key   string
	Value float64
}

// Days expands series into one Day per calendar date from start to end
// inclusive, filling missing dates with 0.
func Days(series map[string]float64, start, end time.Time) []Day {
	var days []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(activity.DateLayout)
		days = append(days, Day{Date: d, Key: key, Value: series[key]})
	}
	return days
}
