package heatmap

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/metrics"
)

const (
	monthLayout   = "Jan 2006"
	levelGlyph    = "■"
	emptyGlyph    = "·"
	minPathWidth  = 20
	fixedColWidth = 40
)

// MonthTotal is the sum of one calendar month.
type MonthTotal struct {
	Month      time.Time
	Total      float64
	ActiveDays int
}

// MonthlyTotals sums series per month over the range, oldest first.
func MonthlyTotals(series map[string]float64, start, end time.Time) []MonthTotal {
	var out []MonthTotal
	for _, day := range Days(series, start, end) {
		month := time.Date(day.Date.Year(), day.Date.Month(), 1, 0, 0, 0, 0, day.Date.Location())
		if len(out) == 0 || !out[len(out)-1].Month.Equal(month) {
			out = append(out, MonthTotal{Month: month})
		}
		cur := &out[len(out)-1]
		cur.Total += day.Value
		if day.Value > 0 {
			cur.ActiveDays++
		}
	}
	return out
}

// TopDays returns the n most active days of series, highest first. Ties are
// broken by date, newest first.
func TopDays(series map[string]float64, n int) []Day {
	days := make([]Day, 0, len(series))
	for key, v := range series {
		if v <= 0 {
			continue
		}
		date, err := activity.ParseDateKey(key)
		if err != nil {
			continue
		}
		days = append(days, Day{Date: date, Key: key, Value: v})
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].Value != days[j].Value {
			return days[i].Value > days[j].Value
		}
		return days[i].Key > days[j].Key
	})
	if n >= 0 && len(days) > n {
		days = days[:n]
	}
	return days
}

// WriteSummary renders the monthly totals of series for the range to w.
func WriteSummary(w io.Writer, kind metrics.Kind, series map[string]float64, start, end time.Time) {
	months := MonthlyTotals(series, start, end)

	var peak float64
	for _, m := range months {
		if m.Total > peak {
			peak = m.Total
		}
	}
	scale := NewColorScale(peak)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Month", "Total", "Active days", "Level"})

	var total float64
	for _, m := range months {
		total += m.Total
		t.AppendRow(table.Row{m.Month.Format(monthLayout), FormatValue(kind, m.Total), m.ActiveDays, levelBar(scale.Level(m.Total), len(scale.Colors))})
	}
	t.AppendFooter(table.Row{"Total", FormatValue(kind, total), "", ""})
	t.Render()
}

// WriteTopDays renders the n most active days to w.
func WriteTopDays(w io.Writer, kind metrics.Kind, series map[string]float64, n int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Date", string(kind), "Summary"})

	for _, d := range TopDays(series, n) {
		t.AppendRow(table.Row{d.Key, FormatValue(kind, d.Value), Tooltip(kind, d.Date, d.Value)})
	}
	t.Render()
}

// WriteCheckpoints renders one row per tracked file. Paths are truncated to
// fit termWidth.
func WriteCheckpoints(w io.Writer, kinds []metrics.Kind, checkpoints map[string]activity.FileCheckpoint, termWidth int) {
	paths := make([]string, 0, len(checkpoints))
	for p := range checkpoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	pathWidth := termWidth - fixedColWidth - 12*len(kinds)
	if pathWidth < minPathWidth {
		pathWidth = minPathWidth
	}

	header := table.Row{"Path", "Modified"}
	for _, k := range kinds {
		header = append(header, string(k))
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)

	for _, p := range paths {
		cp := checkpoints[p]
		modified := "-"
		if cp.MTime > 0 {
			modified = time.UnixMilli(cp.MTime).Format("2006-01-02 15:04")
		}
		row := table.Row{runewidth.Truncate(p, pathWidth, "..."), modified}
		for _, k := range kinds {
			if v, ok := cp.Value(k); ok {
				row = append(row, FormatValue(k, v))
			} else {
				row = append(row, "-")
			}
		}
		t.AppendRow(row)
	}
	t.Render()
}

func levelBar(level, levels int) string {
	return strings.Repeat(levelGlyph, level) + strings.Repeat(emptyGlyph, levels-level)
}
