package heatmap

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vault-md/vaultheat/internal/metrics"
)

const (
	chartWidth  = "1100px"
	chartHeight = "260px"
	weekLayout  = "Jan 2"
)

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ChartOptions controls what BuildChart draws.
type ChartOptions struct {
	Kind  metrics.Kind
	Year  string
	Now   time.Time
	Title string
}

// Grid is the week by weekday layout of a date range. Column 0 is the week
// containing Start.
type Grid struct {
	Start time.Time
	End   time.Time
	Weeks []string
	Cells []Cell
	Max   float64
}

// Cell is one day of the grid.
type Cell struct {
	Week    int
	Weekday int
	Day     Day
	Tooltip string
}

// BuildGrid lays series out in GitHub style columns, one per week.
func BuildGrid(series map[string]float64, kind metrics.Kind, start, end time.Time) Grid {
	firstSunday := start.AddDate(0, 0, -int(start.Weekday()))

	g := Grid{Start: start, End: end}
	for _, day := range Days(series, start, end) {
		week := int(day.Date.Sub(firstSunday).Hours()/24+0.5) / 7
		for len(g.Weeks) <= week {
			g.Weeks = append(g.Weeks, firstSunday.AddDate(0, 0, 7*len(g.Weeks)).Format(weekLayout))
		}
		if day.Value > g.Max {
			g.Max = day.Value
		}
		g.Cells = append(g.Cells, Cell{
			Week:    week,
			Weekday: int(day.Date.Weekday()),
			Day:     day,
			Tooltip: Tooltip(kind, day.Date, day.Value),
		})
	}
	return g
}

// BuildChart creates the heatmap chart for series.
func BuildChart(series map[string]float64, o ChartOptions) (*charts.HeatMap, error) {
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}
	start, end, err := DateRange(o.Year, now)
	if err != nil {
		return nil, err
	}

	grid := BuildGrid(series, o.Kind, start, end)
	scale := NewColorScale(grid.Max)

	title := o.Title
	if title == "" {
		title = "Vault activity"
	}
	subtitle := fmt.Sprintf("%s, %s to %s", o.Kind, start.Format(TooltipDateLayout), end.Format(TooltipDateLayout))

	data := make([]opts.HeatMapData, 0, len(grid.Cells))
	for _, c := range grid.Cells {
		data = append(data, opts.HeatMapData{
			Name:  c.Tooltip,
			Value: []any{c.Week, c.Weekday, c.Day.Value},
		})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item", Formatter: "{b}"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category", Data: grid.Weeks,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
			AxisLabel: &opts.AxisLabel{Interval: "3"},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "category", Data: weekdays,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Type:   "piecewise",
			Pieces: visualPieces(scale),
			Orient: "horizontal", Left: "center", Bottom: "2%",
		}),
	)
	hm.AddSeries(string(o.Kind), data)

	return hm, nil
}

// visualPieces turns the thresholds of s into one piece per colour, matching
// ColorScale.Level. Empty days share the lowest colour. A zero bound is
// written as the smallest float32, since omitempty drops zero.
func visualPieces(s ColorScale) []opts.Piece {
	t := s.Thresholds
	low, mid, peak := t[1], t[2], s.Max()

	nonZero := func(v float64) float32 {
		if v == 0 {
			return math.SmallestNonzeroFloat32
		}
		return float32(v)
	}

	first := opts.Piece{Lte: float32(low), Color: s.Colors[0]}
	if low <= 0 {
		first = opts.Piece{Lt: math.SmallestNonzeroFloat32, Color: s.Colors[0]}
	}
	pieces := []opts.Piece{first}
	if mid > low {
		pieces = append(pieces, opts.Piece{Gt: nonZero(low), Lte: float32(mid), Color: s.Colors[1]})
	}
	if peak > mid {
		pieces = append(pieces, opts.Piece{Gt: nonZero(mid), Lt: float32(peak), Color: s.Colors[2]})
	}
	if peak > 0 {
		pieces = append(pieces, opts.Piece{Gte: float32(peak), Color: s.Colors[3]})
	}
	return pieces
}

// Render writes a standalone HTML page with the heatmap of series to w.
func Render(w io.Writer, series map[string]float64, o ChartOptions) error {
	hm, err := BuildChart(series, o)
	if err != nil {
		return err
	}
	if err := hm.Render(w); err != nil {
		return fmt.Errorf("rendering heatmap: %w", err)
	}
	return nil
}
