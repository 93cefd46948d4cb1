package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vault-md/vaultheat/internal/config"
	"github.com/vault-md/vaultheat/internal/heatmap"
	"github.com/vault-md/vaultheat/internal/logging"
	"github.com/vault-md/vaultheat/internal/metrics"
	"github.com/vault-md/vaultheat/internal/tracker"
)

// Server wraps the MCP server with heatmap-specific tools
type Server struct {
	server   *mcp.Server
	tracker  *tracker.Tracker
	settings config.Settings
	now      func() time.Time
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance over t. Settings supply the
// metric and year used when a tool call omits them.
func NewServer(t *tracker.Tracker, settings config.Settings, version string, logger *slog.Logger) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "vaultheat",
		Version: version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		tracker:  t,
		settings: settings,
		now:      time.Now,
		logger:   logging.OrDefault(logger),
	}

	s.registerTools()

	return s
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "heatmap_series",
		Description: "Daily activity values of the vault for one metric and year",
	}, s.handleSeries)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "activity_summary",
		Description: "Monthly totals and the most active days of the vault",
	}, s.handleSummary)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "tracked_files",
		Description: "Files with a stored checkpoint and their last metric values",
	}, s.handleTrackedFiles)
}

// Input/Output types for each tool

type RangeInput struct {
	Metric *string `json:"metric,omitempty" jsonschema:"Metric to report: fileSize or wordCount"`
	Year   *string `json:"year,omitempty" jsonschema:"Four digit year, or Past year for the last 13 months"`
}

type SeriesOutput struct {
	Metric string      `json:"metric"`
	Start  string      `json:"start"`
	End    string      `json:"end"`
	Max    float64     `json:"max"`
	Days   []SeriesDay `json:"days"`
}

type SeriesDay struct {
	Date    string  `json:"date"`
	Value   float64 `json:"value"`
	Tooltip string  `json:"tooltip"`
}

type SummaryInput struct {
	Metric *string `json:"metric,omitempty" jsonschema:"Metric to report: fileSize or wordCount"`
	Year   *string `json:"year,omitempty" jsonschema:"Four digit year, or Past year for the last 13 months"`
	Top    *int    `json:"top,omitempty" jsonschema:"Number of most active days to return (default 10)"`
}

type SummaryOutput struct {
	Metric  string         `json:"metric"`
	Total   float64        `json:"total"`
	Months  []MonthSummary `json:"months"`
	TopDays []SeriesDay    `json:"topDays"`
}

type MonthSummary struct {
	Month      string  `json:"month"`
	Total      float64 `json:"total"`
	ActiveDays int     `json:"activeDays"`
}

type TrackedFilesInput struct {
	Prefix *string `json:"prefix,omitempty" jsonschema:"Only return paths starting with this prefix"`
}

type TrackedFilesOutput struct {
	Files []TrackedFile `json:"files"`
}

type TrackedFile struct {
	Path     string             `json:"path"`
	Modified string             `json:"modified,omitempty"`
	Values   map[string]float64 `json:"values"`
}

const defaultTopDays = 10

type resolvedRange struct {
	kind       metrics.Kind
	start, end time.Time
	series     map[string]float64
}

func (s *Server) resolveRange(ctx context.Context, in RangeInput) (resolvedRange, error) {
	name := s.settings.Metric
	if in.Metric != nil && *in.Metric != "" {
		name = *in.Metric
	}
	kind, err := parseKind(s.tracker.Kinds(), name)
	if err != nil {
		return resolvedRange{}, err
	}

	year := s.settings.Year
	if in.Year != nil && *in.Year != "" {
		year = *in.Year
	}
	start, end, err := heatmap.DateRange(year, s.now())
	if err != nil {
		return resolvedRange{}, err
	}

	return resolvedRange{
		kind:   kind,
		start:  start,
		end:    end,
		series: s.tracker.HeatmapSeries(ctx, kind),
	}, nil
}

func parseKind(kinds []metrics.Kind, name string) (metrics.Kind, error) {
	for _, k := range kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %s", metrics.ErrUnknownKind, name)
}

// Tool handlers

func (s *Server) handleSeries(ctx context.Context, req *mcp.CallToolRequest, input RangeInput) (*mcp.CallToolResult, SeriesOutput, error) {
	r, err := s.resolveRange(ctx, input)
	if err != nil {
		return nil, SeriesOutput{}, err
	}

	days := heatmap.Days(r.series, r.start, r.end)
	out := SeriesOutput{
		Metric: string(r.kind),
		Start:  r.start.Format(time.DateOnly),
		End:    r.end.Format(time.DateOnly),
		Days:   make([]SeriesDay, 0, len(days)),
	}
	for _, d := range days {
		if d.Value > out.Max {
			out.Max = d.Value
		}
		out.Days = append(out.Days, SeriesDay{Date: d.Key, Value: d.Value, Tooltip: heatmap.Tooltip(r.kind, d.Date, d.Value)})
	}

	return nil, out, nil
}

func (s *Server) handleSummary(ctx context.Context, req *mcp.CallToolRequest, input SummaryInput) (*mcp.CallToolResult, SummaryOutput, error) {
	r, err := s.resolveRange(ctx, RangeInput{Metric: input.Metric, Year: input.Year})
	if err != nil {
		return nil, SummaryOutput{}, err
	}

	top := defaultTopDays
	if input.Top != nil && *input.Top > 0 {
		top = *input.Top
	}

	out := SummaryOutput{Metric: string(r.kind)}
	for _, m := range heatmap.MonthlyTotals(r.series, r.start, r.end) {
		out.Total += m.Total
		out.Months = append(out.Months, MonthSummary{
			Month:      m.Month.Format("2006-01"),
			Total:      m.Total,
			ActiveDays: m.ActiveDays,
		})
	}
	for _, d := range heatmap.TopDays(r.series, top) {
		out.TopDays = append(out.TopDays, SeriesDay{Date: d.Key, Value: d.Value, Tooltip: heatmap.Tooltip(r.kind, d.Date, d.Value)})
	}

	return nil, out, nil
}

func (s *Server) handleTrackedFiles(ctx context.Context, req *mcp.CallToolRequest, input TrackedFilesInput) (*mcp.CallToolResult, TrackedFilesOutput, error) {
	store, err := s.tracker.Snapshot(ctx)
	if err != nil {
		return nil, TrackedFilesOutput{}, fmt.Errorf("failed to read activity store: %w", err)
	}

	prefix := ""
	if input.Prefix != nil {
		prefix = *input.Prefix
	}

	out := TrackedFilesOutput{Files: []TrackedFile{}}
	for path, cp := range store.Checkpoints {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		f := TrackedFile{Path: path, Values: make(map[string]float64, len(cp.Values))}
		if cp.MTime > 0 {
			f.Modified = time.UnixMilli(cp.MTime).Format(time.RFC3339)
		}
		for k, v := range cp.Values {
			f.Values[string(k)] = v
		}
		out.Files = append(out.Files, f)
	}
	sort.Slice(out.Files, func(i, j int) bool {
		return out.Files[i].Path < out.Files[j].Path
	})

	return nil, out, nil
}
