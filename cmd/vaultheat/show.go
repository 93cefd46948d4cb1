package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vault-md/vaultheat/internal/heatmap"
	"github.com/vault-md/vaultheat/internal/metrics"
)

func newShowCmd() *cobra.Command {
	var (
		metric string
		year   string
		top    int
		files  bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print activity tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()

			if files {
				store, err := a.tracker.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				heatmap.WriteCheckpoints(out, a.tracker.Kinds(), store.Checkpoints, getTerminalWidth())
				return nil
			}

			kind, year, err := a.resolveView(cmd, metric, year)
			if err != nil {
				return err
			}
			start, end, err := heatmap.DateRange(year, time.Now())
			if err != nil {
				return err
			}

			series := a.tracker.HeatmapSeries(cmd.Context(), kind)
			fmt.Fprintf(out, "%s activity, %s to %s\n", kind,
				start.Format(heatmap.TooltipDateLayout), end.Format(heatmap.TooltipDateLayout))
			heatmap.WriteSummary(out, kind, series, start, end)
			if top > 0 {
				heatmap.WriteTopDays(out, kind, series, top)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metric, "metric", "", "Metric to show: fileSize or wordCount (default from settings)")
	cmd.Flags().StringVar(&year, "year", "", "Four digit year or \"Past year\" (default from settings)")
	cmd.Flags().IntVar(&top, "top", 5, "Number of most active days to list")
	cmd.Flags().BoolVar(&files, "files", false, "List tracked files and their checkpoints instead")

	return cmd
}

// resolveView fills metric and year from the settings document when the
// flags are empty.
func (a *app) resolveView(cmd *cobra.Command, metric, year string) (metrics.Kind, string, error) {
	s, err := a.settings(cmd)
	if err != nil {
		return "", "", err
	}
	if metric == "" {
		metric = s.Metric
	}
	if year == "" {
		year = s.Year
	}
	kind, err := a.registry.Parse(metric)
	if err != nil {
		return "", "", err
	}
	return kind, year, nil
}
