package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vault-md/vaultheat/internal/heatmap"
)

func newRenderCmd() *cobra.Command {
	var (
		output string
		metric string
		year   string
		mock   bool
		months int
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the heatmap as an HTML page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			kind, year, err := a.resolveView(cmd, metric, year)
			if err != nil {
				return err
			}

			now := time.Now()
			var series map[string]float64
			if mock {
				series = heatmap.MockSeries(months, now, nil)
			} else {
				series = a.tracker.HeatmapSeries(cmd.Context(), kind)
			}

			chart := heatmap.ChartOptions{Kind: kind, Year: year, Now: now}
			render := func(w io.Writer) error {
				return heatmap.Render(w, series, chart)
			}

			if output == "" || output == "-" {
				return render(cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			if err := writeAndClose(f, render); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			a.logger.Info("wrote heatmap", "path", output, "metric", kind, "year", year, "days", len(series))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "heatmap.html", "Output file, - for stdout")
	cmd.Flags().StringVar(&metric, "metric", "", "Metric to render: fileSize or wordCount (default from settings)")
	cmd.Flags().StringVar(&year, "year", "", "Four digit year or \"Past year\" (default from settings)")
	cmd.Flags().BoolVar(&mock, "mock", false, "Render random data instead of the vault's activity")
	cmd.Flags().IntVar(&months, "mock-months", heatmap.DefaultMockMonths, "Months of random data for --mock")

	return cmd
}

// writeAndClose runs render against wc and closes it. A close error is
// returned when render itself succeeded.
func writeAndClose(wc io.WriteCloser, render func(io.Writer) error) (err error) {
	defer func() {
		if closeErr := wc.Close(); err == nil {
			err = closeErr
		}
	}()
	return render(wc)
}
