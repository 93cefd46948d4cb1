package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vault-md/vaultheat/internal/vault"
)

func newWatchCmd() *cobra.Command {
	var (
		interval time.Duration
		noScan   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Track vault changes until interrupted",
		Long: `Watch runs an initial scan, then records file changes as they happen.
Events are collected and applied every updateInterval minutes, and once
more on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()

			if interval <= 0 {
				settings, err := a.settings(cmd)
				if err != nil {
					return err
				}
				interval = time.Duration(settings.UpdateInterval) * time.Minute
			}

			if !noScan {
				if _, err := a.tracker.RunInitialScan(ctx); err != nil {
					return err
				}
			}

			w, err := a.vault.Watch(ctx, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = w.Close()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, flushing every %s\n", a.vault.Root(), interval)
			return a.watchLoop(ctx, w, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Flush period (default: updateInterval setting)")
	cmd.Flags().BoolVar(&noScan, "no-scan", false, "Skip the initial scan")

	return cmd
}

// pendingEvents keeps the last operation seen per path.
type pendingEvents map[string]vault.EventOp

func (a *app) watchLoop(ctx context.Context, w *vault.Watcher, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := make(pendingEvents)
	for {
		select {
		case <-ctx.Done():
			a.flush(context.WithoutCancel(ctx), pending)
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				a.flush(context.WithoutCancel(ctx), pending)
				return nil
			}
			pending[ev.Path] = ev.Op
		case err := <-w.Errors():
			a.logger.Warn("watcher error", "error", err)
		case <-ticker.C:
			a.flush(ctx, pending)
		}
	}
}

// flush applies and clears pending. Failures are logged; the next change
// to the same file retries.
func (a *app) flush(ctx context.Context, pending pendingEvents) {
	if len(pending) == 0 {
		return
	}
	a.logger.Debug("flushing vault events", "count", len(pending))

	for path, op := range pending {
		var err error
		switch op {
		case vault.FileRemoved:
			err = a.tracker.NotifyFileRemoved(ctx, path)
		default:
			err = a.tracker.NotifyFileChanged(ctx, path)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("failed to apply change", "path", path, "op", op.String(), "error", err)
		}
		delete(pending, path)
	}
}
