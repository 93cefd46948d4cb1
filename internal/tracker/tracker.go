// Package tracker turns vault file events into checkpoint and activity
// updates, serialized through a single queue.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/datastore"
	"github.com/vault-md/vaultheat/internal/logging"
	"github.com/vault-md/vaultheat/internal/metrics"
	"github.com/vault-md/vaultheat/internal/sequencer"
	"github.com/vault-md/vaultheat/internal/vault"
)

// Update sub-steps, reported in debug logs.
const (
	stepLoadingStore    = "loading-store"
	stepComputingDelta  = "computing-delta"
	stepFoldingActivity = "folding-activity"
	stepWritingStore    = "writing-store"
)

// Tracker is the entry point for file events and heatmap reads.
type Tracker struct {
	vault    vault.Vault
	registry *metrics.Registry
	data     *datastore.DataStore
	seq      *sequencer.Sequencer
	ownsSeq  bool
	loc      *time.Location
	logger   *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLocation sets the time zone that decides which date a change lands on.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		t.loc = loc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithSequencer shares an existing sequencer. The tracker does not close it.
func WithSequencer(seq *sequencer.Sequencer) Option {
	return func(t *Tracker) {
		t.seq = seq
	}
}

// New creates a tracker. Without WithSequencer it starts its own, which
// Close stops.
func New(v vault.Vault, registry *metrics.Registry, data *datastore.DataStore, opts ...Option) *Tracker {
	t := &Tracker{
		vault:    v,
		registry: registry,
		data:     data,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrDefault(t.logger)
	if t.registry == nil {
		t.registry = metrics.DefaultRegistry()
	}
	if t.seq == nil {
		t.seq = sequencer.New(t.logger)
		t.ownsSeq = true
	}
	return t
}

// Close drains pending updates.
func (t *Tracker) Close() {
	if t.ownsSeq {
		t.seq.Close()
	}
}

// ScanResult summarises RunInitialScan.
type ScanResult struct {
	Files     int
	Updated   int
	Unchanged int
	Failed    int
	// FirstTime is true when no prior data existed; no activity was folded.
	FirstTime bool
}

// RunInitialScan checkpoints every tracked file in one queued operation.
// When no prior data exists the scan only records checkpoints, so existing
// content is not counted as activity.
func (t *Tracker) RunInitialScan(ctx context.Context) (ScanResult, error) {
	exists, err := t.data.Exists(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("check existing data: %w", err)
	}
	result := ScanResult{FirstTime: !exists}

	files, err := t.vault.ListFiles(ctx)
	if err != nil {
		return result, fmt.Errorf("list vault files: %w", err)
	}
	result.Files = len(files)

	err = t.seq.Do(ctx, "initial-scan", func(opCtx context.Context) error {
		logger := t.opLogger(opCtx)

		store, err := t.load(opCtx, logger)
		if err != nil {
			return err
		}

		for _, f := range files {
			changed, err := t.apply(opCtx, logger, store, f, result.FirstTime)
			switch {
			case err != nil:
				result.Failed++
				logger.Warn("skipping file", "path", f.Path, "error", err)
			case changed:
				result.Updated++
			default:
				result.Unchanged++
			}
		}

		if result.Updated == 0 && exists {
			return nil
		}
		return t.write(opCtx, logger, store)
	})
	if err != nil {
		return result, err
	}

	t.logger.Info("initial scan complete",
		"files", result.Files,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"first_time", result.FirstTime)
	return result, nil
}

// NotifyFileChanged records a change to path. It returns once the update
// has been written or has failed.
func (t *Tracker) NotifyFileChanged(ctx context.Context, path string) error {
	return t.seq.Do(ctx, "update "+path, func(opCtx context.Context) error {
		logger := t.opLogger(opCtx).With("path", path)

		f, err := t.vault.Stat(opCtx, path)
		if err != nil {
			if errors.Is(err, vault.ErrNotTracked) || errors.Is(err, fs.ErrNotExist) {
				logger.Debug("ignoring change to untracked or missing file", "error", err)
				return nil
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}

		store, err := t.load(opCtx, logger)
		if err != nil {
			return err
		}

		changed, err := t.apply(opCtx, logger, store, f, false)
		if err != nil {
			return err
		}
		if !changed {
			logger.Debug("file unchanged, skipping write")
			return nil
		}
		return t.write(opCtx, logger, store)
	})
}

// NotifyFileRemoved drops the checkpoint of path. Daily totals keep its
// past contribution. A missing or unreadable store makes this a no-op.
func (t *Tracker) NotifyFileRemoved(ctx context.Context, path string) error {
	return t.seq.Do(ctx, "remove "+path, func(opCtx context.Context) error {
		logger := t.opLogger(opCtx).With("path", path)

		logger.Debug("update step", "step", stepLoadingStore)
		store, err := t.data.Read(opCtx)
		if err != nil {
			logger.Error("cannot remove checkpoint, store unreadable", "error", err)
			return nil
		}
		if store == nil {
			logger.Debug("no store, nothing to remove")
			return nil
		}

		if _, ok := store.Checkpoints[path]; !ok {
			logger.Debug("no checkpoint for removed file")
			return nil
		}
		delete(store.Checkpoints, path)

		return t.write(opCtx, logger, store)
	})
}

// HeatmapSeries returns the date → value series of kind. Read failures are
// logged and yield an empty series.
func (t *Tracker) HeatmapSeries(ctx context.Context, kind metrics.Kind) map[string]float64 {
	store, err := t.data.Read(ctx)
	if err != nil {
		t.logger.Error("failed to read activity store", "kind", kind, "error", err)
		return map[string]float64{}
	}
	if store == nil {
		return map[string]float64{}
	}
	return activity.ProjectSeries(store.DailyActivity, kind)
}

// Snapshot returns the merged store without modifying it. It returns an
// empty store when nothing has been recorded yet.
func (t *Tracker) Snapshot(ctx context.Context) (*activity.Store, error) {
	store, err := t.data.Read(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return activity.NewStore(), nil
	}
	return store, nil
}

// Kinds returns the registered metric kinds.
func (t *Tracker) Kinds() []metrics.Kind {
	return t.registry.Kinds()
}

func (t *Tracker) opLogger(ctx context.Context) *slog.Logger {
	if id := sequencer.OpID(ctx); id != "" {
		return t.logger.With("op_id", id)
	}
	return t.logger
}

func (t *Tracker) load(ctx context.Context, logger *slog.Logger) (*activity.Store, error) {
	logger.Debug("update step", "step", stepLoadingStore)

	store, err := t.data.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if store == nil {
		store = activity.NewStore()
	}
	return store, nil
}

func (t *Tracker) write(ctx context.Context, logger *slog.Logger, store *activity.Store) error {
	logger.Debug("update step", "step", stepWritingStore,
		"checkpoints", len(store.Checkpoints), "days", len(store.DailyActivity))

	if err := t.data.Write(ctx, store); err != nil {
		return err
	}
	return nil
}

// apply evaluates f, replaces its checkpoint in store and, unless suppress
// is set, folds the deltas into the date of f's modification time. It
// reports whether the store changed.
func (t *Tracker) apply(ctx context.Context, logger *slog.Logger, store *activity.Store, f vault.File, suppress bool) (bool, error) {
	logger.Debug("update step", "step", stepComputingDelta, "path", f.Path)

	values, errs := t.registry.Evaluate(ctx, t.vault, f)
	for kind, err := range errs {
		logger.Warn("metric evaluation failed, keeping previous value", "path", f.Path, "kind", kind, "error", err)
	}
	if len(values) == 0 && len(errs) > 0 {
		return false, fmt.Errorf("evaluate %s: every metric failed", f.Path)
	}

	prev := store.Checkpoint(f.Path)
	next, deltas := activity.ComputeFileDelta(prev, values, f.MTime(), t.registry.Kinds())
	if activity.Unchanged(prev, next) {
		return false, nil
	}
	store.Checkpoints[f.Path] = next

	if suppress {
		return true, nil
	}

	date := activity.DateKey(f.MTime(), t.loc)
	logger.Debug("update step", "step", stepFoldingActivity, "path", f.Path, "date", date,
		"total_delta", activity.TotalDelta(deltas))

	for _, kind := range t.registry.Kinds() {
		if err := activity.FoldDelta(store.DailyActivity, date, kind, deltas[kind]); err != nil {
			logger.Warn("ignoring invalid delta", "path", f.Path, "kind", kind, "error", err)
		}
	}
	return true, nil
}
