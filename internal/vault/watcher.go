package vault

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EventOp is the kind of change reported for a file.
type EventOp int

const (
	// FileChanged covers creation and modification.
	FileChanged EventOp = iota
	// FileRemoved covers deletion and the old name of a rename.
	FileRemoved
)

func (op EventOp) String() string {
	switch op {
	case FileChanged:
		return "changed"
	case FileRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a change notification for one tracked file.
type Event struct {
	Path string
	Op   EventOp
}

// Watcher turns fsnotify notifications under the vault root into Events.
// Delivery is at-least-once: an editor save may produce several events for
// the same file.
type Watcher struct {
	dir    *Dir
	fsw    *fsnotify.Watcher
	events chan Event
	errs   chan error
	logger *slog.Logger
}

// Watch starts watching every non-ignored directory of the vault. The
// watcher stops when ctx is cancelled or Close is called.
func (d *Dir) Watch(ctx context.Context, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		dir:    d,
		fsw:    fsw,
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
		logger: logger,
	}

	if err := w.addTree(d.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go w.loop(ctx)

	return w, nil
}

// Events returns the channel of file events. It is closed when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != w.dir.root && w.dir.ignores[entry.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			_ = w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
				w.logger.Warn("dropping watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.dir.ignores[filepath.Base(ev.Name)] {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
				}
			}
			return
		}
	}

	if !w.dir.Tracks(ev.Name) {
		return
	}

	rel, err := w.dir.Rel(ev.Name)
	if err != nil {
		return
	}

	var out Event
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		out = Event{Path: rel, Op: FileRemoved}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		out = Event{Path: rel, Op: FileChanged}
	default:
		return
	}

	w.logger.Debug("vault event", "path", out.Path, "op", out.Op.String())

	select {
	case w.events <- out:
	case <-ctx.Done():
	}
}
