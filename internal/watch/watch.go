// Package watch re-runs a validation whenever its input changes on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of events from a single build.
const DefaultDebounce = 300 * time.Millisecond

// Watcher observes an archive file or an unpacked package directory.
type Watcher struct {
	target   string
	isDir    bool
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

// New starts watching target. Files are watched through their parent
// directory so that atomic replacement by build tools is noticed.
func New(target string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		target:   abs,
		isDir:    info.IsDir(),
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
	}

	if w.isDir {
		err = w.addTree(abs)
	} else {
		err = fw.Add(filepath.Dir(abs))
	}
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", target, err)
	}
	return w, nil
}

// Run calls fn once, then again after every relevant change, until ctx is
// done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context)) error {
	fn(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Change detected", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if w.isDir && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("Can not watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		case <-timer.C:
			fn(ctx)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if w.isDir {
		return true
	}
	return filepath.Clean(event.Name) == w.target
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}
