package media

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for a burst of changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeCallback receives the sorted names that changed during one burst.
type ChangeCallback func(names []string)

// Watch observes the media folder and calls cb once a burst of create,
// write, remove or rename events has been quiet for debounce. Names
// starting with an underscore are ignored. Watch returns when ctx is
// cancelled.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dir))

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			names := make([]string, 0, len(pending))
			for n := range pending {
				names = append(names, n)
			}
			clear(pending)
			slices.Sort(names)
			logger.Debug("watcher: folder changed", slog.Int("files", len(names)))
			if cb != nil {
				cb(names)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, "_") || ev.Op == fsnotify.Chmod {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Stop()
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
