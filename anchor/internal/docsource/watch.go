package docsource

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/textanchor/anchor/internal/debounce"
)

// DefaultSettle is how long a file must stay quiet before its change is
// reported. Editors usually write in several steps.
const DefaultSettle = 200 * time.Millisecond

// Watcher reports changes of watched files, one call per burst of writes.
// Files are watched through their directory so atomic replace-by-rename
// saves are seen too.
type Watcher struct {
	fs       *fsnotify.Watcher
	settle   time.Duration
	onChange func(path string)
	logger   *slog.Logger

	mu      sync.Mutex
	files   map[string]*debounce.Debouncer
	dirs    map[string]bool
	done    chan struct{}
	stopped sync.WaitGroup
}

// NewWatcher creates a watcher calling onChange with the absolute path of a
// changed file. A zero settle means DefaultSettle.
func NewWatcher(settle time.Duration, onChange func(path string), logger *slog.Logger) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("docsource: watcher: %w", err)
	}
	w := &Watcher{
		fs:       fs,
		settle:   settle,
		onChange: onChange,
		logger:   logger,
		files:    make(map[string]*debounce.Debouncer),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}
	w.stopped.Add(1)
	go w.loop()
	return w, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; ok {
		return nil
	}
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("docsource: watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = debounce.New(w.settle, debounce.System)
	w.logger.Debug("docsource: watching", "path", abs)
	return nil
}

// Watched lists the watched files.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	return out
}

func (w *Watcher) loop() {
	defer w.stopped.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			path := filepath.Clean(ev.Name)
			w.mu.Lock()
			d := w.files[path]
			w.mu.Unlock()
			if d == nil {
				continue
			}
			d.Schedule(func() {
				w.logger.Info("docsource: file changed", "path", path)
				w.onChange(path)
			})
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("docsource: watch error", "error", err)
		}
	}
}

// Close stops watching and cancels pending notifications.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.stopped.Wait()
	w.mu.Lock()
	for _, d := range w.files {
		d.Close()
	}
	w.mu.Unlock()
	return err
}
