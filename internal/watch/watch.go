// Package watch triggers a reload when a documentation build rewrites its
// search files.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a callback once per burst of changes to *.js files in the
// watched directories. A directory that is removed or renamed away, as a
// clean documentation rebuild does, is watched again once it reappears.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(dirs []string)
	dirs     map[string]bool

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	// lost holds watched directories that vanished; only Run touches it.
	lost map[string]bool
}

// New watches dirs. onChange receives the directories that changed during
// the debounce window.
func New(dirs []string, debounce time.Duration, onChange func(dirs []string)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to set up watcher: %w", err)
	}
	watched := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched[filepath.Clean(dir)] = true
	}
	return &Watcher{
		watcher:  watcher,
		debounce: debounce,
		onChange: onChange,
		dirs:     watched,
		pending:  make(map[string]bool),
		lost:     make(map[string]bool),
	}, nil
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	interval := w.debounce
	if interval <= 0 {
		interval = time.Second
	}
	retry := time.NewTicker(interval)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case e, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.dirGone(e) {
				w.drop(e.Name)
				continue
			}
			if Relevant(e) {
				w.schedule(filepath.Dir(e.Name))
			}
		case <-retry.C:
			w.rewatch()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Warning: watcher error: %v", err)
		}
	}
}

// dirGone reports whether e removes or renames one of the watched
// directories themselves.
func (w *Watcher) dirGone(e fsnotify.Event) bool {
	return e.Has(fsnotify.Remove|fsnotify.Rename) && w.dirs[filepath.Clean(e.Name)]
}

func (w *Watcher) drop(dir string) {
	dir = filepath.Clean(dir)
	if w.lost[dir] {
		return
	}
	// A renamed directory keeps its inotify watch on the moved inode.
	_ = w.watcher.Remove(dir)
	w.lost[dir] = true
	log.Printf("Warning: watched directory %s disappeared, waiting for it to return", dir)
}

// rewatch re-adds vanished directories that exist again and schedules a
// reload for them, since their files were rewritten while unwatched.
func (w *Watcher) rewatch() {
	for dir := range w.lost {
		if err := w.watcher.Add(dir); err != nil {
			continue
		}
		delete(w.lost, dir)
		log.Printf("Watching %s again", dir)
		w.schedule(dir)
	}
}

func (w *Watcher) schedule(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[dir] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	dirs := make([]string, 0, len(w.pending))
	for dir := range w.pending {
		dirs = append(dirs, dir)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if len(dirs) > 0 {
		w.onChange(dirs)
	}
}

// Relevant reports whether e touches a search data file. Chmod events are
// ignored.
func Relevant(e fsnotify.Event) bool {
	if e.Op == fsnotify.Chmod {
		return false
	}
	return strings.HasSuffix(strings.ToLower(e.Name), ".js")
}
