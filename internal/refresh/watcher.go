package refresh

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reacts to filesystem events on the catalog file and invokes a
// callback once a burst of events has settled for the debounce window.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()

	mu    sync.Mutex
	timer *time.Timer

	wg sync.WaitGroup
}

// NewWatcher starts watching the catalog file at path. The watch is set
// on the parent directory: catalog tools replace the file wholesale,
// which would silently drop a watch placed on the file itself.
func NewWatcher(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		fsw:      fsw,
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.bump()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("refresh: watcher error: %v", err)
		}
	}
}

// bump restarts the debounce window. The callback fires once, debounce
// after the last observed event.
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

// Close stops the watcher and cancels any pending debounce callback.
func (w *Watcher) Close() {
	_ = w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}
