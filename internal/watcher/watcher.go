package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drl.watcher")

// DefaultInterval is how long file events settle before dispatch
const DefaultInterval = 100 * time.Millisecond

// ChangeHandler is called when files change
type ChangeHandler func(changed, removed []string)

// Watcher monitors DRL files for changes using fsnotify
type Watcher struct {
	watcher   *fsnotify.Watcher
	rootPath  string
	handler   ChangeHandler
	debouncer *Debouncer
	done      chan struct{}

	mu  sync.Mutex
	ops map[string]fsnotify.Op // combined operations per path awaiting dispatch
}

// New creates a new file watcher for the root path
func New(rootPath string, handler ChangeHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:   fsw,
		rootPath:  rootPath,
		handler:   handler,
		debouncer: NewDebouncer(DefaultInterval),
		done:      make(chan struct{}),
		ops:       make(map[string]fsnotify.Op),
	}

	return w, nil
}

// Start begins watching for file changes
func (w *Watcher) Start() error {
	// Add all directories recursively
	err := filepath.WalkDir(w.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if d.IsDir() {
			if path != w.rootPath && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				log.Warningf("failed to watch %s: %v", path, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", w.rootPath, err)
	}

	// Start the event loop
	go w.eventLoop()

	log.Infof("file watcher started for %s", w.rootPath)
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// If a new directory was created, watch it
	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			if !skipDir(filepath.Base(path)) {
				if err := w.watcher.Add(path); err != nil {
					log.Warningf("failed to watch new directory %s: %v", path, err)
				}
			}
			return
		}
	}

	if !IsDRLFile(path) {
		return
	}

	w.mu.Lock()
	w.ops[path] |= event.Op
	w.mu.Unlock()

	w.debouncer.Schedule(path, func() { w.dispatch(path) })
}

// dispatch hands the settled operations of one path to the handler
func (w *Watcher) dispatch(path string) {
	w.mu.Lock()
	op := w.ops[path]
	delete(w.ops, path)
	w.mu.Unlock()

	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		log.Debugf("file removed: %s", path)
		w.handler(nil, []string{path})
	case op.Has(fsnotify.Write) || op.Has(fsnotify.Create):
		log.Debugf("file changed: %s", path)
		w.handler([]string{path}, nil)
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	close(w.done)
	w.debouncer.Stop()
	return w.watcher.Close()
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "target" || name == "node_modules"
}

// IsDRLFile checks if a file holds DRL rules
func IsDRLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".drl", ".rdrl", ".rdslr":
		return true
	}
	return false
}
