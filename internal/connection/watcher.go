package connection

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Bursty editors and atomic renames produce several fs events per logical
// change; coalesce them before telling the store.
const debounceDelay = 100 * time.Millisecond

// dirWatcher watches the state directory and invokes onChange once per
// debounced burst of events touching the persisted connection files.
type dirWatcher struct {
	fsw       *fsnotify.Watcher
	onChange  func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
}

func newDirWatcher(dir string, onChange func()) (*dirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &dirWatcher{
		fsw:      fsw,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()

	return w, nil
}

func (w *dirWatcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.schedule()
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal: the store still works with
			// local notifications.
		case <-w.done:
			return
		}
	}
}

// relevant filters events down to the files this package owns.
func (w *dirWatcher) relevant(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	return name == overrideFile || name == enabledFile
}

// schedule (re)arms the debounce timer.
func (w *dirWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.onChange()
	})
}

// Close stops the watcher and waits for the event loop to exit. Pending
// debounce timers are cancelled so onChange never fires after Close.
func (w *dirWatcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.fsw.Close()
		w.wg.Wait()
	})
}
