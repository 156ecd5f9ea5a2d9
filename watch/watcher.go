// Package watch reloads a load context when its module files change on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/host"
)

// DefaultDebounce is the quiet period after the last change before a reload.
const DefaultDebounce = 100 * time.Millisecond

// Reloader reloads contexts. *runtime.Runtime implements it.
type Reloader interface {
	Reload(ctx context.Context, id boundary.ContextID) (boundary.ContextID, error)
	Bridge() *host.Bridge
}

// Options configures a Watcher.
type Options struct {
	// OnReload is called after every reload attempt with the files that
	// triggered it.
	OnReload func(id boundary.ContextID, files []string, err error)
	Debounce time.Duration
}

// Watcher monitors the files of one context and reloads it on change.
type Watcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	rt        Reloader
	log       *zap.Logger
	onReload  func(boundary.ContextID, []string, error)
	files     map[string]struct{}
	dirs      []string
	stopChan  chan struct{}
	id        atomic.Uint64
	reloads   atomic.Uint64
	wg        sync.WaitGroup
	reloadMu  sync.Mutex
	started   atomic.Bool
	stopped   atomic.Bool
}

// NewWatcher creates a watcher for the given module files of a context.
func NewWatcher(rt Reloader, id boundary.ContextID, paths []string, opts Options) (*Watcher, error) {
	if rt == nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNullReference).Detail("reloader is nil").Build()
	}
	if len(paths) == 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidSource).Detail("no files to watch").Build()
	}

	files := make(map[string]struct{}, len(paths))
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidSource, err, "resolve "+p)
		}
		files[abs] = struct{}{}
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindUnknown, err, "create file watcher")
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:   fsw,
		debouncer: NewDebouncer(debounce),
		rt:        rt,
		log:       rt.Bridge().Logger().Named("watch"),
		onReload:  opts.OnReload,
		files:     files,
		dirs:      dirs,
		stopChan:  make(chan struct{}),
	}
	w.id.Store(uint64(id))
	w.debouncer.SetCallback(w.reload)
	return w, nil
}

// Start begins watching the directories of the module files.
func (w *Watcher) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "watch directory "+dir)
		}
		w.log.Debug("watching directory", zap.String("dir", dir))
	}

	w.wg.Add(1)
	go w.watch()
	return nil
}

// Stop stops the watcher. A reload already running finishes first.
func (w *Watcher) Stop() error {
	if !w.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(w.stopChan)

	w.debouncer.Stop()
	w.reloadMu.Lock()
	w.reloadMu.Unlock() //nolint:staticcheck // waits for an in-flight reload
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// Context returns the id of the watched context as of the last reload.
func (w *Watcher) Context() boundary.ContextID {
	return boundary.ContextID(w.id.Load())
}

// Reloads returns the number of reload attempts.
func (w *Watcher) Reloads() uint64 {
	return w.reloads.Load()
}

func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := w.files[abs]; ok {
				w.log.Debug("module file changed", zap.String("file", abs), zap.Stringer("op", event.Op))
				w.debouncer.Add(abs)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) reload(files []string) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	select {
	case <-w.stopChan:
		return
	default:
	}

	w.reloads.Add(1)
	id, err := w.rt.Reload(context.Background(), w.Context())
	if id != 0 {
		w.id.Store(uint64(id))
	}
	if err != nil {
		w.rt.Bridge().Reportf("reload of %v failed: %v", files, err)
	} else {
		w.log.Info("context reloaded", zap.Strings("files", files))
	}
	if w.onReload != nil {
		w.onReload(w.Context(), files, err)
	}
}
