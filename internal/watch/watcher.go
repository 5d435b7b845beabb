// Package watch uploads documents from a directory as they are created or modified.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Uploader sends one file to the backend.
type Uploader interface {
	UploadFile(ctx context.Context, path string) error
}

// Config configures a Watcher.
type Config struct {
	Dir      string
	Debounce time.Duration
	// Accept filters candidate files. Nil accepts everything.
	Accept func(path string) bool
}

// Watcher collapses bursts of filesystem events per file and uploads each file once
// the burst is over. Uploads run one at a time on the Run goroutine.
type Watcher struct {
	cfg      Config
	uploader Uploader
	log      *zap.Logger
	fsw      *fsnotify.Watcher

	timers map[string]*pendingFile
	seq    uint64
	ready  chan firing
}

// pendingFile is the debounce timer of one path. seq identifies the latest arming.
type pendingFile struct {
	timer *time.Timer
	seq   uint64
}

type firing struct {
	path string
	seq  uint64
}

// New starts watching cfg.Dir and all of its subdirectories.
func New(cfg Config, uploader Uploader, log *zap.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Accept == nil {
		cfg.Accept = func(string) bool { return true }
	}
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		uploader: uploader,
		log:      log.Named("watch"),
		fsw:      fsw,
		timers:   make(map[string]*pendingFile),
		ready:    make(chan firing, 64),
	}
	if err := w.addTree(cfg.Dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Sync uploads every accepted file already present under the directory.
func (w *Watcher) Sync(ctx context.Context) error {
	return filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !w.cfg.Accept(path) {
			return nil
		}
		w.upload(ctx, path)
		return ctx.Err()
	})
}

// Run processes events until ctx is cancelled. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case f := <-w.ready:
			p, ok := w.timers[f.path]
			if !ok || p.seq != f.seq {
				// Superseded by a later event; its own timer will fire.
				continue
			}
			delete(w.timers, f.path)
			w.upload(ctx, f.path)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("failed to watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
		}
		return
	}
	if !w.cfg.Accept(ev.Name) {
		w.log.Debug("skipping unsupported file", zap.String("file", ev.Name))
		return
	}

	// A fired timer may already have queued its path, so every event arms a fresh one.
	if p, ok := w.timers[ev.Name]; ok {
		p.timer.Stop()
	}
	w.seq++
	f := firing{path: ev.Name, seq: w.seq}
	w.timers[ev.Name] = &pendingFile{
		seq:   f.seq,
		timer: time.AfterFunc(w.cfg.Debounce, func() { w.ready <- f }),
	}
}

func (w *Watcher) upload(ctx context.Context, path string) {
	if err := w.uploader.UploadFile(ctx, path); err != nil {
		w.log.Error("upload failed", zap.String("file", path), zap.Error(err))
		return
	}
	w.log.Info("uploaded", zap.String("file", path))
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) stop() {
	for _, p := range w.timers {
		p.timer.Stop()
	}
	if err := w.fsw.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
		w.log.Warn("failed to close watcher", zap.Error(err))
	}
}
