// Package watch feeds media files that land in an inbox directory through a
// handler, one at a time.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"subgen/internal/logging"
	"subgen/internal/services"
	"subgen/internal/session"
)

const defaultDebounce = 2 * time.Second

var mediaExtensions = map[string]session.MediaKind{
	".mp4":  session.MediaVideo,
	".mkv":  session.MediaVideo,
	".mov":  session.MediaVideo,
	".avi":  session.MediaVideo,
	".mp3":  session.MediaAudio,
	".wav":  session.MediaAudio,
	".m4a":  session.MediaAudio,
	".flac": session.MediaAudio,
}

// KindFor maps a file name to its media kind by extension.
func KindFor(path string) (session.MediaKind, bool) {
	kind, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

// Handler processes one settled media file.
type Handler func(ctx context.Context, path string, kind session.MediaKind) error

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher monitors a single directory.
type Watcher struct {
	dir      string
	handle   Handler
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	queue  chan string
	ready  chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// New returns a watcher for dir. Run starts it.
func New(dir string, handle Handler, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		handle:   handle,
		debounce: defaultDebounce,
		logger:   logging.NewComponentLogger(logger, "watch"),
		timers:   make(map[string]*time.Timer),
		queue:    make(chan string, 64),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Processed reports how many files were handled successfully.
func (w *Watcher) Processed() int64 { return w.processed.Load() }

// Failed reports how many files the handler rejected.
func (w *Watcher) Failed() int64 { return w.failed.Load() }

// Run watches until ctx is cancelled. Handler failures are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if w.handle == nil {
		return services.Wrap(services.KindConfig, "watch", "start", "no handler configured", nil)
	}
	info, err := os.Stat(w.dir)
	if err != nil {
		return services.Wrap(services.KindNotFound, "watch", "start", w.dir, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.KindInput, "watch", "start", w.dir+" is not a directory", nil)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.KindStorage, "watch", "start", "create watcher", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return services.Wrap(services.KindStorage, "watch", "start", "watch "+w.dir, err)
	}

	w.logger.Info("watching directory",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce),
	)
	close(w.ready)
	return w.serve(ctx, fsw.Events, fsw.Errors)
}

// serve dispatches events until ctx is cancelled or either channel closes.
// The worker is stopped before serve returns.
func (w *Watcher) serve(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(ctx)
	}()
	defer wg.Wait()
	defer cancel()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped",
				logging.String(logging.FieldEventType, "watch_stopped"),
				logging.Int64("files_processed", w.processed.Load()),
				logging.Int64("files_failed", w.failed.Load()),
			)
			return nil
		case event, ok := <-events:
			if !ok {
				logging.WarnWithContext(w.logger, "watch event stream closed", "watch_closed",
					logging.String(logging.FieldImpact, "new files are no longer picked up"),
				)
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, ok := KindFor(event.Name); !ok || strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-errs:
			if !ok {
				logging.WarnWithContext(w.logger, "watch error stream closed", "watch_closed",
					logging.String(logging.FieldImpact, "new files are no longer picked up"),
				)
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.WarnWithContext(w.logger, "watch events dropped", "watch_overflow",
					logging.Error(err),
					logging.String(logging.FieldImpact, "some new files may be missed"),
				)
				continue
			}
			w.logger.Error("watcher error", logging.String(logging.FieldEventType, "watch_error"), logging.Error(err))
		}
	}
}

// schedule restarts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.queue <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	kind, ok := KindFor(path)
	if !ok {
		return
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}
	w.logger.Info("processing new media",
		logging.String(logging.FieldEventType, "watch_file"),
		logging.String("path", path),
		logging.String("kind", string(kind)),
	)
	if err := w.handle(ctx, path, kind); err != nil {
		w.failed.Add(1)
		logging.WarnWithContext(w.logger, "media file failed", "watch_file_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.String(logging.FieldImpact, "file skipped; watcher continues"),
		)
		return
	}
	w.processed.Add(1)
}
