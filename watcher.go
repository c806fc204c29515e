package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/alefaraci/figcolor/logger"
)

// debouncer coalesces rapid event bursts into a single callback.
type debouncer struct {
	mu     sync.Mutex
	timer  *time.Timer
	delay  time.Duration
	onFire func()
}

func newDebouncer(delay time.Duration, onFire func()) *debouncer {
	return &debouncer{delay: delay, onFire: onFire}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Reset(d.delay)
		return
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		d.timer = nil
		d.mu.Unlock()
		d.onFire()
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// runner serializes rebuilds on one goroutine. Requests made while a
// rebuild is running collapse into a single follow-up rebuild.
type runner struct {
	pending chan struct{}
	build   func(ctx context.Context)
}

func newRunner(build func(ctx context.Context)) *runner {
	return &runner{pending: make(chan struct{}, 1), build: build}
}

func (r *runner) request() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

func (r *runner) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
			r.build(ctx)
		}
	}
}

func runWatchMode(ctx context.Context, a *app) error {
	log := logger.L(ctx)
	cfg := a.cfg

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range cfg.Watch.Dirs {
		if err := watchRecursive(w, dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		log.Info("watching", zap.String("dir", dir))
	}

	r := newRunner(func(ctx context.Context) { a.rebuild(ctx) })
	db := newDebouncer(500*time.Millisecond, r.request)
	defer db.stop()

	var wg sync.WaitGroup
	wg.Go(func() { r.loop(ctx) })

	r.request()
	log.Info("daemon ready, waiting for file changes")

	// Polling fallback for network filesystems where inotify doesn't fire
	wg.Go(func() { pollLoop(ctx, cfg.Watch.Dirs, cfg.Watch.PollDuration(), db.trigger) })

	eventLoop(ctx, w, db)

	log.Info("waiting for in-flight rebuild")
	wg.Wait()
	log.Info("shutdown complete")
	return nil
}

// rebuild re-imports every watched directory and rewrites the proof.
func (a *app) rebuild(ctx context.Context) {
	log := logger.L(ctx)
	start := time.Now()

	doc, err := a.imp.importDirs(ctx, a.cfg.Watch.Dirs...)
	if errors.Is(err, errNoRasters) {
		log.Info("no rasters to remap")
		return
	}
	if err != nil {
		log.Error("importing rasters", zap.Error(err))
		return
	}

	res, err := a.render(ctx, doc, a.cfg.Watch.Output)
	if err != nil {
		log.Error("rebuilding proof", zap.String("output", a.cfg.Watch.Output), zap.Error(err))
		return
	}
	if res.Canceled {
		return
	}
	log.Info("rebuilt proof",
		zap.String("output", a.cfg.Watch.Output),
		zap.Stringer("strategy", res.Strategy),
		zap.Int("pictures", res.Pictures),
		zap.Duration("took", time.Since(start)))
}

func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func eventLoop(ctx context.Context, w *fsnotify.Watcher, db *debouncer) {
	log := logger.L(ctx)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					watchRecursive(w, ev.Name)
					db.trigger()
					continue
				}
			}
			if !isRaster(ev.Name) {
				continue
			}
			// Atomic replacement: re-add the parent so the new inode is tracked.
			if ev.Has(fsnotify.Rename) {
				if _, err := os.Stat(ev.Name); err == nil {
					w.Add(filepath.Dir(ev.Name))
				}
			}
			db.trigger()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}

// pollLoop walks dirs at a fixed interval and calls onChanged when a raster
// appears, disappears or changes its mtime.
func pollLoop(ctx context.Context, dirs []string, interval time.Duration, onChanged func()) {
	mtimes := scanRasters(dirs)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := scanRasters(dirs)
		if changedRasters(mtimes, now) {
			onChanged()
		}
		mtimes = now
	}
}

func scanRasters(dirs []string) map[string]time.Time {
	mtimes := make(map[string]time.Time)
	for _, dir := range dirs {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !isRaster(path) {
				return nil
			}
			if info, err := d.Info(); err == nil {
				mtimes[path] = info.ModTime()
			}
			return nil
		})
	}
	return mtimes
}

func changedRasters(prev, now map[string]time.Time) bool {
	if len(prev) != len(now) {
		return true
	}
	for path, mt := range now {
		if old, ok := prev[path]; !ok || !old.Equal(mt) {
			return true
		}
	}
	return false
}
