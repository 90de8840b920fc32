// Package watch runs the pipeline on a schedule inside one long-lived
// process. External cron stays the primary deployment model; this is for
// hosts without one.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"perpwatch/internal/config"
	"perpwatch/pkg/logx"
)

// RunFunc executes one pipeline run with the given configuration.
type RunFunc func(ctx context.Context, cfg config.Config) error

// Watcher triggers runs on a cron or interval schedule. A tick that fires
// while a run is still in flight is skipped, so runs never overlap within
// one process. It optionally reloads the config file between runs.
type Watcher struct {
	log     logx.Logger
	cfgPath string
	run     RunFunc

	mu  sync.Mutex
	cfg config.Config

	inFlight atomic.Bool
}

func New(cfg config.Config, cfgPath string, log logx.Logger, run RunFunc) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{log: log, cfgPath: cfgPath, run: run, cfg: cfg}
}

// Start blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	spec, err := ParseSchedule(w.current().Watch.Schedule)
	if err != nil {
		return err
	}

	if w.cfgPath != "" {
		go w.watchConfig(ctx)
	}

	switch spec.Kind {
	case SpecCron:
		c := cron.New()
		if _, err := c.AddFunc(spec.Cron, func() { w.tick(ctx) }); err != nil {
			return err
		}
		w.log.Info("watching on cron schedule", logx.String("cron", spec.Cron))
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
	case SpecInterval:
		w.log.Info("watching on interval", logx.Duration("every", spec.Every))
		t := time.NewTicker(spec.Every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				w.tick(ctx)
			}
		}
	}
	return nil
}

func (w *Watcher) tick(ctx context.Context) {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.log.Warn("previous run still in flight, skipping tick")
		return
	}
	defer w.inFlight.Store(false)

	if err := w.run(ctx, w.current()); err != nil {
		w.log.Error("run failed", logx.Err(err))
	}
}

func (w *Watcher) current() config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// watchConfig applies config-file edits between runs. Invalid edits are
// logged and ignored; the last good config stays in effect.
func (w *Watcher) watchConfig(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("config watch unavailable", logx.Err(err))
		return
	}
	defer fw.Close()

	// Watch the directory: editors typically replace the file, which would
	// drop a watch on the file itself.
	dir := filepath.Dir(w.cfgPath)
	base := filepath.Base(w.cfgPath)
	if err := fw.Add(dir); err != nil {
		w.log.Warn("config watch unavailable", logx.String("dir", dir), logx.Err(err))
		return
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Editors fire bursts of events per save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, w.reload)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Debug("config watch error", logx.Err(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := config.Load(w.cfgPath)
	if err != nil {
		w.log.Warn("config reload rejected", logx.Err(err))
		return
	}
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
	w.log.Info("config reloaded", logx.String("path", w.cfgPath))
}
