// Package daemon runs the probes on a schedule and reloads the config file
// when it changes.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/sznuper/agentprobe/internal/config"
	"github.com/sznuper/agentprobe/internal/runner"
)

const (
	DefaultInterval = 5 * time.Minute

	defaultDebounce = 500 * time.Millisecond
)

// Runner is the part of runner.Runner the daemon drives.
type Runner interface {
	RunAll(ctx context.Context) []runner.Result
}

// BuildFunc turns a freshly loaded config into a runner.
type BuildFunc func(cfg *config.Config) Runner

type Daemon struct {
	path     string
	build    BuildFunc
	logger   *slog.Logger
	debounce time.Duration

	mu     sync.RWMutex
	runner Runner
	spec   string
	entry  cron.EntryID
	cron   *cron.Cron
}

// New creates a daemon for the config loaded from path.
func New(path string, cfg *config.Config, build BuildFunc, logger *slog.Logger) *Daemon {
	return &Daemon{
		path:     path,
		build:    build,
		logger:   logger,
		debounce: defaultDebounce,
		runner:   build(cfg),
		spec:     Spec(cfg.Schedule),
	}
}

// Spec returns the cron spec for a schedule: the cron expression if set,
// otherwise "@every <interval>".
func Spec(s config.Schedule) string {
	if s.Cron != "" {
		return s.Cron
	}
	interval := DefaultInterval
	if d, err := time.ParseDuration(s.Interval); err == nil && d > 0 {
		interval = d
	}
	return "@every " + interval.String()
}

// Run probes immediately, then on every tick of the schedule, until ctx is
// done. Overlapping runs are skipped. It returns once the in-flight run has
// finished.
func (d *Daemon) Run(ctx context.Context) error {
	cronLog := cron.PrintfLogger(slog.NewLogLogger(d.logger.Handler(), slog.LevelWarn))
	d.cron = cron.New(
		cron.WithParser(config.CronParser),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		cron.WithLogger(cronLog),
	)

	d.mu.Lock()
	id, err := d.cron.AddFunc(d.spec, func() { d.tick(ctx) })
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("scheduling %q: %w", d.spec, err)
	}
	d.entry = id
	d.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		return fmt.Errorf("watching config: %w", err)
	}

	d.logger.Info("daemon started", "schedule", d.spec, "config", d.path)
	d.cron.Start()

	// The first run is outside cron's bookkeeping, so Stop does not wait for it.
	var first sync.WaitGroup
	first.Go(d.cron.Entry(id).WrappedJob.Run)

	d.watch(ctx, watcher)

	<-d.cron.Stop().Done()
	first.Wait()
	d.logger.Info("daemon stopped")
	return nil
}

func (d *Daemon) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	d.mu.RLock()
	r := d.runner
	d.mu.RUnlock()

	results := r.RunAll(ctx)
	unhealthy := 0
	for _, res := range results {
		if !res.Healthy() {
			unhealthy++
		}
	}
	d.logger.Info("scheduled run finished", "status", runner.Status(results), "unhealthy", unhealthy)
}

func (d *Daemon) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(d.path)
	var reload <-chan time.Time
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(d.debounce)
			reload = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("config watcher error", "error", err)
		case <-reload:
			reload = nil
			d.reload(ctx)
		}
	}
}

// reload swaps in a runner for the new config. An invalid config is logged
// and the previous runner keeps going.
func (d *Daemon) reload(ctx context.Context) {
	cfg, _, err := config.Resolve(d.path)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		d.logger.Error("config reload failed, keeping previous config", "error", err)
		return
	}

	r := d.build(cfg)
	spec := Spec(cfg.Schedule)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.runner = r
	if spec != d.spec {
		id, err := d.cron.AddFunc(spec, func() { d.tick(ctx) })
		if err != nil {
			d.logger.Error("rescheduling failed, keeping previous schedule", "schedule", spec, "error", err)
		} else {
			d.cron.Remove(d.entry)
			d.entry, d.spec = id, spec
		}
	}
	d.logger.Info("config reloaded", "schedule", d.spec, "endpoints", len(cfg.Endpoints))
}
