// Package daemon runs periodic documentation rebuilds. It schedules builds at
// a fixed interval, reloads configuration when the config file changes, and
// optionally exposes Prometheus metrics.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/deepankarm/docver/internal/config"
	"github.com/deepankarm/docver/internal/logfields"
	"github.com/deepankarm/docver/internal/metrics"
)

// BuildFunc runs one full documentation build against the given configuration.
type BuildFunc func(ctx context.Context, cfg *config.Config, jobID string) error

// Daemon schedules periodic builds and serves metrics.
type Daemon struct {
	mu        sync.RWMutex
	cfg       *config.Config
	build     BuildFunc
	registry  *prom.Registry
	scheduler gocron.Scheduler
	building  atomic.Bool
}

// New creates a daemon. registry may be nil when metrics are disabled.
func New(cfg *config.Config, build BuildFunc, registry *prom.Registry) *Daemon {
	return &Daemon{cfg: cfg, build: build, registry: registry}
}

// Config returns the current configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig swaps in a new configuration. It takes effect on the next
// scheduled build; interval changes require a restart.
func (d *Daemon) ReloadConfig(newCfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if newCfg.Daemon != nil && d.cfg.Daemon != nil && newCfg.Daemon.Interval != d.cfg.Daemon.Interval {
		slog.Warn("Daemon interval change requires restart to take effect",
			slog.Duration("old", d.cfg.Daemon.Interval), slog.Duration("new", newCfg.Daemon.Interval))
	}
	d.cfg = newCfg
	return nil
}

// Run starts the scheduler and blocks until the context is canceled. The first
// build runs immediately.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Config()
	if cfg.Daemon == nil {
		return fmt.Errorf("daemon is not configured")
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Listen != "" && d.registry != nil {
		go d.serveMetrics(ctx, cfg.Metrics.Listen)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	d.scheduler = scheduler

	job, err := scheduler.NewJob(
		gocron.DurationJob(cfg.Daemon.Interval),
		gocron.NewTask(d.executeBuild, ctx),
		gocron.WithName("periodic-build"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic build job: %w", err)
	}

	slog.Info("Starting scheduler",
		slog.String("job_id", job.ID().String()), slog.Duration("interval", cfg.Daemon.Interval))
	scheduler.Start()

	<-ctx.Done()
	slog.Info("Stopping scheduler")
	return scheduler.Shutdown()
}

// executeBuild is called by gocron for each tick. Overlapping builds are
// skipped rather than queued.
func (d *Daemon) executeBuild(ctx context.Context) {
	if !d.building.CompareAndSwap(false, true) {
		slog.Warn("Previous build still running, skipping this tick")
		return
	}
	defer d.building.Store(false)

	jobID := uuid.NewString()
	slog.Info("Executing scheduled build", logfields.JobID(jobID))

	if err := d.build(ctx, d.Config(), jobID); err != nil {
		slog.Error("Scheduled build failed", logfields.JobID(jobID), logfields.Error(err))
		return
	}
	slog.Info("Scheduled build completed", logfields.JobID(jobID))
}

func (d *Daemon) serveMetrics(ctx context.Context, listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(d.registry))

	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics listener started", slog.String("listen", listen))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Metrics listener failed", logfields.Error(err))
	}
}
