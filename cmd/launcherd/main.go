package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"launcherd/internal/config"
	"launcherd/internal/launcher"
	"launcherd/internal/services/scheduler"
	"launcherd/internal/storage"
	"launcherd/internal/workers"
	logx "launcherd/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = config.Default()
		cfgm.Commit(cfg)
	}
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg))
	defer logSvc.Close()
	cfgm.SetLogger(log.With(logx.String("svc", "config")))
	cfgm.SetValidator(func(ctx context.Context, c *config.Config) error { return validateConfig(c) })

	// Run journal (optional).
	journal, err := storage.Open(storageConfig(cfg), log.With(logx.String("svc", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if journal != nil {
		defer journal.Close()
	}

	// Periodic-task runner.
	schedCfg, err := schedulerConfig(cfg)
	if err != nil {
		return err
	}
	sched := scheduler.New(schedCfg, log.With(logx.String("svc", "scheduler")))

	// Background task launcher. Workers declare themselves now, while the
	// launcher is still collecting.
	l := launcher.New(launcher.WithLogger(log.With(logx.String("svc", "launcher"))))
	l.BindContext(ctx)
	if err := registerWorkers(cfg, l, log, journal); err != nil {
		return fmt.Errorf("register workers: %w", err)
	}

	// Periodic status line so long-running hosts leave a trace in the logs.
	_, _ = sched.AddInterval("status:report", time.Hour, 30*time.Second, func(ctx context.Context) error {
		snap := l.Snapshot()
		log.Info("status", logx.Int("tasks", snap.Dispatched), logx.Int("schedules", len(sched.Snapshot().Schedules)))
		return nil
	})

	// Order matters: the scheduler is ticking before the one-shot
	// background tasks come up, and both are running before readiness.
	if sched.Enabled() {
		sched.Start(ctx)
	}
	if err := l.Launch(); err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	sdNotify(log, daemon.SdNotifyReady)

	// Config hot reload: logging and scheduler follow the file. The
	// launcher is deliberately exempt: registration closed at Launch.
	sub := cfgm.Subscribe(1)
	defer cfgm.Unsubscribe(sub)
	go func() {
		if err := cfgm.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		for newCfg := range sub {
			applyConfig(ctx, newCfg, log, logSvc, sched)
		}
	}()

	log.Info("launcherd up", logx.String("config", cfgPath))
	<-ctx.Done()
	sdNotify(log, daemon.SdNotifyStopping)

	// Tell launched tasks to wind down; they are not waited on.
	l.Shutdown()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	sched.Stop(stopCtx)
	stopCancel()
	return nil
}

func applyConfig(ctx context.Context, cfg *config.Config, log logx.Logger, logSvc *logx.Service, sched *scheduler.Service) {
	logSvc.Apply(logConfig(cfg))

	sc, err := schedulerConfig(cfg)
	if err != nil {
		// The watch validator should have rejected this already.
		log.Warn("scheduler config rejected", logx.Err(err))
		return
	}
	sched.Apply(sc)
	if sc.Enabled {
		sched.Start(ctx)
	} else {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sched.Stop(stopCtx)
		cancel()
	}
}

func registerWorkers(cfg *config.Config, l *launcher.Launcher, log logx.Logger, journal storage.Journal) error {
	if config.EnabledOrDefault(cfg.Workers.Heartbeat.Enabled, true) {
		ivl, err := config.ParseDurationOrDefault("workers.heartbeat.interval", cfg.Workers.Heartbeat.Interval, 30*time.Second)
		if err != nil {
			return err
		}
		if err := workers.NewHeartbeat(ivl, log, journal).Register(l); err != nil {
			return err
		}
	}
	if config.EnabledOrDefault(cfg.Workers.Metrics.Enabled, true) {
		ivl, err := config.ParseDurationOrDefault("workers.metrics.interval", cfg.Workers.Metrics.Interval, time.Minute)
		if err != nil {
			return err
		}
		if err := workers.NewMetricsFlush(ivl, cfg.Workers.Metrics.RatePerSec, log, journal).Register(l); err != nil {
			return err
		}
	}
	return nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func schedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        cfg.Scheduler.Workers,
		DefaultTimeout: timeout,
		Timezone:       cfg.Scheduler.Timezone,
	}, nil
}

func storageConfig(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		busy = 0
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

// validateConfig checks everything that would otherwise only fail at
// apply time, so the watch path can reject a bad file transactionally.
func validateConfig(cfg *config.Config) error {
	if _, err := schedulerConfig(cfg); err != nil {
		return err
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if _, err := config.ParseDurationField("workers.heartbeat.interval", cfg.Workers.Heartbeat.Interval); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("workers.metrics.interval", cfg.Workers.Metrics.Interval); err != nil {
		return err
	}
	return nil
}

func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Debug("sd_notify failed", logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}
