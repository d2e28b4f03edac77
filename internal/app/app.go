package app

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"moon/internal/config"
	"moon/internal/loop"
	"moon/internal/scheduler"
	"moon/internal/sdnotify"
	logx "moon/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service

	sched *scheduler.Scheduler
	loop  *loop.Loop

	// configured jobs by name; touched before Run or on the loop goroutine
	jobs map[string]scheduler.ID
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Loop.Settings()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(cfg.Logging.Logx())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sched := scheduler.New(scheduler.WithLogger(log.With(logx.String("comp", "scheduler"))))
	a := &App{
		cfgm:  cfgm,
		cfg:   cfg,
		log:   log.With(logx.String("comp", "app")),
		logs:  logs,
		sched: sched,
		loop:  loop.New(sched, loopConfig(settings), log.With(logx.String("comp", "loop"))),
		jobs:  map[string]scheduler.ID{},
	}
	if err := a.syncJobs(sched, cfg.Jobs); err != nil {
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }
func (a *App) Loop() *loop.Loop                { return a.loop }

// Run drives the frame loop and the config watcher until ctx is done or the
// loop fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Systemd.Enabled {
		if _, _, err := sdnotify.InstallWatchdog(a.sched, a.log); err != nil {
			a.log.Warn("systemd watchdog setup failed", logx.Err(err))
		}
	}

	updates := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(updates)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.loop.Run(gctx) })
	g.Go(func() error { return a.cfgm.Watch(gctx) })
	g.Go(func() error {
		a.watchUpdates(gctx, updates)
		return nil
	})

	if a.cfg.Systemd.Enabled {
		sdnotify.Ready(a.log)
	}
	a.log.Info("app started", logx.Int("jobs", len(a.cfg.Jobs)), logx.String("config", a.cfgm.Path()))

	err := g.Wait()
	if a.cfg.Systemd.Enabled {
		sdnotify.Stopping(a.log)
	}
	if err != nil {
		a.log.Error("app stopped with error", logx.Err(err))
	}
	return err
}

func (a *App) Close() error { return a.logs.Close() }

func (a *App) watchUpdates(ctx context.Context, updates <-chan *config.Config) {
	prev := a.cfg
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.apply(prev, cfg)
			prev = cfg
		}
	}
}

func (a *App) apply(prev, cfg *config.Config) {
	changed, fields := config.SummarizeConfigChange(prev, cfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, fields...)...)

	for _, section := range changed {
		switch section {
		case "logging":
			a.logs.Apply(cfg.Logging.Logx())
		case "loop":
			settings, err := cfg.Loop.Settings()
			if err != nil {
				a.log.Error("loop config rejected", logx.Err(err))
				continue
			}
			a.loop.Apply(loopConfig(settings))
		case "jobs":
			jobs := cfg.Jobs
			if !a.loop.Post(func(s *scheduler.Scheduler) {
				if err := a.syncJobs(s, jobs); err != nil {
					a.log.Error("job reload failed", logx.Err(err))
				}
			}) {
				a.log.Warn("job reload dropped (loop queue full)")
			}
		case "systemd":
			a.log.Warn("systemd changes apply on restart")
		}
	}
}

func loopConfig(st config.LoopSettings) loop.Config {
	return loop.Config{TargetFPS: st.TargetFPS, MaxDelta: st.MaxDelta, StopOnError: st.StopOnError}
}
