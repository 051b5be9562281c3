package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindd/internal/config"
	rtsup "remindd/internal/runtime/supervisor"
	logx "remindd/pkg/logx"
)

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// A reload is committed only if every component accepts it.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		sc, err := mapSchedulerConfig(cfg)
		if err != nil {
			return err
		}
		if sc.Spec != "" {
			if err := a.loop.Validate(sc.Spec); err != nil {
				return err
			}
		}
		if _, err := mapDispatchConfig(cfg); err != nil {
			return err
		}
		_, err = mapAdminConfig(cfg)
		return err
	})

	if err := a.loop.Start(a.sup.Context()); err != nil {
		return err
	}
	a.admin.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.GoRestart("systemd.watchdog", a.watchdog)

	notifyReady(a.log)
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("storage", a.store.Driver()),
		logx.Bool("scheduler", a.loop.Snapshot().Enabled),
	)
	return nil
}

// reloadLoop applies published configs, coalescing bursts to the latest.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		var newCfg *config.Config
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub:
			if !ok {
				return
			}
			newCfg = c
		}
	drain:
		for {
			select {
			case newer, ok := <-sub:
				if !ok {
					return
				}
				if newer != nil {
					newCfg = newer
				}
			default:
				break drain
			}
		}
		if newCfg == nil {
			continue
		}

		sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
		lastApplied = newCfg
		if len(sections) == 0 {
			a.log.Info("config reloaded (no changes)")
			continue
		}
		a.apply(ctx, newCfg, sections)
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		a.log.Info("config reloaded", fields...)
	}
}

func (a *App) apply(ctx context.Context, cfg *config.Config, sections []string) {
	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(cfg))
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "scheduler":
			sc, err := mapSchedulerConfig(cfg)
			if err != nil {
				a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
				continue
			}
			was := a.loop.Snapshot().Enabled
			a.loop.Apply(sc)
			switch {
			case was && !sc.Enabled:
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schedulerStopBound(cfg))
				if err := a.loop.Stop(stopCtx); err != nil {
					a.log.Warn("scheduler stop incomplete", logx.Err(err))
				}
				cancel()
				a.log.Info("scheduler disabled via config")
			case !was && sc.Enabled:
				if err := a.loop.Start(ctx); err != nil {
					a.log.Warn("scheduler start failed", logx.Err(err))
				} else {
					a.log.Info("scheduler enabled via config")
				}
			}
		case "delivery":
			dc, err := mapDispatchConfig(cfg)
			if err != nil {
				a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
				continue
			}
			a.disp.Apply(dc)
		case "admin":
			ac, err := mapAdminConfig(cfg)
			if err != nil {
				a.log.Warn("invalid admin config; keeping previous", logx.Err(err))
				continue
			}
			a.admin.Reconfigure(ctx, ac)
		}
	}
}

// StopTimeout is the default overall bound for Stop: the scheduler's wait for
// a running tick plus room for the remaining steps.
func (a *App) StopTimeout() time.Duration {
	return schedulerStopBound(a.cfgm.Get()) + stopMargin
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping(a.log)

	a.sup.Cancel()

	// step bounds one shutdown action so a stuck component cannot stall the
	// rest. It reports whether fn finished cleanly in time.
	step := func(name string, max time.Duration, fn func(context.Context) error) bool {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			max = min(max, time.Until(dl))
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline passed)", logx.String("name", name))
			return false
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				return false
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
			return true
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
			return false
		}
	}

	// The scheduler goes first so an in-flight tick can settle its reservation.
	idle := step("scheduler", schedulerStopBound(a.cfgm.Get()), a.loop.Stop)
	step("admin", 2*time.Second, func(c context.Context) error { a.admin.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	if idle {
		step("storage", 1*time.Second, func(context.Context) error { return a.store.Close() })
	} else {
		a.log.Warn("tick still running; storage left open")
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
