package app

import (
	"context"
	"fmt"
	"time"

	"remindd/internal/admin"
	"remindd/internal/config"
	"remindd/internal/dedup"
	"remindd/internal/dispatch"
	rtsup "remindd/internal/runtime/supervisor"
	"remindd/internal/scheduler"
	"remindd/internal/storage"
	"remindd/internal/tasks"
	logx "remindd/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store  *storage.Store
	ledger *dedup.Store
	disp   *dispatch.Dispatcher
	loop   *scheduler.Loop
	tasks  *tasks.Service
	admin  *admin.Service
}

// NewApp loads the config, opens storage and wires every component. Nothing
// runs in the background until Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	dispCfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	adminCfg, err := mapAdminConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if seedDefaults(cfg) {
		n, err := store.SeedDefaultSettings(ctx)
		if err != nil {
			_ = store.Close()
			_ = logSvc.Close()
			return nil, fmt.Errorf("seed default settings: %w", err)
		}
		if n > 0 {
			log.Info("seeded default reminder settings", logx.Int("count", n))
		}
	}

	ledger := dedup.New(store, dedup.NewCache(), root.With(logx.String("comp", "dedup")))
	disp := dispatch.New(dispCfg, store, root.With(logx.String("comp", "dispatch")))
	loop := scheduler.New(schedCfg, store, ledger, disp, root.With(logx.String("comp", "scheduler")))
	taskSvc := tasks.New(mapTasksConfig(cfg), store, ledger, disp, root.With(logx.String("comp", "tasks")))
	adminSvc := admin.New(adminCfg, admin.Deps{
		Reminders: loop,
		Tasks:     taskSvc,
		Store:     store,
	}, root.With(logx.String("comp", "admin")))

	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		store:  store,
		ledger: ledger,
		disp:   disp,
		loop:   loop,
		tasks:  taskSvc,
		admin:  adminSvc,
	}, nil
}

func (a *App) Log() logx.Logger           { return a.log }
func (a *App) Config() *config.Config     { return a.cfgm.Get() }
func (a *App) Tasks() *tasks.Service      { return a.tasks }
func (a *App) Scheduler() *scheduler.Loop { return a.loop }

// Sweep drops occasion records older than the configured retention.
func (a *App) Sweep(ctx context.Context) (int64, error) {
	sc, err := mapSchedulerConfig(a.cfgm.Get())
	if err != nil {
		return 0, err
	}
	n, err := a.ledger.SweepOlderThan(ctx, time.Now().Add(-sc.Retention))
	if err != nil {
		return 0, err
	}
	a.log.Info("occasion records swept", logx.Int64("removed", n), logx.Duration("retention", sc.Retention))
	return n, nil
}

// Close releases storage and log sinks of an app that was never started.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}
