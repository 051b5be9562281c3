package app

import (
	"fmt"
	"strings"
	"time"

	"remindd/internal/admin"
	"remindd/internal/config"
	"remindd/internal/dispatch"
	"remindd/internal/scheduler"
	"remindd/internal/storage"
	"remindd/internal/tasks"
	logx "remindd/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver, err := config.NormalizeDriver(sc.Driver)
	if err != nil {
		return storage.Config{}, err
	}
	busy, err := config.Duration("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	out := storage.Config{Driver: driver, BusyTimeout: busy}
	switch driver {
	case "sqlite":
		out.Path = strings.TrimSpace(sc.Path)
		if out.Path == "" {
			out.Path = "./remindd.db"
		}
	case "postgres":
		out.DSN = strings.TrimSpace(sc.DSN)
		if out.DSN == "" {
			return storage.Config{}, fmt.Errorf("storage.dsn is required when storage.driver=postgres")
		}
	}
	return out, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	sc := cfg.Scheduler
	spec, err := config.PollSpec(sc.Poll)
	if err != nil {
		return scheduler.Config{}, err
	}
	retention, err := config.Duration("scheduler.retention", sc.Retention, scheduler.DefaultRetention)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:         sc.Enabled,
		Spec:            spec,
		Retention:       retention,
		Timezone:        strings.TrimSpace(sc.Timezone),
		DefaultTimezone: strings.TrimSpace(sc.DefaultTimezone),
		DefaultNotifyAt: strings.TrimSpace(sc.DefaultNotifyTime),
	}, nil
}

func mapTasksConfig(cfg *config.Config) tasks.Config {
	tz := strings.TrimSpace(cfg.Scheduler.DefaultTimezone)
	if tz == "" {
		tz = scheduler.DefaultTimezone
	}
	at := strings.TrimSpace(cfg.Scheduler.DefaultNotifyTime)
	if at == "" {
		at = scheduler.DefaultNotifyAt
	}
	return tasks.Config{DefaultTimezone: tz, DefaultNotifyAt: at}
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	dc := cfg.Delivery
	timeout, err := config.Duration("delivery.timeout", dc.Timeout, 10*time.Second)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		Timeout:    timeout,
		RatePerSec: dc.RatePerSec,
		UserAgent:  strings.TrimSpace(dc.UserAgent),
		Telegram: dispatch.TelegramConfig{
			Token:  strings.TrimSpace(dc.Telegram.Token),
			APIURL: strings.TrimSpace(dc.Telegram.APIURL),
		},
	}, nil
}

// stopMargin pads shutdown bounds past the longest single delivery.
const stopMargin = 5 * time.Second

// schedulerStopBound is how long shutdown waits for a running tick: one
// delivery at the configured timeout, then its release.
func schedulerStopBound(cfg *config.Config) time.Duration {
	dc, err := mapDispatchConfig(cfg)
	if err != nil {
		dc.Timeout = 10 * time.Second
	}
	return dc.Timeout + stopMargin
}

func mapAdminConfig(cfg *config.Config) (admin.Config, error) {
	ac := cfg.Admin
	read, err := config.Duration("admin.read_timeout", ac.ReadTimeout, 10*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	// pprof profile and trace stream for up to 30s by default.
	write, err := config.Duration("admin.write_timeout", ac.WriteTimeout, 60*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	idle, err := config.Duration("admin.idle_timeout", ac.IdleTimeout, 60*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	addr := strings.TrimSpace(ac.Addr)
	if addr == "" {
		addr = admin.DefaultAddr
	}
	return admin.Config{
		Enabled:       ac.Enabled,
		Addr:          addr,
		Token:         strings.TrimSpace(ac.Token),
		AllowInsecure: ac.AllowInsecure,
		Pprof:         ac.Pprof,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}

func seedDefaults(cfg *config.Config) bool {
	return cfg.Scheduler.SeedDefaultSettings == nil || *cfg.Scheduler.SeedDefaultSettings
}
