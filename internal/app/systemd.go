package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "remindd/pkg/logx"
)

// notifyReady and notifyStopping are no-ops outside a Type=notify unit.
func notifyReady(log logx.Logger) {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("systemd ready notification failed", logx.Err(err))
	} else if sent {
		log.Debug("systemd notified ready")
	}
}

func notifyStopping(log logx.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Debug("systemd stopping notification failed", logx.Err(err))
	}
}

// watchdog pings systemd at half the WatchdogSec interval while storage
// answers. It returns immediately when the unit has no watchdog.
func (a *App) watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	a.log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, interval/4)
			err := a.store.Ping(pctx)
			cancel()
			if err != nil {
				a.log.Warn("watchdog ping skipped: storage unhealthy", logx.Err(err))
				continue
			}
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
