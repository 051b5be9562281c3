package config

import (
	"sort"
	"strings"

	logx "remindd/pkg/logx"
)

// SummarizeConfigChange returns the changed sections plus log-safe attrs.
// Tokens and DSNs are reported only as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	ost, nst := oldCfg.Storage, newCfg.Storage
	if ost != nst {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nst.Driver)),
			logx.Bool("storage.dsn_set", strings.TrimSpace(nst.DSN) != ""),
			logx.Bool("storage.restart_required", true),
		)
	}

	if !sameScheduler(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.poll", strings.TrimSpace(newCfg.Scheduler.Poll)),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.retention", strings.TrimSpace(newCfg.Scheduler.Retention)),
		)
	}

	od, nd := oldCfg.Delivery, newCfg.Delivery
	if od.Timeout != nd.Timeout || od.RatePerSec != nd.RatePerSec || od.UserAgent != nd.UserAgent ||
		od.Telegram.APIURL != nd.Telegram.APIURL || od.Telegram.Token != nd.Telegram.Token {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.String("delivery.timeout", strings.TrimSpace(nd.Timeout)),
			logx.Int("delivery.rate_per_sec", nd.RatePerSec),
			logx.Bool("delivery.telegram_token_set", strings.TrimSpace(nd.Telegram.Token) != ""),
		)
	}

	if oldCfg.Admin != newCfg.Admin {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", newCfg.Admin.Enabled),
			logx.String("admin.addr", strings.TrimSpace(newCfg.Admin.Addr)),
			logx.Bool("admin.token_set", strings.TrimSpace(newCfg.Admin.Token) != ""),
			logx.Bool("admin.pprof", newCfg.Admin.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func sameScheduler(a, b SchedulerConfig) bool {
	seed := func(p *bool) bool { return p == nil || *p }
	return a.Enabled == b.Enabled &&
		a.Poll == b.Poll &&
		a.Retention == b.Retention &&
		a.Timezone == b.Timezone &&
		a.DefaultTimezone == b.DefaultTimezone &&
		a.DefaultNotifyTime == b.DefaultNotifyTime &&
		seed(a.SeedDefaultSettings) == seed(b.SeedDefaultSettings)
}
