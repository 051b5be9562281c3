package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// PollSpec turns scheduler.poll into a cron spec. A plain duration becomes
// "@every <d>"; anything else must parse as a cron expression.
func PollSpec(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < time.Second {
			return "", fmt.Errorf("scheduler.poll: %s is below 1s", d)
		}
		return "@every " + d.String(), nil
	}
	if _, err := cronParser.Parse(s); err != nil {
		return "", fmt.Errorf("scheduler.poll: %q is neither a duration nor a cron spec: %w", raw, err)
	}
	return s, nil
}

// NormalizeDriver maps driver aliases to "sqlite" or "postgres".
func NormalizeDriver(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql", "pq":
		return "postgres", nil
	default:
		return "", fmt.Errorf("storage.driver: unsupported %q", raw)
	}
}

// Validate checks cfg without touching the filesystem or network. All
// problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := logx.ParseLevel(cfg.Logging.Level); err != nil {
		add(fmt.Errorf("logging.level: %w", err))
	}

	// storage
	driver, err := NormalizeDriver(cfg.Storage.Driver)
	add(err)
	if driver == "postgres" && strings.TrimSpace(cfg.Storage.DSN) == "" {
		add(errors.New("storage.dsn: required for postgres (or set REMINDD_STORAGE_DSN)"))
	}
	_, err = Duration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	add(err)

	// scheduler
	_, err = PollSpec(cfg.Scheduler.Poll)
	add(err)
	_, err = Duration("scheduler.retention", cfg.Scheduler.Retention, 0)
	add(err)
	for _, z := range []struct{ path, name string }{
		{"scheduler.timezone", cfg.Scheduler.Timezone},
		{"scheduler.default_timezone", cfg.Scheduler.DefaultTimezone},
	} {
		if strings.TrimSpace(z.name) == "" {
			continue
		}
		if _, err := reminder.LoadZone(z.name); err != nil {
			add(fmt.Errorf("%s: %w", z.path, err))
		}
	}
	if s := strings.TrimSpace(cfg.Scheduler.DefaultNotifyTime); s != "" {
		if _, _, err := reminder.ParseClock(s); err != nil {
			add(fmt.Errorf("scheduler.default_notify_time: %w", err))
		}
	}

	// delivery
	_, err = Duration("delivery.timeout", cfg.Delivery.Timeout, 0)
	add(err)
	if cfg.Delivery.RatePerSec < 0 {
		add(errors.New("delivery.rate_per_sec: must be >= 0"))
	}

	// admin
	_, err = Duration("admin.read_timeout", cfg.Admin.ReadTimeout, 0)
	add(err)
	_, err = Duration("admin.write_timeout", cfg.Admin.WriteTimeout, 0)
	add(err)
	_, err = Duration("admin.idle_timeout", cfg.Admin.IdleTimeout, 0)
	add(err)
	if cfg.Admin.Enabled {
		addr := strings.TrimSpace(cfg.Admin.Addr)
		if addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				add(fmt.Errorf("admin.addr: %w", err))
			} else if !IsLoopbackAddr(addr) && strings.TrimSpace(cfg.Admin.Token) == "" && !cfg.Admin.AllowInsecure {
				add(fmt.Errorf("admin.addr: %s is not loopback; set admin.token or admin.allow_insecure", addr))
			}
		}
	}

	return errors.Join(errs...)
}

// IsLoopbackAddr reports whether host:port binds only to loopback.
// An empty host (":8086") listens on every interface.
func IsLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
