package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "30s", "168h").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Admin     AdminConfig     `json:"admin,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the database.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./remindd.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://remindd@localhost/remindd?sslmode=disable" }
//
// REMINDD_STORAGE_DSN overrides dsn so credentials can stay out of the file.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// SchedulerConfig controls the reminder scan.
//
// Defaults (when fields are omitted/zero):
//   - poll: "30s" (a Go duration or a cron spec such as "@every 1m")
//   - retention: "168h"
//   - default_timezone: "Asia/Shanghai"
//   - default_notify_time: "10:30"
//   - timezone: default_timezone
//
// SeedDefaultSettings is a pointer so an omitted key means true.
type SchedulerConfig struct {
	Enabled             bool   `json:"enabled"`
	Poll                string `json:"poll,omitempty"`
	Retention           string `json:"retention,omitempty"`
	Timezone            string `json:"timezone,omitempty"`
	DefaultTimezone     string `json:"default_timezone,omitempty"`
	DefaultNotifyTime   string `json:"default_notify_time,omitempty"`
	SeedDefaultSettings *bool  `json:"seed_default_settings,omitempty"`
}

// DeliveryConfig controls outbound transports.
type DeliveryConfig struct {
	Timeout    string         `json:"timeout,omitempty"` // default "10s"
	RatePerSec int            `json:"rate_per_sec,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Telegram   TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty"` // do not log
	APIURL string `json:"api_url,omitempty"`
}

// AdminConfig controls the optional admin HTTP server (health, metrics,
// reminder debug view, calendar feed, pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8086").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8086"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
