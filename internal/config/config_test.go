package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./remindd.db
scheduler:
  enabled: true
  poll: 30s
  timezone: Asia/Shanghai
  default_notify_time: "09:00"
delivery:
  timeout: 5s
  rate_per_sec: 2
admin:
  enabled: true
  addr: 127.0.0.1:8086
`

func TestDecodeYAMLAndJSON(t *testing.T) {
	cfg, err := Decode("remindd.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "09:00", cfg.Scheduler.DefaultNotifyTime)
	assert.Equal(t, 2, cfg.Delivery.RatePerSec)
	assert.True(t, cfg.Admin.Enabled)
	assert.Nil(t, cfg.Scheduler.SeedDefaultSettings)

	cfg, err = Decode("remindd.json", []byte(`{"storage":{"driver":"postgres","dsn":"postgres://x"},"scheduler":{"seed_default_settings":false}}`))
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", cfg.Storage.DSN)
	require.NotNil(t, cfg.Scheduler.SeedDefaultSettings)
	assert.False(t, *cfg.Scheduler.SeedDefaultSettings)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("remindd.yaml", []byte("scheduler:\n  pol: 30s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pol")

	_, err = Decode("remindd.json", []byte(`{} {}`))
	require.Error(t, err)
}

func TestDecodeEnvOverrides(t *testing.T) {
	t.Setenv("REMINDD_STORAGE_DSN", "postgres://secret")
	t.Setenv("REMINDD_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("REMINDD_ADMIN_TOKEN", "s3cret")

	cfg, err := Decode("remindd.yaml", []byte("storage:\n  driver: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://secret", cfg.Storage.DSN)
	assert.Equal(t, "123:abc", cfg.Delivery.Telegram.Token)
	assert.Equal(t, "s3cret", cfg.Admin.Token)
	assert.NoError(t, Validate(cfg))
}

func TestPollSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "30s", want: "@every 30s"},
		{in: "1m", want: "@every 1m0s"},
		{in: "@every 45s", want: "@every 45s"},
		{in: "*/1 * * * *", want: "*/1 * * * *"},
		{in: "500ms", wantErr: true},
		{in: "whenever", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PollSpec(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "zero config", mutate: func(*Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "chatty" }, wantErr: "logging.level"},
		{name: "bad driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: "storage.driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = "pq" }, wantErr: "storage.dsn"},
		{name: "bad busy timeout", mutate: func(c *Config) { c.Storage.BusyTimeout = "soon" }, wantErr: "storage.busy_timeout"},
		{name: "bad poll", mutate: func(c *Config) { c.Scheduler.Poll = "often" }, wantErr: "scheduler.poll"},
		{name: "negative retention", mutate: func(c *Config) { c.Scheduler.Retention = "-1h" }, wantErr: "scheduler.retention"},
		{name: "bad zone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Base" }, wantErr: "scheduler.timezone"},
		{name: "bad notify time", mutate: func(c *Config) { c.Scheduler.DefaultNotifyTime = "25:00" }, wantErr: "default_notify_time"},
		{name: "negative rate", mutate: func(c *Config) { c.Delivery.RatePerSec = -1 }, wantErr: "rate_per_sec"},
		{name: "public admin without token", mutate: func(c *Config) {
			c.Admin.Enabled = true
			c.Admin.Addr = "0.0.0.0:8086"
		}, wantErr: "admin.addr"},
		{name: "public admin with token", mutate: func(c *Config) {
			c.Admin.Enabled = true
			c.Admin.Addr = "0.0.0.0:8086"
			c.Admin.Token = "t"
		}},
		{name: "public admin allowed insecure", mutate: func(c *Config) {
			c.Admin.Enabled = true
			c.Admin.Addr = ":8086"
			c.Admin.AllowInsecure = true
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			tt.mutate(&c)
			err := Validate(&c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	assert.True(t, IsLoopbackAddr("127.0.0.1:8086"))
	assert.True(t, IsLoopbackAddr("localhost:1"))
	assert.True(t, IsLoopbackAddr("[::1]:8086"))
	assert.False(t, IsLoopbackAddr(":8086"))
	assert.False(t, IsLoopbackAddr("10.0.0.1:8086"))
	assert.False(t, IsLoopbackAddr("garbage"))
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	oldCfg := &Config{}
	newCfg := &Config{}
	newCfg.Admin.Token = "very-secret"
	newCfg.Delivery.Telegram.Token = "123:abc"
	newCfg.Scheduler.Poll = "1m"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"admin", "delivery", "scheduler"}, changed)
	assert.NotEmpty(t, attrs)

	changed, _ = SummarizeConfigChange(newCfg, newCfg)
	assert.Empty(t, changed)
}

func TestWatchPublishesValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remindd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  poll: 30s\n"), 0o600))

	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  poll: 1m\n  timezone: Mars/Base\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  poll: 1m\n"), 0o600))

	var got *Config
	require.Eventually(t, func() bool {
		select {
		case got = <-ch:
			return got.Scheduler.Poll == "1m"
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "1m", m.Get().Scheduler.Poll)

	cancel()
	<-done
}
