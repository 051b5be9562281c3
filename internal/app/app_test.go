package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "remindd.yaml")
	body = "storage:\n  driver: sqlite\n  path: " + filepath.Join(dir, "remindd.db") + "\n" + body
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewAppSeedsDefaultSettings(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, writeConfig(t, "scheduler:\n  enabled: false\n"))
	require.NoError(t, err)
	defer app.Close()

	settings, err := app.Tasks().Settings(ctx)
	require.NoError(t, err)
	days := make([]int, 0, len(settings))
	for _, s := range settings {
		days = append(days, s.DaysBefore)
	}
	assert.ElementsMatch(t, []int{30, 7, 1, 0}, days)

	n, err := app.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewAppWithoutSeeding(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, writeConfig(t, "scheduler:\n  seed_default_settings: false\n"))
	require.NoError(t, err)
	defer app.Close()

	settings, err := app.Tasks().Settings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings)
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	_, err := NewApp(context.Background(), writeConfig(t, "scheduler:\n  poll: whenever\n"))
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := NewApp(ctx, writeConfig(t, "scheduler:\n  enabled: true\n  poll: 1h\n"))
	require.NoError(t, err)

	require.NoError(t, app.Start(ctx))
	snap := app.Scheduler().Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, "@every 1h0m0s", snap.Spec)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, app.Stop(stopCtx, StopSIGTERM))
	assert.False(t, app.Scheduler().Snapshot().Running)
	<-app.Done()
}

func TestMappingDefaults(t *testing.T) {
	var cfg config.Config
	sc, err := mapSchedulerConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, sc.Retention)

	st, err := mapStorageConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Driver)
	assert.Equal(t, "./remindd.db", st.Path)

	ac, err := mapAdminConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8086", ac.Addr)

	tc := mapTasksConfig(&cfg)
	assert.Equal(t, "Asia/Shanghai", tc.DefaultTimezone)
	assert.Equal(t, "10:30", tc.DefaultNotifyAt)
	assert.True(t, seedDefaults(&cfg))
}

func TestShutdownBoundsFollowDeliveryTimeout(t *testing.T) {
	assert.Equal(t, 15*time.Second, schedulerStopBound(&config.Config{}))
	assert.Equal(t, 65*time.Second, schedulerStopBound(&config.Config{Delivery: config.DeliveryConfig{Timeout: "1m"}}))

	app, err := NewApp(context.Background(), writeConfig(t, "delivery:\n  timeout: 20s\n"))
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, 30*time.Second, app.StopTimeout())
}
