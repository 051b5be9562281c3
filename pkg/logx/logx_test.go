package logx

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestFileSinkFollowsApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remindd.log")
	cfg := Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}
	svc, log := New(cfg)
	defer svc.Close()

	tickLog := log.With(String("tick", "t-1"))
	tickLog.Debug("hidden")
	tickLog.Warn("not delivered", Int64("task", 7), Err(errors.New("HTTP 502")), Err(nil))

	cfg.Level = "debug"
	svc.Apply(cfg)
	tickLog.Debug("now visible", Stack(""))
	require.NoError(t, svc.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "t-1", lines[0]["tick"])
	assert.EqualValues(t, 7, lines[0]["task"])
	assert.Equal(t, "HTTP 502", lines[0]["err"])
	assert.Contains(t, lines[0]["caller"], "logx_test.go:")
	assert.Equal(t, "now visible", lines[1]["message"])
	assert.NotContains(t, lines[1], "stack")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("dropped")
	assert.False(t, Nop().IsZero())
	assert.Contains(t, StackTrace(1, 4), "logx_test.go")
}
