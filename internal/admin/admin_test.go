package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/reminder"
	"remindd/internal/scheduler"
	logx "remindd/pkg/logx"
)

type fakeReminders struct {
	items []scheduler.PreviewItem
	err   error
	snap  scheduler.Snapshot
}

func (f fakeReminders) Preview(context.Context) ([]scheduler.PreviewItem, error) {
	return f.items, f.err
}
func (f fakeReminders) Snapshot() scheduler.Snapshot { return f.snap }

type fakeTasks []reminder.Task

func (f fakeTasks) List(context.Context, string) ([]reminder.Task, error) { return f, nil }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, cfg Config, deps Deps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(cfg, deps, logx.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	ok := newTestServer(t, Config{}, Deps{Store: pinger{}})
	resp, body := get(t, ok.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	down := newTestServer(t, Config{}, Deps{Store: pinger{err: errors.New("db gone")}})
	resp, _ = get(t, down.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTokenRequired(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, Config{Token: "s3cret"}, Deps{})

	resp, _ := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	resp, _ = get(t, srv.URL+"/healthz", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/healthz", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/healthz?token=s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsAndPprofRoutes(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, Config{}, Deps{})
	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")

	resp, _ = get(t, srv.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	withPprof := newTestServer(t, Config{Pprof: true}, Deps{})
	resp, _ = get(t, withPprof.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDebugReminders(t *testing.T) {
	t.Parallel()
	rem := fakeReminders{
		items: []scheduler.PreviewItem{{TaskID: 7, Title: "Renew passport", Decision: "repeat", Key: "/1", WouldSend: true}},
		snap: scheduler.Snapshot{
			Enabled: true, Running: true, Spec: "@every 30s", Timezone: "Asia/Shanghai",
			Retention: 168 * time.Hour, Ticks: 3,
			Last: scheduler.Report{ID: "abc", Sent: 1, Err: errors.New("list tasks: boom")},
		},
	}
	srv := newTestServer(t, Config{}, Deps{Reminders: rem})
	resp, body := get(t, srv.URL+"/debug/reminders")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Scheduler snapshotView            `json:"scheduler"`
		Tasks     []scheduler.PreviewItem `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "168h0m0s", out.Scheduler.Retention)
	assert.Equal(t, uint64(3), out.Scheduler.Ticks)
	require.NotNil(t, out.Scheduler.Last)
	assert.Equal(t, "list tasks: boom", out.Scheduler.Last.Error)
	require.Len(t, out.Tasks, 1)
	assert.True(t, out.Tasks[0].WouldSend)

	failing := newTestServer(t, Config{}, Deps{Reminders: fakeReminders{err: errors.New("x")}})
	resp, _ = get(t, failing.URL+"/debug/reminders")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCalendarFeed(t *testing.T) {
	t.Parallel()
	tasks := fakeTasks{
		{ID: 1, Title: "Tax filing", Description: "bring receipts", Priority: "high", DueDate: "2026-10-26"},
		{ID: 2, Title: "Someday", DueDate: ""},
		{ID: 3, Title: "Broken", DueDate: "soon"},
	}
	srv := newTestServer(t, Config{}, Deps{Tasks: tasks})
	resp, body := get(t, srv.URL+"/calendar.ics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar"))

	cal, err := ical.ParseCalendar(strings.NewReader(body))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "task-1@remindd", events[0].Id())
	assert.Equal(t, "Tax filing", events[0].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20261026")
}

func TestServiceStartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, Deps{Store: pinger{}}, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	resp, body := get(t, "http://"+s.Addr()+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	assert.Empty(t, s.Addr())

	// Disabled config keeps it down.
	s.Reconfigure(ctx, Config{Enabled: false})
	assert.Empty(t, s.Addr())
}
