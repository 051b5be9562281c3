package admin

import (
	"context"
	"encoding/json"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "remindd/pkg/logx"
)

// Handler builds the routes for the current config.
func (s *Service) Handler() http.Handler {
	s.mu.Lock()
	cur := s.cfg
	s.mu.Unlock()

	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(cur.Token, h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", wrap(s.healthz))
	mux.Handle("GET /metrics", wrap(promhttp.Handler().ServeHTTP))
	mux.HandleFunc("GET /debug/reminders", wrap(s.reminders))
	mux.HandleFunc("GET /calendar.ics", wrap(s.calendar))
	if cur.Pprof {
		mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))
	}
	return mux
}

func (s *Service) healthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			s.log.Warn("health check failed", logx.Err(err))
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

type snapshotView struct {
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	Spec      string    `json:"spec"`
	Timezone  string    `json:"timezone"`
	Retention string    `json:"retention"`
	Next      time.Time `json:"next,omitzero"`
	Prev      time.Time `json:"prev,omitzero"`
	Ticks     uint64    `json:"ticks"`
	Last      *tickView `json:"last_tick,omitempty"`
}

type tickView struct {
	ID          string    `json:"id"`
	At          time.Time `json:"at"`
	Minute      string    `json:"minute"`
	Debounced   bool      `json:"debounced"`
	NoSettings  bool      `json:"no_settings"`
	Interrupted bool      `json:"interrupted,omitempty"`
	Error       string    `json:"error,omitempty"`
	Evaluated   int       `json:"evaluated"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Errored     int       `json:"errored"`
	Swept       int64     `json:"swept"`
	CacheSize   int       `json:"cache_size"`
	Took        string    `json:"took"`
}

func (s *Service) reminders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reminders == nil {
		http.Error(w, "scheduler unavailable", http.StatusServiceUnavailable)
		return
	}
	items, err := s.deps.Reminders.Preview(r.Context())
	if err != nil {
		s.log.Warn("reminder preview failed", logx.Err(err))
		http.Error(w, "preview failed", http.StatusInternalServerError)
		return
	}

	snap := s.deps.Reminders.Snapshot()
	view := snapshotView{
		Enabled:   snap.Enabled,
		Running:   snap.Running,
		Spec:      snap.Spec,
		Timezone:  snap.Timezone,
		Retention: snap.Retention.String(),
		Next:      snap.Next,
		Prev:      snap.Prev,
		Ticks:     snap.Ticks,
	}
	if last := snap.Last; last.ID != "" {
		tv := &tickView{
			ID: last.ID, At: last.At, Minute: last.Minute,
			Debounced: last.Debounced, NoSettings: last.NoSettings, Interrupted: last.Interrupted,
			Evaluated: last.Evaluated, Sent: last.Sent, Failed: last.Failed,
			Skipped: last.Skipped, Errored: last.Errored, Swept: last.Swept,
			CacheSize: last.CacheSize, Took: last.Took.String(),
		}
		if last.Err != nil {
			tv.Error = last.Err.Error()
		}
		view.Last = tv
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		Scheduler snapshotView `json:"scheduler"`
		Tasks     any          `json:"tasks"`
	}{view, items})
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
