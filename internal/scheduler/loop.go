package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"remindd/internal/dedup"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

const minuteLayout = "2006-01-02 15:04"

// Loop is the reminder scan loop. Tick may also be called directly (tests,
// the CLI); ticks never overlap.
type Loop struct {
	mu     sync.Mutex
	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	entry  cron.EntryID
	base   context.Context
	ticks  uint64
	last   Report

	// tickMu serializes scans; fields below it are owned by the running tick.
	tickMu     sync.Mutex
	lastMinute string
	revs       map[int64]int64

	stopping atomic.Bool

	src    Source
	ledger *dedup.Store
	sender Sender
	clock  reminder.Clock
	log    logx.Logger
}

type Option func(*Loop)

// WithClock injects the time source.
func WithClock(c reminder.Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

func New(cfg Config, src Source, ledger *dedup.Store, sender Sender, log logx.Logger, opts ...Option) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{
		src:    src,
		ledger: ledger,
		sender: sender,
		clock:  reminder.SystemClock(),
		log:    log,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	for _, o := range opts {
		o(l)
	}
	l.applyLocked(cfg)
	return l
}

// Apply swaps the config. A changed cadence restarts the cron runner; a tick
// still running on the old runner finishes on its own.
func (l *Loop) Apply(cfg Config) {
	l.mu.Lock()
	oldSpec := l.cfg.Spec
	l.applyLocked(cfg)
	var stopped context.Context
	if l.c != nil && oldSpec != l.cfg.Spec {
		stopped = l.restartLocked()
	}
	l.mu.Unlock()

	// Waited outside l.mu: the running job needs it to finish.
	if stopped != nil {
		<-stopped.Done()
	}
}

func (l *Loop) applyLocked(cfg Config) {
	cfg = cfg.withDefaults()
	loc, err := reminder.LoadZone(cfg.Timezone)
	if err != nil {
		l.log.Warn("invalid scheduler timezone; using UTC", logx.String("tz", cfg.Timezone), logx.Err(err))
		loc = time.UTC
	}
	l.cfg = cfg
	l.loc = loc
}

// Validate checks a cadence spec without starting anything.
func (l *Loop) Validate(spec string) error {
	if _, err := l.parser.Parse(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("scheduler spec %q: %w", spec, err)
	}
	return nil
}

// Start begins ticking on the configured cadence. Ticks run on a context
// detached from ctx's cancellation, so Stop lets a tick in flight finish.
func (l *Loop) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c != nil {
		return nil
	}
	if !l.cfg.Enabled {
		l.log.Info("scheduler disabled")
		return nil
	}
	l.base = context.WithoutCancel(ctx)
	l.stopping.Store(false)
	if err := l.startLocked(); err != nil {
		return err
	}
	l.log.Info("scheduler started", logx.String("spec", l.cfg.Spec), logx.String("tz", l.loc.String()))
	return nil
}

func (l *Loop) startLocked() error {
	cl := cronLogger{log: l.log.With(logx.String("comp", "cron"))}
	c := cron.New(
		cron.WithParser(l.parser),
		cron.WithLocation(l.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	base := l.base
	id, err := c.AddFunc(l.cfg.Spec, func() { l.Tick(base) })
	if err != nil {
		return fmt.Errorf("scheduler spec %q: %w", l.cfg.Spec, err)
	}
	l.c, l.entry = c, id
	c.Start()
	return nil
}

// restartLocked swaps in a runner for the current spec and returns the old
// runner's stop context.
func (l *Loop) restartLocked() context.Context {
	stopped := l.c.Stop()
	l.c = nil
	if err := l.startLocked(); err != nil {
		l.log.Error("scheduler restart failed", logx.Err(err))
		return stopped
	}
	l.log.Info("scheduler restarted", logx.String("spec", l.cfg.Spec))
	return stopped
}

// Stop halts the cadence and waits, bounded by ctx, for a running tick to
// finish the delivery in hand. No new reservation is taken once Stop begins.
// It returns ctx's error when a tick is still running at the deadline.
func (l *Loop) Stop(ctx context.Context) error {
	start := time.Now()
	l.stopping.Store(true)
	l.mu.Lock()
	c := l.c
	l.c = nil
	l.mu.Unlock()

	var cronDone <-chan struct{}
	if c != nil {
		cronDone = c.Stop().Done()
	}
	idle := make(chan struct{})
	go func() {
		if cronDone != nil {
			<-cronDone
		}
		l.tickMu.Lock()
		l.tickMu.Unlock()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		l.log.Warn("scheduler stop timed out; tick still running", logx.Duration("waited", time.Since(start)))
		return ctx.Err()
	}
	if c != nil {
		l.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	}
	return nil
}

// Tick runs one scan. Calls within the same minute as the last completed
// scan are no-ops.
func (l *Loop) Tick(ctx context.Context) Report {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	l.mu.Lock()
	cfg, loc := l.cfg, l.loc
	l.mu.Unlock()

	now := l.clock.Now()
	rep := Report{ID: uuid.NewString(), At: now, Minute: now.In(loc).Format(minuteLayout)}
	log := l.log.With(logx.String("tick", rep.ID))

	if rep.Minute == l.lastMinute {
		rep.Debounced = true
		ticksTotal.WithLabelValues("debounced").Inc()
		return rep
	}
	l.mu.Lock()
	l.ticks++
	l.mu.Unlock()

	if now.In(loc).Minute() == 0 {
		l.sweep(ctx, log, now.Add(-cfg.Retention), &rep)
	}

	settings, err := l.src.ActiveSettings(ctx)
	if err != nil {
		return l.abort(log, rep, fmt.Errorf("list settings: %w", err))
	}
	if len(settings) == 0 {
		log.Warn("no active reminder settings; nothing to do")
		rep.NoSettings = true
		l.lastMinute = rep.Minute
		ticksTotal.WithLabelValues("no_settings").Inc()
		return l.publish(rep)
	}
	tasks, err := l.src.OpenTasks(ctx)
	if err != nil {
		return l.abort(log, rep, fmt.Errorf("list tasks: %w", err))
	}

	l.syncRevisions(tasks)

	start := time.Now()
	for _, t := range tasks {
		if l.stopping.Load() {
			rep.Interrupted = true
			break
		}
		l.handleTask(ctx, log, cfg, t, settings, now, &rep)
	}
	rep.Took = time.Since(start)
	rep.CacheSize = l.ledger.Cache().Len()
	if rep.Interrupted {
		log.Info("tick interrupted by stop", logx.Int("evaluated", rep.Evaluated), logx.Int("sent", rep.Sent))
		return l.publish(rep)
	}
	l.lastMinute = rep.Minute
	l.publish(rep)

	ticksTotal.WithLabelValues("scanned").Inc()
	tickDuration.Observe(rep.Took.Seconds())
	cacheEntries.Set(float64(rep.CacheSize))

	fields := []logx.Field{
		logx.Int("tasks", len(tasks)),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Int("skipped", rep.Skipped),
		logx.Int("errored", rep.Errored),
		logx.Int("cache", rep.CacheSize),
		logx.Duration("took", rep.Took),
	}
	if rep.Sent+rep.Failed+rep.Errored > 0 {
		log.Info("tick done", fields...)
	} else {
		log.Debug("tick done", fields...)
	}
	return rep
}

// syncRevisions evicts the cached keys of tasks whose row was rewritten since
// the previous scan or that left the open set. Edits arrive from other
// processes, which cannot reach this cache.
func (l *Loop) syncRevisions(tasks []reminder.Task) {
	seen := make(map[int64]int64, len(tasks))
	for _, t := range tasks {
		seen[t.ID] = t.Revision
		if prev, ok := l.revs[t.ID]; ok && prev == t.Revision {
			continue
		}
		if n := l.ledger.EvictTask(t.ID); n > 0 {
			l.log.Debug("task changed; cached occasions evicted", logx.Int64("task", t.ID), logx.Int("evicted", n))
		}
	}
	for id := range l.revs {
		if _, ok := seen[id]; !ok {
			l.ledger.EvictTask(id)
		}
	}
	l.revs = seen
}

func (l *Loop) abort(log logx.Logger, rep Report, err error) Report {
	rep.Err = err
	log.Error("tick abandoned", logx.Err(err))
	ticksTotal.WithLabelValues("aborted").Inc()
	return l.publish(rep)
}

func (l *Loop) publish(rep Report) Report {
	l.mu.Lock()
	l.last = rep
	l.mu.Unlock()
	return rep
}

func (l *Loop) sweep(ctx context.Context, log logx.Logger, cutoff time.Time, rep *Report) {
	n, err := l.ledger.SweepOlderThan(ctx, cutoff)
	if err != nil {
		log.Error("occasion sweep failed", logx.Err(err))
		return
	}
	rep.Swept = n
	sweptTotal.Add(float64(n))
	if n > 0 {
		log.Info("occasion log swept", logx.Int64("deleted", n), logx.Time("before", cutoff))
	}
}

// handleTask evaluates one task and delivers its occasion if due. Errors and
// panics stay inside the task.
func (l *Loop) handleTask(ctx context.Context, log logx.Logger, cfg Config, t reminder.Task, settings []reminder.Setting, now time.Time, rep *Report) {
	log = log.With(logx.Int64("task", t.ID))
	var reserved string
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		rep.Errored++
		occasionsTotal.WithLabelValues("errored").Inc()
		log.Error("panic while handling task",
			logx.Any("panic", r),
			logx.Stack(logx.StackTrace(3, 32)),
		)
		if reserved != "" {
			if err := l.ledger.Release(ctx, t.ID, reserved); err != nil {
				log.Error("release after panic failed", logx.String("key", reserved), logx.Err(err))
			}
		}
	}()

	ev, err := reminder.Evaluate(t, settings, now, cfg.DefaultNotifyAt, cfg.DefaultTimezone)
	if err != nil {
		rep.Errored++
		occasionsTotal.WithLabelValues("errored").Inc()
		log.Warn("task skipped", logx.Err(err))
		return
	}
	rep.Evaluated++
	if !ev.Due() {
		return
	}

	key := ev.Occasion.Key()
	log = log.With(logx.String("key", key))
	handled, err := l.ledger.AlreadyHandled(ctx, t.ID, key)
	if err != nil {
		rep.Errored++
		occasionsTotal.WithLabelValues("errored").Inc()
		log.Error("dedup lookup failed", logx.Err(err))
		return
	}
	if handled {
		rep.Skipped++
		occasionsTotal.WithLabelValues("skipped").Inc()
		return
	}

	if l.stopping.Load() {
		return
	}
	res, err := l.ledger.Reserve(ctx, ev.Occasion.Record(now))
	if err != nil {
		rep.Errored++
		occasionsTotal.WithLabelValues("errored").Inc()
		log.Error("reserve failed", logx.Err(err))
		return
	}
	if res == dedup.AlreadyReserved {
		rep.Skipped++
		occasionsTotal.WithLabelValues("skipped").Inc()
		return
	}
	reserved = key

	// The row may have been rewritten after it was listed. Any write that
	// lands after this check releases the reservation on its own.
	rev, ok, err := l.src.TaskRevision(ctx, t.ID)
	if err != nil || !ok || rev != t.Revision {
		reserved = ""
		if err != nil {
			rep.Errored++
			occasionsTotal.WithLabelValues("errored").Inc()
			log.Error("revision check failed", logx.Err(err))
		} else {
			rep.Skipped++
			occasionsTotal.WithLabelValues("skipped").Inc()
			log.Info("task changed during scan; occasion dropped", logx.Int64("revision", t.Revision), logx.Int64("current", rev))
			l.ledger.EvictTask(t.ID)
		}
		if err := l.ledger.Release(ctx, t.ID, key); err != nil {
			log.Error("release failed", logx.Err(err))
		}
		return
	}

	result := l.sender.Send(ctx, t.TargetID, reminder.Render(t, ev))
	if !result.OK() {
		reserved = ""
		rep.Failed++
		occasionsTotal.WithLabelValues("failed").Inc()
		log.Warn("reminder not delivered; will retry", logx.String("result", result.String()))
		if err := l.ledger.Release(ctx, t.ID, key); err != nil {
			log.Error("release failed", logx.Err(err))
		}
		return
	}
	reserved = ""
	rep.Sent++
	occasionsTotal.WithLabelValues("sent").Inc()
	log.Info("reminder sent", logx.String("decision", ev.Decision.String()), logx.Int("days", ev.DaysUntilDue))
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	s := Snapshot{
		Enabled:   l.cfg.Enabled,
		Running:   l.c != nil,
		Spec:      l.cfg.Spec,
		Timezone:  l.loc.String(),
		Retention: l.cfg.Retention,
	}
	if l.c != nil {
		e := l.c.Entry(l.entry)
		s.Next, s.Prev = e.Next, e.Prev
	}
	s.Ticks = l.ticks
	s.Last = l.last
	l.mu.Unlock()
	return s
}
