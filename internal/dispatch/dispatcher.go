package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRate      = 5
	defaultUserAgent = "remindd/1"
)

// ResultKind classifies a delivery attempt.
type ResultKind int

const (
	Delivered ResultKind = iota + 1
	TargetMissing
	TransportError
)

func (k ResultKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case TargetMissing:
		return "target_missing"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of Send. Detail carries the transport's reason for
// anything but Delivered.
type Result struct {
	Kind   ResultKind
	Detail string
}

func (r Result) OK() bool { return r.Kind == Delivered }

func (r Result) String() string {
	if r.Detail == "" {
		return r.Kind.String()
	}
	return r.Kind.String() + ": " + r.Detail
}

// Config controls outbound delivery.
type Config struct {
	Timeout    time.Duration
	RatePerSec int
	UserAgent  string
	Telegram   TelegramConfig
}

type TelegramConfig struct {
	Token  string
	APIURL string
}

// TargetResolver looks up an active target. ok is false when the target is
// unknown or disabled.
type TargetResolver interface {
	Target(ctx context.Context, id int64) (t reminder.Target, ok bool, err error)
}

// Transport performs a single delivery. A nil error means delivered.
type Transport interface {
	Deliver(ctx context.Context, t reminder.Target, text string) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, t reminder.Target, text string) error

func (f TransportFunc) Deliver(ctx context.Context, t reminder.Target, text string) error {
	return f(ctx, t, text)
}

type Option func(*Dispatcher)

// WithTransport registers (or replaces) the transport for a target kind.
func WithTransport(kind string, tr Transport) Option {
	return func(d *Dispatcher) { d.transports[kind] = tr }
}

// WithHTTPClient replaces the client used by the built-in HTTP transports.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	mu         sync.RWMutex
	cfg        Config
	limiter    *rate.Limiter
	targets    TargetResolver
	transports map[string]Transport
	client     *http.Client
	log        logx.Logger
}

func New(cfg Config, targets TargetResolver, log logx.Logger, opts ...Option) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		targets:    targets,
		transports: map[string]Transport{},
		log:        log,
	}
	d.applyLocked(cfg)
	for _, o := range opts {
		o(d)
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: d.cfg.Timeout}
	}
	d.registerDefaults()
	return d
}

func (d *Dispatcher) registerDefaults() {
	hw := &httpTransport{dispatcher: d}
	if _, ok := d.transports[reminder.TargetWeCom]; !ok {
		d.transports[reminder.TargetWeCom] = TransportFunc(hw.deliverWeCom)
	}
	if _, ok := d.transports[reminder.TargetWebhook]; !ok {
		d.transports[reminder.TargetWebhook] = TransportFunc(hw.deliverWebhook)
	}
	if _, ok := d.transports[reminder.TargetTelegram]; !ok {
		d.transports[reminder.TargetTelegram] = &telegramTransport{dispatcher: d}
	}
}

// Apply swaps timeout, rate and credentials at runtime (config reload).
func (d *Dispatcher) Apply(cfg Config) {
	d.mu.Lock()
	d.applyLocked(cfg)
	d.mu.Unlock()
}

func (d *Dispatcher) applyLocked(cfg Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRate
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (d *Dispatcher) config() (Config, *rate.Limiter) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg, d.limiter
}

// Send delivers text to the target once. It never retries.
func (d *Dispatcher) Send(ctx context.Context, targetID int64, text string) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, limiter := d.config()

	target, ok, err := d.targets.Target(ctx, targetID)
	if err != nil {
		sendTotal.WithLabelValues("none", "error").Inc()
		return Result{Kind: TransportError, Detail: fmt.Sprintf("resolve target %d: %v", targetID, err)}
	}
	if !ok {
		sendTotal.WithLabelValues("none", "target_missing").Inc()
		return Result{Kind: TargetMissing, Detail: fmt.Sprintf("target %d not found or inactive", targetID)}
	}

	tr, ok := d.transports[target.Kind]
	if !ok {
		sendTotal.WithLabelValues(target.Kind, "error").Inc()
		return Result{Kind: TransportError, Detail: fmt.Sprintf("unsupported target kind %q", target.Kind)}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := limiter.Wait(ctx); err != nil {
		sendTotal.WithLabelValues(target.Kind, "error").Inc()
		return Result{Kind: TransportError, Detail: "rate limit: " + err.Error()}
	}

	start := time.Now()
	err = tr.Deliver(ctx, target, text)
	sendDuration.WithLabelValues(target.Kind).Observe(time.Since(start).Seconds())
	if err != nil {
		sendTotal.WithLabelValues(target.Kind, "error").Inc()
		d.log.Warn("delivery failed",
			logx.Int64("target", target.ID),
			logx.String("kind", target.Kind),
			logx.Err(err),
		)
		return Result{Kind: TransportError, Detail: err.Error()}
	}
	sendTotal.WithLabelValues(target.Kind, "delivered").Inc()
	d.log.Debug("delivered", logx.Int64("target", target.ID), logx.String("kind", target.Kind), logx.Duration("took", time.Since(start)))
	return Result{Kind: Delivered}
}
