package alert

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/gyaneshwarpardhi/atmsvr/internal/config"
	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
	"github.com/gyaneshwarpardhi/atmsvr/internal/metrics"
)

// route is one immutable generation of alert settings.
type route struct {
	matcher   *Matcher
	notifiers []Notifier
	perMinute int
	limiter   *rate.Limiter // nil when unlimited
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// Dispatcher routes accepted events to the configured notifiers when their
// type is alertable. Delivery failures are logged and counted, never retried.
type Dispatcher struct {
	route atomic.Pointer[route]
}

// NewDispatcher creates a Dispatcher. perMinute <= 0 disables rate limiting.
func NewDispatcher(m *Matcher, notifiers []Notifier, perMinute int) *Dispatcher {
	d := &Dispatcher{}
	d.route.Store(&route{
		matcher:   m,
		notifiers: notifiers,
		perMinute: perMinute,
		limiter:   newLimiter(perMinute),
	})
	return d
}

// FromConfig builds a Dispatcher for the alert section of the config.
func FromConfig(conf config.AlertConf) (*Dispatcher, error) {
	notifiers, err := Channels(conf)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(FromCodes(conf.Types), notifiers, conf.RatePerMinute), nil
}

// Channels builds the notifiers named in conf.Channels, in order.
func Channels(conf config.AlertConf) ([]Notifier, error) {
	reg := NewRegistry()
	reg.Register(NewMailer(conf.SMTPAddr, conf.From, conf.Recipient))
	if conf.WebhookURL != "" {
		reg.Register(NewWebhook(conf.WebhookURL))
	}
	return reg.Resolve(conf.Channels)
}

// Apply replaces the alert set, the notifiers and the rate limit with those
// of conf in one step. On error the dispatcher is left unchanged. The rate
// limiter keeps its state when the rate does not change.
func (d *Dispatcher) Apply(conf config.AlertConf) error {
	notifiers, err := Channels(conf)
	if err != nil {
		return err
	}
	old := d.route.Load()
	limiter := old.limiter
	if conf.RatePerMinute != old.perMinute {
		limiter = newLimiter(conf.RatePerMinute)
	}
	d.route.Store(&route{
		matcher:   FromCodes(conf.Types),
		notifiers: notifiers,
		perMinute: conf.RatePerMinute,
		limiter:   limiter,
	})
	return nil
}

// SwapMatcher atomically replaces the alertable set, keeping the notifiers.
func (d *Dispatcher) SwapMatcher(m *Matcher) {
	for {
		old := d.route.Load()
		next := *old
		next.matcher = m
		if d.route.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Matcher returns the current alertable set.
func (d *Dispatcher) Matcher() *Matcher {
	return d.route.Load().matcher
}

// Notifiers returns the channels alerts are currently delivered to.
func (d *Dispatcher) Notifiers() []Notifier {
	ns := d.route.Load().notifiers
	return append([]Notifier(nil), ns...)
}

// Dispatch alerts on ev if its type is alertable and reports how many
// channels delivered it.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) int {
	r := d.route.Load()
	if !r.matcher.Matches(ev.Type) {
		return 0
	}
	delivered := 0
	for _, n := range r.notifiers {
		if r.limiter != nil && !r.limiter.Allow() {
			metrics.AlertsSent.WithLabelValues(n.Channel(), "throttled").Inc()
			slog.Warn("alert throttled", "channel", n.Channel(), "origin", ev.Origin, "type", ev.Type.String())
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			metrics.AlertsSent.WithLabelValues(n.Channel(), "error").Inc()
			slog.Error("alert delivery failed", "channel", n.Channel(), "origin", ev.Origin, "type", ev.Type.String(), "err", err)
			continue
		}
		metrics.AlertsSent.WithLabelValues(n.Channel(), "success").Inc()
		delivered++
	}
	return delivered
}
