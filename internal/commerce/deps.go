package commerce

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

// Deps are the collaborators shared by every service of this package.
type Deps struct {
	Store     Repository
	Publisher Publisher
	Producer  string // service name stamped on events
	Log       *slog.Logger
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// outbox collects what a transaction wants to happen once it has committed.
type outbox struct {
	producer string
	events   []Event
	hooks    []func()
}

func (o *outbox) reset() {
	o.events = o.events[:0]
	o.hooks = o.hooks[:0]
}

func (o *outbox) add(topic, eventType, key string, payload any) error {
	ev, err := newEvent(topic, eventType, key, o.producer, payload)
	if err != nil {
		return err
	}
	o.events = append(o.events, ev)
	return nil
}

func (o *outbox) onCommit(f func()) { o.hooks = append(o.hooks, f) }

// run executes fn in one store transaction and, after commit, runs the
// collected hooks and publishes the collected events.
func (d Deps) run(ctx context.Context, fn func(ctx context.Context, tx Tx, ob *outbox) error) error {
	ob := &outbox{producer: d.Producer}
	err := d.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		ob.reset()
		return fn(ctx, tx, ob)
	})
	if IsRetryable(err) {
		return apperr.Conflict("concurrent update, retry the request", err)
	}
	if err != nil {
		return err
	}
	for _, h := range ob.hooks {
		h()
	}
	d.publish(ctx, ob.events)
	return nil
}

// wrapInternal returns err unchanged when it already carries an apperr code
// and wraps it as an internal error otherwise.
func wrapInternal(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}

// publish is fire-and-forget: a broker failure never undoes a committed transaction.
func (d Deps) publish(ctx context.Context, events []Event) {
	for _, ev := range events {
		if err := d.Publisher.Publish(ctx, ev); err != nil {
			metrics.EventsPublished.WithLabelValues(ev.Topic, "error").Inc()
			d.Log.WarnContext(ctx, "publish event failed",
				"topic", ev.Topic, "event_type", ev.Envelope.EventType, "key", ev.Key, "error", err)
			continue
		}
		metrics.EventsPublished.WithLabelValues(ev.Topic, "ok").Inc()
	}
}
