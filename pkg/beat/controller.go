package beat

import (
	"log/slog"

	"github.com/zurustar/songsync/pkg/logger"
	"github.com/zurustar/songsync/pkg/tempo"
)

// Subscription ties a callback to at most one Event of a Controller.
type Subscription struct {
	callback Callback
	event    *Event
}

// Event returns the event the subscription is attached to, or nil before the
// controller has applied it or after it was removed.
func (s *Subscription) Event() *Event { return s.event }

// SubscribeOption customizes the key of a subscription.
type SubscribeOption func(*Key)

// WithDivision sets the division of the subscribed event.
func WithDivision(division float64) SubscribeOption {
	return func(k *Key) { k.Division = division }
}

// WithOffset delays the subscribed event by offset seconds.
func WithOffset(offset float64) SubscribeOption {
	return func(k *Key) { k.Offset = offset }
}

type pendingChange struct {
	sub    *Subscription
	key    Key
	remove bool
}

// Controller owns a set of Events and drives them from one time value.
//
// Subscribe, Unsubscribe and Resubscribe only queue the change; queued changes
// are applied in order at the start of the next Update. They may therefore be
// called from inside a callback. A Controller is not safe for concurrent use.
type Controller struct {
	events   map[Key]*Event
	ordered  []*Event
	pending  []pendingChange
	builtins map[EventType]*Event
	log      *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for subscription warnings.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController creates a controller with one built-in event per EventType at
// division 1 and offset 0.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		events:   make(map[Key]*Event),
		builtins: make(map[EventType]*Event, len(EventTypes)),
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.Component(c.log, "beat")

	for _, typ := range EventTypes {
		c.builtins[typ] = c.eventFor(DefaultKey(typ))
	}
	return c
}

// WeakBeat returns the built-in WeakBeat event.
func (c *Controller) WeakBeat() *Event { return c.builtins[WeakBeat] }

// StrongBeat returns the built-in StrongBeat event.
func (c *Controller) StrongBeat() *Event { return c.builtins[StrongBeat] }

// DenominatorBeat returns the built-in DenominatorBeat event.
func (c *Controller) DenominatorBeat() *Event { return c.builtins[DenominatorBeat] }

// QuarterNote returns the built-in QuarterNote event.
func (c *Controller) QuarterNote() *Event { return c.builtins[QuarterNote] }

// Measure returns the built-in Measure event.
func (c *Controller) Measure() *Event { return c.builtins[Measure] }

// Event returns the live event for key, or nil if none exists yet.
func (c *Controller) Event(key Key) *Event { return c.events[key] }

// Events returns the number of live events.
func (c *Controller) Events() int { return len(c.ordered) }

// Subscribe queues cb to be called whenever the event for typ (and the given
// division and offset) crosses a boundary. Panics on a nil callback or an
// invalid key.
func (c *Controller) Subscribe(cb Callback, typ EventType, opts ...SubscribeOption) *Subscription {
	if cb == nil {
		panic("beat: nil callback")
	}
	sub := &Subscription{callback: cb}
	c.queueAdd(sub, typ, opts)
	return sub
}

// Resubscribe queues moving sub to another event. A subscription belongs to one
// event at a time.
func (c *Controller) Resubscribe(sub *Subscription, typ EventType, opts ...SubscribeOption) {
	c.queueAdd(sub, typ, opts)
}

// Unsubscribe queues the removal of sub.
func (c *Controller) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.pending = append(c.pending, pendingChange{sub: sub, remove: true})
}

func (c *Controller) queueAdd(sub *Subscription, typ EventType, opts []SubscribeOption) {
	key := DefaultKey(typ)
	for _, opt := range opts {
		opt(&key)
	}
	key.validate()
	c.pending = append(c.pending, pendingChange{sub: sub, key: key})
}

// Update applies queued subscription changes and, unless time is negative,
// updates every event.
func (c *Controller) Update(time float64, sync *tempo.SyncTrack) {
	c.applyPending()

	if time < 0 {
		return
	}
	for _, e := range c.ordered {
		e.Update(time, sync)
	}
}

// Reset resets every event so the next Update notifies again.
func (c *Controller) Reset() {
	for _, e := range c.ordered {
		e.Reset()
	}
}

func (c *Controller) applyPending() {
	if len(c.pending) == 0 {
		return
	}
	changes := c.pending
	c.pending = nil

	for _, ch := range changes {
		if ch.remove {
			if ch.sub.event == nil {
				c.log.Debug("Unsubscribe of inactive subscription ignored")
				continue
			}
			ch.sub.event.detach(ch.sub)
			continue
		}

		if ch.sub.event != nil {
			if ch.sub.event.key == ch.key {
				c.log.Warn("Subscription already attached to event", "type", ch.key.Type, "division", ch.key.Division, "offset", ch.key.Offset)
				continue
			}
			ch.sub.event.detach(ch.sub)
		}
		c.eventFor(ch.key).attach(ch.sub)
	}
}

func (c *Controller) eventFor(key Key) *Event {
	if e, ok := c.events[key]; ok {
		return e
	}
	e := NewEvent(key)
	c.events[key] = e
	c.ordered = append(c.ordered, e)
	return e
}
