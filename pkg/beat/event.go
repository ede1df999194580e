// Package beat fires callbacks on musical boundaries (beats, quarter notes,
// measures) as song time advances against a tempo map.
package beat

import (
	"fmt"
	"math"

	"github.com/zurustar/songsync/pkg/tempo"
)

// EventType selects the beat position a BeatEvent follows.
type EventType int

const (
	// WeakBeat follows every beatline.
	WeakBeat EventType = iota
	// StrongBeat follows measure and strong beatlines.
	StrongBeat
	// DenominatorBeat follows the time signature's denominator, ignoring beatlines.
	DenominatorBeat
	// QuarterNote follows quarter notes.
	QuarterNote
	// Measure follows measures.
	Measure
)

// EventTypes lists every EventType in declaration order.
var EventTypes = []EventType{WeakBeat, StrongBeat, DenominatorBeat, QuarterNote, Measure}

func (t EventType) String() string {
	switch t {
	case WeakBeat:
		return "WeakBeat"
	case StrongBeat:
		return "StrongBeat"
	case DenominatorBeat:
		return "DenominatorBeat"
	case QuarterNote:
		return "QuarterNote"
	case Measure:
		return "Measure"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Key identifies an Event. Division scales the period: 2 fires every other beat,
// 0.5 twice per beat. Offset delays the event by that many seconds.
type Key struct {
	Type     EventType
	Division float64
	Offset   float64
}

// DefaultKey returns the key of the built-in event for typ.
func DefaultKey(typ EventType) Key {
	return Key{Type: typ, Division: 1, Offset: 0}
}

func (k Key) validate() {
	if k.Division <= 0 || math.IsNaN(k.Division) || math.IsInf(k.Division, 0) {
		panic(fmt.Sprintf("beat: invalid division %v for %v", k.Division, k.Type))
	}
	if math.IsNaN(k.Offset) {
		panic(fmt.Sprintf("beat: invalid offset for %v", k.Type))
	}
	positionFunc(k.Type)
}

// unfired is the lastFired value of an event that has not fired since creation or
// Reset. No progress count can equal it, so the next Update always fires, even
// before the first beatline where positions are negative.
const unfired = math.MinInt

// Callback is invoked when an event crosses a boundary.
type Callback func()

// Event tracks the progress of one Key and notifies its subscribers once each time
// the progress enters a new whole unit. If several units pass within one Update,
// subscribers are still notified only once.
type Event struct {
	key       Key
	rate      float64
	position  func(*tempo.SyncTrack, uint32) float64
	progress  float64
	lastFired int
	subs      []*Subscription
}

// NewEvent creates an event for key. Panics if the division is not positive or the
// event type is unknown.
func NewEvent(key Key) *Event {
	key.validate()
	return &Event{
		key:       key,
		rate:      1 / key.Division,
		position:  positionFunc(key.Type),
		lastFired: unfired,
	}
}

func positionFunc(typ EventType) func(*tempo.SyncTrack, uint32) float64 {
	switch typ {
	case WeakBeat:
		return (*tempo.SyncTrack).GetWeakBeatPosition
	case StrongBeat:
		return (*tempo.SyncTrack).GetStrongBeatPosition
	case DenominatorBeat:
		return (*tempo.SyncTrack).GetDenominatorBeatPosition
	case QuarterNote:
		return (*tempo.SyncTrack).GetQuarterNotePosition
	case Measure:
		return (*tempo.SyncTrack).GetMeasurePosition
	default:
		panic(fmt.Sprintf("beat: unhandled event type %v", typ))
	}
}

// Key returns the event's key.
func (e *Event) Key() Key { return e.key }

// CurrentProgress returns the progress computed by the last Update.
func (e *Event) CurrentProgress() float64 { return e.progress }

// CurrentCount returns the whole part of CurrentProgress.
func (e *Event) CurrentCount() int { return int(math.Floor(e.progress)) }

// Subscribers returns the number of subscriptions attached to the event.
func (e *Event) Subscribers() int { return len(e.subs) }

// Update advances the event to time (seconds) and notifies subscribers when the
// whole progress count changed since the last notification. Times before the
// event's offset are ignored.
func (e *Event) Update(time float64, sync *tempo.SyncTrack) {
	time -= e.key.Offset
	if time < 0 {
		return
	}

	tick := sync.TimeToTick(time)
	e.progress = e.position(sync, tick) * e.rate

	count := e.CurrentCount()
	if count == e.lastFired {
		return
	}
	e.lastFired = count

	for _, sub := range e.subs {
		sub.callback()
	}
}

// Reset makes the next Update notify subscribers regardless of progress.
func (e *Event) Reset() {
	e.lastFired = unfired
}

func (e *Event) attach(sub *Subscription) {
	e.subs = append(e.subs, sub)
	sub.event = e
}

func (e *Event) detach(sub *Subscription) {
	for i, s := range e.subs {
		if s == sub {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			break
		}
	}
	sub.event = nil
}
