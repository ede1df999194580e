package beat

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/songsync/pkg/logger"
)

func newTestController() *Controller {
	return NewController(WithLogger(logger.Discard()))
}

func TestNewController_Builtins(t *testing.T) {
	c := newTestController()

	builtins := map[EventType]*Event{
		WeakBeat:        c.WeakBeat(),
		StrongBeat:      c.StrongBeat(),
		DenominatorBeat: c.DenominatorBeat(),
		QuarterNote:     c.QuarterNote(),
		Measure:         c.Measure(),
	}
	for typ, e := range builtins {
		if e == nil {
			t.Fatalf("built-in %v missing", typ)
		}
		if e.Key() != DefaultKey(typ) {
			t.Errorf("built-in %v has key %+v", typ, e.Key())
		}
		if c.Event(DefaultKey(typ)) != e {
			t.Errorf("built-in %v not registered", typ)
		}
	}
	if c.Events() != len(EventTypes) {
		t.Errorf("expected %d events, got %d", len(EventTypes), c.Events())
	}
}

func TestController_SubscribeIsDeferred(t *testing.T) {
	st := newTestSyncTrack(t)
	c := newTestController()

	fired := 0
	sub := c.Subscribe(func() { fired++ }, Measure)
	if sub.Event() != nil {
		t.Error("subscription should not be attached before Update")
	}

	c.Update(0, st)
	if sub.Event() != c.Measure() {
		t.Error("subscription should reuse the built-in Measure event")
	}
	if fired != 1 {
		t.Errorf("expected 1 firing, got %d", fired)
	}
}

func TestController_SubscribeFromCallback(t *testing.T) {
	st := newTestSyncTrack(t)
	c := newTestController()

	outer, inner := 0, 0
	var added *Subscription
	c.Subscribe(func() {
		outer++
		if added == nil {
			added = c.Subscribe(func() { inner++ }, QuarterNote)
		}
	}, QuarterNote)

	c.Update(0.25, st)
	if outer != 1 || inner != 0 {
		t.Fatalf("after first update outer=%d inner=%d, want 1/0", outer, inner)
	}

	c.Update(0.75, st)
	if outer != 2 || inner != 1 {
		t.Errorf("after second update outer=%d inner=%d, want 2/1", outer, inner)
	}
	if c.QuarterNote().Subscribers() != 2 {
		t.Errorf("expected 2 subscribers, got %d", c.QuarterNote().Subscribers())
	}
}

func TestController_UnsubscribeFromCallback(t *testing.T) {
	st := newTestSyncTrack(t)
	c := newTestController()

	fired := 0
	var sub *Subscription
	sub = c.Subscribe(func() {
		fired++
		c.Unsubscribe(sub)
	}, QuarterNote)

	c.Update(0.25, st)
	c.Update(0.75, st)
	c.Update(1.25, st)
	if fired != 1 {
		t.Errorf("expected 1 firing before removal took effect, got %d", fired)
	}
	if sub.Event() != nil {
		t.Error("subscription should be detached")
	}
}

func TestController_SubscribeWithOptions(t *testing.T) {
	st := newTestSyncTrack(t)
	c := newTestController()

	fired := 0
	sub := c.Subscribe(func() { fired++ }, QuarterNote, WithDivision(0.5), WithOffset(0.25))
	c.Update(0.2, st)
	if fired != 0 {
		t.Errorf("expected no firing before offset, got %d", fired)
	}

	want := Key{Type: QuarterNote, Division: 0.5, Offset: 0.25}
	if sub.Event() == nil || sub.Event().Key() != want {
		t.Fatalf("subscription attached to %+v, want %+v", sub.Event(), want)
	}
	if c.Events() != len(EventTypes)+1 {
		t.Errorf("expected a new event, got %d events", c.Events())
	}

	// eighth notes: 0.25s apart after the offset
	for _, tm := range []float64{0.25, 0.5, 0.75, 1.0} {
		c.Update(tm, st)
	}
	if fired != 4 {
		t.Errorf("expected 4 firings, got %d", fired)
	}
}

func TestController_Resubscribe(t *testing.T) {
	st := newTestSyncTrack(t)
	c := newTestController()

	sub := c.Subscribe(func() {}, WeakBeat)
	c.Update(0, st)

	c.Resubscribe(sub, Measure)
	c.Update(0, st)
	if sub.Event() != c.Measure() {
		t.Error("subscription should move to the Measure event")
	}
	if c.WeakBeat().Subscribers() != 0 {
		t.Errorf("WeakBeat should have no subscribers, got %d", c.WeakBeat().Subscribers())
	}

	// same key again is ignored with a warning
	c.Resubscribe(sub, Measure)
	c.Update(0, st)
	if c.Measure().Subscribers() != 1 {
		t.Errorf("expected 1 Measure subscriber, got %d", c.Measure().Subscribers())
	}
}

func TestController_NegativeTime(t *testing.T) {
	st := newTestSyncTrack(t)
	c := newTestController()

	fired := 0
	sub := c.Subscribe(func() { fired++ }, WeakBeat)
	c.Update(-1, st)
	if fired != 0 {
		t.Errorf("expected no firing at negative time, got %d", fired)
	}
	if sub.Event() == nil {
		t.Error("pending changes should still be applied at negative time")
	}
}

func TestController_Reset(t *testing.T) {
	st := newTestSyncTrack(t)
	c := newTestController()

	fired := 0
	c.Subscribe(func() { fired++ }, StrongBeat)
	c.Update(1, st)
	c.Update(1, st)
	c.Reset()
	c.Update(1, st)
	if fired != 2 {
		t.Errorf("expected 2 firings, got %d", fired)
	}
}

func TestController_SubscribePanics(t *testing.T) {
	c := newTestController()

	t.Run("nil callback", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		c.Subscribe(nil, WeakBeat)
	})

	t.Run("zero division", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		c.Subscribe(func() {}, WeakBeat, WithDivision(0))
	})
}

func TestHandler(t *testing.T) {
	st := newTestSyncTrack(t)
	h := NewHandler(st, WithLogger(logger.Discard()))

	if h.SyncTrack() != st {
		t.Error("SyncTrack() should return the shared track")
	}

	audio, visual := 0, 0
	h.Audio.Subscribe(func() { audio++ }, QuarterNote)
	h.Visual.Subscribe(func() { visual++ }, QuarterNote)

	h.Update(0.25, -1)
	if audio != 1 || visual != 0 {
		t.Errorf("audio=%d visual=%d, want 1/0", audio, visual)
	}

	h.Update(0.25, 0.25)
	if audio != 1 || visual != 1 {
		t.Errorf("audio=%d visual=%d, want 1/1", audio, visual)
	}

	h.Reset()
	h.Update(0.25, 0.25)
	if audio != 2 || visual != 2 {
		t.Errorf("after reset audio=%d visual=%d, want 2/2", audio, visual)
	}
}

// TestBeatCountingProperty checks that small forward steps notify exactly once per
// quarter note entered.
func TestBeatCountingProperty(t *testing.T) {
	st := newTestSyncTrack(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("one firing per boundary crossed", prop.ForAll(
		func(steps int, step float64) bool {
			c := newTestController()
			fired := 0
			c.Subscribe(func() { fired++ }, QuarterNote)

			distinct := 0
			last := -1
			for i := 0; i <= steps; i++ {
				tm := float64(i) * step
				c.Update(tm, st)

				count := int(st.GetQuarterNotePosition(st.TimeToTick(tm)))
				if count != last {
					distinct++
					last = count
				}
			}
			if fired != distinct {
				t.Logf("steps=%d step=%v: fired %d, want %d", steps, step, fired, distinct)
				return false
			}
			return true
		},
		gen.IntRange(1, 200),
		gen.Float64Range(0.01, 0.49),
	))

	properties.TestingRun(t)
}
