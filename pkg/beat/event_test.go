package beat

import (
	"math"
	"testing"

	"github.com/zurustar/songsync/pkg/tempo"
)

// newTestSyncTrack returns a 120 BPM 4/4 track: one quarter note every 0.5s.
func newTestSyncTrack(t *testing.T) *tempo.SyncTrack {
	t.Helper()
	st, err := tempo.New(480,
		[]tempo.TempoChange{{Tick: 0, BeatsPerMinute: 120}},
		[]tempo.TimeSignatureChange{{Tick: 0, Numerator: 4, Denominator: 4}},
	)
	if err != nil {
		t.Fatalf("failed to build sync track: %v", err)
	}
	st.GenerateBeatlines(480 * 64)
	return st
}

func countingEvent(key Key) (*Event, *int) {
	e := NewEvent(key)
	count := 0
	e.attach(&Subscription{callback: func() { count++ }})
	return e, &count
}

func TestEvent_FirstUpdateFires(t *testing.T) {
	st := newTestSyncTrack(t)
	e, count := countingEvent(DefaultKey(QuarterNote))

	e.Update(0, st)
	if *count != 1 {
		t.Errorf("expected first update to fire once, got %d", *count)
	}
	if e.CurrentCount() != 0 {
		t.Errorf("CurrentCount() = %d, want 0", e.CurrentCount())
	}
}

func TestEvent_FirstUpdateFiresBeforeFirstBeatline(t *testing.T) {
	st := newTestSyncTrack(t)
	if err := st.SetBeatlines([]tempo.Beatline{
		{Type: tempo.BeatlineMeasure, Tick: 240},
		{Type: tempo.BeatlineStrong, Tick: 720},
	}); err != nil {
		t.Fatal(err)
	}
	e, count := countingEvent(DefaultKey(WeakBeat))

	e.Update(0, st)
	if *count != 1 {
		t.Fatalf("expected first update to fire once, got %d", *count)
	}
	if e.CurrentProgress() != -0.5 || e.CurrentCount() != -1 {
		t.Errorf("progress = %v (count %d), want -0.5 (-1)", e.CurrentProgress(), e.CurrentCount())
	}

	e.Update(0.1, st)
	if *count != 1 {
		t.Errorf("expected no firing before the first beatline, got %d", *count)
	}

	// tick 240
	e.Update(0.25, st)
	if *count != 2 {
		t.Errorf("expected firing on the first beatline, got %d", *count)
	}

	e.Reset()
	e.Update(0, st)
	if *count != 3 {
		t.Errorf("expected reset to fire before the first beatline, got %d", *count)
	}
}

func TestEvent_FiresOncePerBoundary(t *testing.T) {
	st := newTestSyncTrack(t)
	e, count := countingEvent(DefaultKey(QuarterNote))

	e.Update(0.25, st)
	*count = 0

	const n = 10
	for i := 1; i <= n; i++ {
		e.Update(0.25+float64(i)*0.5, st)
	}
	if *count != n {
		t.Errorf("expected %d firings, got %d", n, *count)
	}
}

func TestEvent_NoDoubleFireOnSameTime(t *testing.T) {
	st := newTestSyncTrack(t)
	e, count := countingEvent(DefaultKey(WeakBeat))

	for i := 0; i < 5; i++ {
		e.Update(1.3, st)
	}
	if *count != 1 {
		t.Errorf("expected a single firing, got %d", *count)
	}
}

func TestEvent_SkippedBoundariesFireOnce(t *testing.T) {
	st := newTestSyncTrack(t)
	e, count := countingEvent(DefaultKey(QuarterNote))

	e.Update(0, st)
	e.Update(5, st)
	if *count != 2 {
		t.Errorf("expected 2 firings across a 10 beat jump, got %d", *count)
	}
	if e.CurrentCount() != 10 {
		t.Errorf("CurrentCount() = %d, want 10", e.CurrentCount())
	}
}

func TestEvent_Division(t *testing.T) {
	st := newTestSyncTrack(t)
	e, count := countingEvent(Key{Type: QuarterNote, Division: 2})

	e.Update(0.25, st)
	e.Update(0.75, st)
	if *count != 1 {
		t.Fatalf("expected 1 firing within the first half note, got %d", *count)
	}
	if got := e.CurrentProgress(); got != 0.75 {
		t.Errorf("CurrentProgress() = %v, want 0.75", got)
	}
	e.Update(1.25, st)
	if *count != 2 {
		t.Errorf("expected 2 firings after the half note, got %d", *count)
	}
}

func TestEvent_Offset(t *testing.T) {
	st := newTestSyncTrack(t)
	e, count := countingEvent(Key{Type: Measure, Division: 1, Offset: 1})

	e.Update(0.5, st)
	if *count != 0 {
		t.Errorf("expected no firing before the offset, got %d", *count)
	}
	e.Update(1.0, st)
	if *count != 1 {
		t.Errorf("expected firing at the offset, got %d", *count)
	}
}

func TestEvent_Reset(t *testing.T) {
	st := newTestSyncTrack(t)
	e, count := countingEvent(DefaultKey(StrongBeat))

	e.Update(2.1, st)
	e.Update(2.1, st)
	e.Reset()
	e.Update(2.1, st)
	if *count != 2 {
		t.Errorf("expected reset to allow one more firing, got %d", *count)
	}
}

func TestEvent_AllTypes(t *testing.T) {
	st := newTestSyncTrack(t)

	// 2.0s = tick 1920 = one 4/4 measure
	want := map[EventType]float64{
		WeakBeat:        4,
		StrongBeat:      4,
		DenominatorBeat: 4,
		QuarterNote:     4,
		Measure:         1,
	}
	for typ, progress := range want {
		e := NewEvent(DefaultKey(typ))
		e.Update(2.0, st)
		if e.CurrentProgress() != progress {
			t.Errorf("%v progress = %v, want %v", typ, e.CurrentProgress(), progress)
		}
	}
}

func TestNewEvent_Panics(t *testing.T) {
	tests := []struct {
		name string
		key  Key
	}{
		{"zero division", Key{Type: WeakBeat, Division: 0}},
		{"negative division", Key{Type: WeakBeat, Division: -1}},
		{"NaN division", Key{Type: WeakBeat, Division: math.NaN()}},
		{"unknown type", Key{Type: EventType(42), Division: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			NewEvent(tt.key)
		})
	}
}

func TestEventType_String(t *testing.T) {
	if WeakBeat.String() != "WeakBeat" || Measure.String() != "Measure" {
		t.Error("unexpected event type names")
	}
	if EventType(9).String() != "EventType(9)" {
		t.Errorf("unexpected name for unknown type: %s", EventType(9))
	}
}
