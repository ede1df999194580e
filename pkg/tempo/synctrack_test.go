package tempo

import (
	"errors"
	"math"
	"testing"
)

const testResolution = 480

func TestNew_Defaults(t *testing.T) {
	st, err := New(testResolution, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tempos := st.Tempos()
	if len(tempos) != 1 || tempos[0].Tick != 0 || tempos[0].BeatsPerMinute != DefaultBeatsPerMinute {
		t.Errorf("expected seeded 120 BPM tempo at tick 0, got %+v", tempos)
	}

	sigs := st.TimeSignatures()
	if len(sigs) != 1 || sigs[0].Numerator != 4 || sigs[0].Denominator != 4 {
		t.Errorf("expected seeded 4/4 at tick 0, got %+v", sigs)
	}
}

func TestNew_SeedsBeforeFirstChange(t *testing.T) {
	st := MustNew(testResolution, []TempoChange{{Tick: 480, BeatsPerMinute: 60}}, nil)

	tempos := st.Tempos()
	if len(tempos) != 2 {
		t.Fatalf("expected 2 tempos, got %d", len(tempos))
	}
	if tempos[0].BeatsPerMinute != DefaultBeatsPerMinute {
		t.Errorf("expected default tempo first, got %v", tempos[0].BeatsPerMinute)
	}
	if tempos[1].Time != 0.5 {
		t.Errorf("expected derived time 0.5, got %v", tempos[1].Time)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		res      uint32
		tempos   []TempoChange
		timeSigs []TimeSignatureChange
		want     error
	}{
		{
			name: "zero resolution",
			res:  0,
			want: ErrInvalidResolution,
		},
		{
			name:   "out of order tempos",
			res:    testResolution,
			tempos: []TempoChange{{Tick: 960, BeatsPerMinute: 120}, {Tick: 0, BeatsPerMinute: 90}},
			want:   ErrOutOfOrder,
		},
		{
			name:     "out of order time signatures",
			res:      testResolution,
			timeSigs: []TimeSignatureChange{{Tick: 1920, Numerator: 3, Denominator: 4}, {Tick: 0, Numerator: 4, Denominator: 4}},
			want:     ErrOutOfOrder,
		},
		{
			name:   "zero tempo",
			res:    testResolution,
			tempos: []TempoChange{{Tick: 0, BeatsPerMinute: 0}},
			want:   ErrInvalidTempo,
		},
		{
			name:   "NaN tempo",
			res:    testResolution,
			tempos: []TempoChange{{Tick: 0, BeatsPerMinute: math.NaN()}},
			want:   ErrInvalidTempo,
		},
		{
			name:     "zero numerator",
			res:      testResolution,
			timeSigs: []TimeSignatureChange{{Tick: 0, Numerator: 0, Denominator: 4}},
			want:     ErrInvalidTimeSignature,
		},
		{
			name:     "denominator not power of two",
			res:      testResolution,
			timeSigs: []TimeSignatureChange{{Tick: 0, Numerator: 4, Denominator: 3}},
			want:     ErrInvalidTimeSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.res, tt.tempos, tt.timeSigs)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNew_EqualTicksOverwrite(t *testing.T) {
	st := MustNew(testResolution,
		[]TempoChange{{Tick: 0, BeatsPerMinute: 120}, {Tick: 0, BeatsPerMinute: 60}},
		[]TimeSignatureChange{{Tick: 0, Numerator: 4, Denominator: 4}, {Tick: 0, Numerator: 3, Denominator: 4}},
	)

	if got := st.Tempos(); len(got) != 1 || got[0].BeatsPerMinute != 60 {
		t.Errorf("expected the later tempo to win, got %+v", got)
	}
	if got := st.TimeSignatures(); len(got) != 1 || got[0].Numerator != 3 {
		t.Errorf("expected the later time signature to win, got %+v", got)
	}
}

func TestTickToTime(t *testing.T) {
	st := MustNew(testResolution, []TempoChange{
		{Tick: 0, BeatsPerMinute: 120},
		{Tick: 960, BeatsPerMinute: 60},
	}, nil)

	tests := []struct {
		tick uint32
		want float64
	}{
		{0, 0},
		{480, 0.5},
		{960, 1.0},
		{1440, 2.0},
		{1920, 3.0},
	}

	for _, tt := range tests {
		if got := st.TickToTime(tt.tick); got != tt.want {
			t.Errorf("TickToTime(%d) = %v, want %v", tt.tick, got, tt.want)
		}
	}
}

func TestTickToTime_QuarterNoteAt120(t *testing.T) {
	st := MustNew(testResolution, []TempoChange{{Tick: 0, BeatsPerMinute: 120}}, []TimeSignatureChange{{Tick: 0, Numerator: 4, Denominator: 4}})
	if got := st.TickToTime(480); got != 0.5 {
		t.Errorf("TickToTime(480) = %v, want 0.5", got)
	}
}

func TestTimeToTick(t *testing.T) {
	st := MustNew(testResolution, []TempoChange{
		{Tick: 0, BeatsPerMinute: 120},
		{Tick: 960, BeatsPerMinute: 60},
	}, nil)

	tests := []struct {
		name string
		time float64
		want uint32
	}{
		{"negative", -1, 0},
		{"NaN", math.NaN(), 0},
		{"zero", 0, 0},
		{"first segment", 0.25, 240},
		{"tempo boundary", 1.0, 960},
		{"second segment", 2.0, 1440},
		{"truncates", 0.2501, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := st.TimeToTick(tt.time); got != tt.want {
				t.Errorf("TimeToTick(%v) = %d, want %d", tt.time, got, tt.want)
			}
		})
	}
}

func TestTimeToTick_Clamps(t *testing.T) {
	st := MustNew(testResolution, nil, nil)
	if got := st.TimeToTick(math.Inf(1)); got != math.MaxUint32 {
		t.Errorf("expected MaxUint32 for +Inf, got %d", got)
	}
}

func TestTickRangeToTimeDelta(t *testing.T) {
	st := MustNew(testResolution, []TempoChange{
		{Tick: 0, BeatsPerMinute: 120},
		{Tick: 960, BeatsPerMinute: 60},
	}, nil)

	if got := st.TickRangeToTimeDelta(480, 1440); got != 1.5 {
		t.Errorf("TickRangeToTimeDelta(480, 1440) = %v, want 1.5", got)
	}
	if got := st.TimeRangeToTickDelta(0.5, 2.0); got != 960 {
		t.Errorf("TimeRangeToTickDelta(0.5, 2.0) = %d, want 960", got)
	}
	if got := st.TimeRangeToTickDelta(2.0, 0.5); got != 0 {
		t.Errorf("reversed range should be 0, got %d", got)
	}
}

func TestTempoAndTimeSignatureAt(t *testing.T) {
	st := MustNew(testResolution,
		[]TempoChange{{Tick: 0, BeatsPerMinute: 120}, {Tick: 1920, BeatsPerMinute: 150}},
		[]TimeSignatureChange{{Tick: 0, Numerator: 4, Denominator: 4}, {Tick: 1920, Numerator: 6, Denominator: 8}},
	)

	if got := st.TempoAt(1919).BeatsPerMinute; got != 120 {
		t.Errorf("TempoAt(1919) = %v, want 120", got)
	}
	if got := st.TempoAt(1920).BeatsPerMinute; got != 150 {
		t.Errorf("TempoAt(1920) = %v, want 150", got)
	}
	if got := st.TimeSignatureAt(5000); got.Numerator != 6 || got.Denominator != 8 {
		t.Errorf("TimeSignatureAt(5000) = %v, want 6/8", got)
	}
	if got := st.TimeSignatures()[1].Time; got != 2.0 {
		t.Errorf("time signature time = %v, want 2.0", got)
	}
}

func TestGetLastTickAndEndTime(t *testing.T) {
	st := MustNew(testResolution, []TempoChange{{Tick: 0, BeatsPerMinute: 120}, {Tick: 960, BeatsPerMinute: 60}}, nil)

	if got := st.GetLastTick(); got != 960 {
		t.Errorf("GetLastTick() = %d, want 960", got)
	}

	st.GenerateBeatlines(1920)
	if got := st.GetLastTick(); got != 1920 {
		t.Errorf("GetLastTick() with beatlines = %d, want 1920", got)
	}
	if got := st.GetEndTime(); got != 3.0 {
		t.Errorf("GetEndTime() = %v, want 3.0", got)
	}
}

func TestMicrosecondsPerQuarter(t *testing.T) {
	tc := TempoChange{BeatsPerMinute: 120}
	if got := tc.MicrosecondsPerQuarter(); got != 500000 {
		t.Errorf("MicrosecondsPerQuarter() = %v, want 500000", got)
	}
}
