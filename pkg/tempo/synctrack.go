// Package tempo provides the sync track of a song: its tempo and time signature
// changes, its beatlines, and conversions between ticks and seconds.
//
// A SyncTrack is immutable once built and may be shared by any number of readers.
package tempo

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultBeatsPerMinute is the tempo in effect before the first tempo change.
	DefaultBeatsPerMinute = 120.0

	// DefaultNumerator and DefaultDenominator form the 4/4 time signature in effect
	// before the first time signature change.
	DefaultNumerator   = 4
	DefaultDenominator = 4

	// tickRoundingDigits is the number of decimals a tick delta is rounded to before
	// truncation, so that ticks converted to time and back land on the same tick.
	tickRoundingDigits = 8
)

var (
	// ErrInvalidResolution is returned when the resolution is zero.
	ErrInvalidResolution = errors.New("resolution must be greater than zero")

	// ErrOutOfOrder is returned when sync events are not sorted by tick.
	ErrOutOfOrder = errors.New("sync events out of order")

	// ErrInvalidTempo is returned for non-positive or non-finite tempos.
	ErrInvalidTempo = errors.New("invalid tempo")

	// ErrInvalidTimeSignature is returned for malformed time signatures.
	ErrInvalidTimeSignature = errors.New("invalid time signature")
)

// TempoChange is a tempo marker. Time is derived from the preceding markers and is
// filled in by New; any value supplied by the caller is ignored.
type TempoChange struct {
	Tick           uint32
	Time           float64
	BeatsPerMinute float64
}

// MicrosecondsPerQuarter returns the tempo in MIDI's native unit.
func (t TempoChange) MicrosecondsPerQuarter() float64 {
	return 60_000_000 / t.BeatsPerMinute
}

// TimeSignatureChange is a time signature marker. Time is derived by New.
type TimeSignatureChange struct {
	Tick        uint32
	Time        float64
	Numerator   uint32
	Denominator uint32
}

// SyncTrack holds the tempo map of a song.
type SyncTrack struct {
	resolution uint32
	tempos     []TempoChange
	timeSigs   []TimeSignatureChange
	beatlines  []Beatline

	// cumulative denominator beats and measures at the start of each time signature
	beatStart    []float64
	measureStart []float64

	weakTicks   []uint32
	strongTicks []uint32
}

// New builds a sync track from tempo and time signature changes.
//
// Both lists must be sorted by tick. When two entries share a tick the later one
// wins. If either list does not start at tick 0, the 120 BPM / 4/4 defaults are
// seeded there. The returned track has no beatlines; call GenerateBeatlines or
// SetBeatlines to add them.
func New(resolution uint32, tempos []TempoChange, timeSigs []TimeSignatureChange) (*SyncTrack, error) {
	if resolution == 0 {
		return nil, ErrInvalidResolution
	}

	st := &SyncTrack{resolution: resolution}

	var err error
	if st.tempos, err = normalizeTempos(tempos); err != nil {
		return nil, err
	}
	if st.timeSigs, err = normalizeTimeSignatures(resolution, timeSigs); err != nil {
		return nil, err
	}

	st.deriveTimes()
	st.indexTimeSignatures()

	return st, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed tables.
func MustNew(resolution uint32, tempos []TempoChange, timeSigs []TimeSignatureChange) *SyncTrack {
	st, err := New(resolution, tempos, timeSigs)
	if err != nil {
		panic(err)
	}
	return st
}

func normalizeTempos(in []TempoChange) ([]TempoChange, error) {
	out := make([]TempoChange, 0, len(in)+1)
	for i, tc := range in {
		if tc.BeatsPerMinute <= 0 || math.IsNaN(tc.BeatsPerMinute) || math.IsInf(tc.BeatsPerMinute, 0) {
			return nil, fmt.Errorf("%w: %v BPM at tick %d", ErrInvalidTempo, tc.BeatsPerMinute, tc.Tick)
		}
		tc.Time = 0
		if n := len(out); n > 0 {
			prev := out[n-1]
			if tc.Tick < prev.Tick {
				return nil, fmt.Errorf("%w: tempo #%d at tick %d comes after tick %d", ErrOutOfOrder, i, tc.Tick, prev.Tick)
			}
			if tc.Tick == prev.Tick {
				out[n-1] = tc
				continue
			}
		}
		out = append(out, tc)
	}

	if len(out) == 0 || out[0].Tick != 0 {
		out = append([]TempoChange{{Tick: 0, BeatsPerMinute: DefaultBeatsPerMinute}}, out...)
	}
	return out, nil
}

func normalizeTimeSignatures(resolution uint32, in []TimeSignatureChange) ([]TimeSignatureChange, error) {
	out := make([]TimeSignatureChange, 0, len(in)+1)
	for i, ts := range in {
		if ts.Numerator == 0 {
			return nil, fmt.Errorf("%w: numerator 0 at tick %d", ErrInvalidTimeSignature, ts.Tick)
		}
		if ts.Denominator == 0 || ts.Denominator&(ts.Denominator-1) != 0 {
			return nil, fmt.Errorf("%w: denominator %d at tick %d is not a power of two", ErrInvalidTimeSignature, ts.Denominator, ts.Tick)
		}
		if ts.Denominator > resolution*4 {
			return nil, fmt.Errorf("%w: denominator %d at tick %d is finer than one tick", ErrInvalidTimeSignature, ts.Denominator, ts.Tick)
		}
		ts.Time = 0
		if n := len(out); n > 0 {
			prev := out[n-1]
			if ts.Tick < prev.Tick {
				return nil, fmt.Errorf("%w: time signature #%d at tick %d comes after tick %d", ErrOutOfOrder, i, ts.Tick, prev.Tick)
			}
			if ts.Tick == prev.Tick {
				out[n-1] = ts
				continue
			}
		}
		out = append(out, ts)
	}

	if len(out) == 0 || out[0].Tick != 0 {
		seed := TimeSignatureChange{Tick: 0, Numerator: DefaultNumerator, Denominator: DefaultDenominator}
		out = append([]TimeSignatureChange{seed}, out...)
	}
	return out, nil
}

func (st *SyncTrack) deriveTimes() {
	for i := 1; i < len(st.tempos); i++ {
		prev := st.tempos[i-1]
		st.tempos[i].Time = prev.Time + ticksToSeconds(st.tempos[i].Tick-prev.Tick, st.resolution, prev.BeatsPerMinute)
	}
	for i := range st.timeSigs {
		st.timeSigs[i].Time = st.TickToTime(st.timeSigs[i].Tick)
	}
}

func (st *SyncTrack) indexTimeSignatures() {
	st.beatStart = make([]float64, len(st.timeSigs))
	st.measureStart = make([]float64, len(st.timeSigs))
	for i := 1; i < len(st.timeSigs); i++ {
		prev := st.timeSigs[i-1]
		beats := float64(st.timeSigs[i].Tick-prev.Tick) / prev.TicksPerBeat(st.resolution)
		st.beatStart[i] = st.beatStart[i-1] + beats
		st.measureStart[i] = st.measureStart[i-1] + beats/float64(prev.Numerator)
	}
}

func ticksToSeconds(ticks, resolution uint32, bpm float64) float64 {
	return float64(ticks) / float64(resolution) * 60.0 / bpm
}

func sortByTick[T any](s []T, tick func(T) uint32) {
	sort.SliceStable(s, func(i, j int) bool { return tick(s[i]) < tick(s[j]) })
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}

// Resolution returns the number of ticks per quarter note.
func (st *SyncTrack) Resolution() uint32 { return st.resolution }

// Tempos returns the tempo changes. The slice must not be modified.
func (st *SyncTrack) Tempos() []TempoChange { return st.tempos }

// TimeSignatures returns the time signature changes. The slice must not be modified.
func (st *SyncTrack) TimeSignatures() []TimeSignatureChange { return st.timeSigs }

func (st *SyncTrack) tempoIndexAtTick(tick uint32) int {
	return sort.Search(len(st.tempos), func(i int) bool { return st.tempos[i].Tick > tick }) - 1
}

func (st *SyncTrack) tempoIndexAtTime(time float64) int {
	i := sort.Search(len(st.tempos), func(i int) bool { return st.tempos[i].Time > time }) - 1
	if i < 0 {
		return 0
	}
	return i
}

func (st *SyncTrack) timeSignatureIndexAtTick(tick uint32) int {
	return sort.Search(len(st.timeSigs), func(i int) bool { return st.timeSigs[i].Tick > tick }) - 1
}

// TempoAt returns the tempo in effect at tick.
func (st *SyncTrack) TempoAt(tick uint32) TempoChange {
	return st.tempos[st.tempoIndexAtTick(tick)]
}

// TimeSignatureAt returns the time signature in effect at tick.
func (st *SyncTrack) TimeSignatureAt(tick uint32) TimeSignatureChange {
	return st.timeSigs[st.timeSignatureIndexAtTick(tick)]
}

// TickToTime converts a tick position to seconds.
func (st *SyncTrack) TickToTime(tick uint32) float64 {
	tc := st.tempos[st.tempoIndexAtTick(tick)]
	return tc.Time + ticksToSeconds(tick-tc.Tick, st.resolution, tc.BeatsPerMinute)
}

// TimeToTick converts seconds to a tick position. Negative times map to tick 0.
func (st *SyncTrack) TimeToTick(time float64) uint32 {
	if time <= 0 || math.IsNaN(time) {
		return 0
	}

	tc := st.tempos[st.tempoIndexAtTime(time)]
	beats := (time - tc.Time) * tc.BeatsPerMinute / 60.0
	delta := math.Floor(roundTo(beats*float64(st.resolution), tickRoundingDigits))

	tick := float64(tc.Tick) + delta
	if tick >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(tick)
}

// TickRangeToTimeDelta returns the number of seconds between two ticks, accounting
// for every tempo change in between.
func (st *SyncTrack) TickRangeToTimeDelta(startTick, endTick uint32) float64 {
	return st.TickToTime(endTick) - st.TickToTime(startTick)
}

// TimeRangeToTickDelta returns the number of ticks between two times.
func (st *SyncTrack) TimeRangeToTickDelta(startTime, endTime float64) uint32 {
	start, end := st.TimeToTick(startTime), st.TimeToTick(endTime)
	if end < start {
		return 0
	}
	return end - start
}

// GetLastTick returns the tick of the last sync event.
func (st *SyncTrack) GetLastTick() uint32 {
	last := st.tempos[len(st.tempos)-1].Tick
	if ts := st.timeSigs[len(st.timeSigs)-1].Tick; ts > last {
		last = ts
	}
	if n := len(st.beatlines); n > 0 && st.beatlines[n-1].Tick > last {
		last = st.beatlines[n-1].Tick
	}
	return last
}

// GetEndTime returns the time of the last sync event.
func (st *SyncTrack) GetEndTime() float64 {
	return st.TickToTime(st.GetLastTick())
}
