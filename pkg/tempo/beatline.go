package tempo

import (
	"fmt"
	"math"
	"sort"
)

// BeatlineType categorizes a beatline.
type BeatlineType int

const (
	// BeatlineMeasure marks the first beat of a measure. It also counts as strong.
	BeatlineMeasure BeatlineType = iota
	// BeatlineStrong marks an emphasized beat.
	BeatlineStrong
	// BeatlineWeak marks an unemphasized beat.
	BeatlineWeak
)

func (t BeatlineType) String() string {
	switch t {
	case BeatlineMeasure:
		return "measure"
	case BeatlineStrong:
		return "strong"
	case BeatlineWeak:
		return "weak"
	default:
		return fmt.Sprintf("BeatlineType(%d)", int(t))
	}
}

// IsStrong reports whether the beatline counts towards strong beats.
func (t BeatlineType) IsStrong() bool {
	return t == BeatlineMeasure || t == BeatlineStrong
}

// Beatline is an authored or generated beat marker. Time is derived from the tempo map.
type Beatline struct {
	Type BeatlineType
	Tick uint32
	Time float64
}

// BeatlineTyper decides the type of the count-th beatline generated within a time
// signature, counting from zero at the time signature's start.
type BeatlineTyper func(ts TimeSignatureChange, count uint32) BeatlineType

// strongStep is the denominator at which beats are emphasized.
const strongStep = 4

// DefaultBeatlineType types generated beatlines: the first beat of every measure is
// a measure line; on x/8 and finer signatures every strongStep-th note is strong
// except the last beat of the measure; 1/x signatures only get one measure line.
func DefaultBeatlineType(ts TimeSignatureChange, count uint32) BeatlineType {
	measureBeat := count % ts.Numerator
	strongRate := strongStride(ts)

	if ts.Numerator == 1 {
		if count < 1 {
			return BeatlineMeasure
		}
		if count%strongRate == 0 {
			return BeatlineStrong
		}
		return BeatlineWeak
	}

	if measureBeat == 0 {
		return BeatlineMeasure
	}

	if ts.Denominator <= strongStep {
		return BeatlineStrong
	}

	if measureBeat%strongRate == 0 {
		// the last beat of a measure is never emphasized
		if measureBeat == ts.Numerator-1 {
			return BeatlineWeak
		}
		return BeatlineStrong
	}
	return BeatlineWeak
}

func strongStride(ts TimeSignatureChange) uint32 {
	if ts.Denominator <= strongStep {
		return 1
	}
	return ts.Denominator / strongStep
}

// Beatlines returns the beatlines. The slice must not be modified.
func (st *SyncTrack) Beatlines() []Beatline { return st.beatlines }

// GenerateBeatlines replaces the beatlines with one beatline per denominator beat
// up to and including lastTick, typed by DefaultBeatlineType.
func (st *SyncTrack) GenerateBeatlines(lastTick uint32) {
	st.generateBeatlines(lastTick, DefaultBeatlineType)
}

// GenerateBeatlinesWith is GenerateBeatlines with a custom typing function.
func (st *SyncTrack) GenerateBeatlinesWith(lastTick uint32, typer BeatlineTyper) {
	if typer == nil {
		typer = DefaultBeatlineType
	}
	st.generateBeatlines(lastTick, typer)
}

func (st *SyncTrack) generateBeatlines(lastTick uint32, typer BeatlineTyper) {
	beatlines := make([]Beatline, 0, lastTick/st.resolution+1)

	for i, ts := range st.timeSigs {
		if ts.Tick > lastTick {
			break
		}

		end := lastTick
		if i+1 < len(st.timeSigs) && st.timeSigs[i+1].Tick-1 < end {
			end = st.timeSigs[i+1].Tick - 1
		}

		rate := st.resolution * 4 / ts.Denominator
		var count uint32
		for tick := ts.Tick; tick <= end; tick += rate {
			beatlines = append(beatlines, Beatline{
				Type: typer(ts, count),
				Tick: tick,
				Time: st.TickToTime(tick),
			})
			count++
			if tick > math.MaxUint32-rate {
				break
			}
		}
	}

	st.setBeatlines(beatlines)
}

// SetBeatlines replaces the beatlines with authored ones. They must be sorted by
// tick; a later beatline on the same tick replaces the earlier one. Times are
// recomputed from the tempo map.
func (st *SyncTrack) SetBeatlines(beatlines []Beatline) error {
	out := make([]Beatline, 0, len(beatlines))
	for i, bl := range beatlines {
		if bl.Type < BeatlineMeasure || bl.Type > BeatlineWeak {
			return fmt.Errorf("beatline #%d at tick %d: unknown type %d", i, bl.Tick, int(bl.Type))
		}
		bl.Time = st.TickToTime(bl.Tick)
		if n := len(out); n > 0 {
			prev := out[n-1]
			if bl.Tick < prev.Tick {
				return fmt.Errorf("%w: beatline #%d at tick %d comes after tick %d", ErrOutOfOrder, i, bl.Tick, prev.Tick)
			}
			if bl.Tick == prev.Tick {
				out[n-1] = bl
				continue
			}
		}
		out = append(out, bl)
	}

	st.setBeatlines(out)
	return nil
}

func (st *SyncTrack) setBeatlines(beatlines []Beatline) {
	st.beatlines = beatlines
	st.weakTicks = make([]uint32, 0, len(beatlines))
	st.strongTicks = make([]uint32, 0, len(beatlines))
	for _, bl := range beatlines {
		st.weakTicks = append(st.weakTicks, bl.Tick)
		if bl.Type.IsStrong() {
			st.strongTicks = append(st.strongTicks, bl.Tick)
		}
	}
}

// GetQuarterNotePosition returns the number of quarter notes elapsed at tick.
func (st *SyncTrack) GetQuarterNotePosition(tick uint32) float64 {
	return float64(tick) / float64(st.resolution)
}

// GetDenominatorBeatPosition returns the number of time signature beats (one per
// denominator note) elapsed at tick, independent of the authored beatlines.
func (st *SyncTrack) GetDenominatorBeatPosition(tick uint32) float64 {
	i := st.timeSignatureIndexAtTick(tick)
	ts := st.timeSigs[i]
	return st.beatStart[i] + float64(tick-ts.Tick)/ts.TicksPerBeat(st.resolution)
}

// GetMeasurePosition returns the number of measures elapsed at tick.
func (st *SyncTrack) GetMeasurePosition(tick uint32) float64 {
	i := st.timeSignatureIndexAtTick(tick)
	ts := st.timeSigs[i]
	return st.measureStart[i] + float64(tick-ts.Tick)/ts.TicksPerMeasure(st.resolution)
}

// GetWeakBeatPosition returns the fractional beatline index at tick, counting
// every beatline.
func (st *SyncTrack) GetWeakBeatPosition(tick uint32) float64 {
	if len(st.weakTicks) == 0 {
		return st.GetDenominatorBeatPosition(tick)
	}
	ts := st.TimeSignatureAt(tick)
	return beatlinePosition(st.weakTicks, tick, ts.TicksPerBeat(st.resolution))
}

// GetStrongBeatPosition returns the fractional beatline index at tick, counting
// only measure and strong beatlines.
func (st *SyncTrack) GetStrongBeatPosition(tick uint32) float64 {
	ts := st.TimeSignatureAt(tick)
	stride := float64(strongStride(ts))
	if len(st.strongTicks) == 0 {
		return st.GetDenominatorBeatPosition(tick) / stride
	}
	return beatlinePosition(st.strongTicks, tick, ts.TicksPerBeat(st.resolution)*stride)
}

// beatlinePosition returns the fractional index of tick within the sorted beatline
// ticks. Outside the authored range it extrapolates by spacing ticks per beat.
func beatlinePosition(ticks []uint32, tick uint32, spacing float64) float64 {
	i := sort.Search(len(ticks), func(i int) bool { return ticks[i] > tick }) - 1
	if i < 0 {
		return (float64(tick) - float64(ticks[0])) / spacing
	}
	if i+1 < len(ticks) {
		span := ticks[i+1] - ticks[i]
		return float64(i) + float64(tick-ticks[i])/float64(span)
	}
	return float64(i) + float64(tick-ticks[i])/spacing
}
