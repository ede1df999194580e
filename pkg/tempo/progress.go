package tempo

import "fmt"

// TicksPerBeat returns the length of one denominator beat in ticks.
func (ts TimeSignatureChange) TicksPerBeat(resolution uint32) float64 {
	return float64(resolution) * 4 / float64(ts.Denominator)
}

// TicksPerQuarterNote returns the length of one quarter note in ticks.
func (ts TimeSignatureChange) TicksPerQuarterNote(resolution uint32) float64 {
	return float64(resolution)
}

// TicksPerMeasure returns the length of one measure in ticks.
func (ts TimeSignatureChange) TicksPerMeasure(resolution uint32) float64 {
	return ts.TicksPerBeat(resolution) * float64(ts.Numerator)
}

func (ts TimeSignatureChange) String() string {
	return fmt.Sprintf("%d/%d@%d", ts.Numerator, ts.Denominator, ts.Tick)
}

func (ts TimeSignatureChange) checkTick(tick uint32) {
	if tick < ts.Tick {
		panic(fmt.Sprintf("tempo: tick %d lies before time signature %v", tick, ts))
	}
}

func (ts TimeSignatureChange) progress(tick uint32, rate float64) float64 {
	ts.checkTick(tick)
	return float64(tick-ts.Tick) / rate
}

func (ts TimeSignatureChange) percentage(tick uint32, rate float64) float64 {
	p := ts.progress(tick, rate)
	return p - float64(uint32(p))
}

// GetBeatProgress returns the fractional number of beats at tick relative to this
// time signature. Panics if tick lies before the time signature.
func (ts TimeSignatureChange) GetBeatProgress(tick uint32, st *SyncTrack) float64 {
	return ts.progress(tick, ts.TicksPerBeat(st.resolution))
}

// GetBeatCount returns the whole number of beats at tick relative to this time signature.
func (ts TimeSignatureChange) GetBeatCount(tick uint32, st *SyncTrack) uint32 {
	return uint32(ts.GetBeatProgress(tick, st))
}

// GetBeatPercentage returns how far into the current beat tick lies, in [0, 1).
func (ts TimeSignatureChange) GetBeatPercentage(tick uint32, st *SyncTrack) float64 {
	return ts.percentage(tick, ts.TicksPerBeat(st.resolution))
}

// GetQuarterNoteProgress returns the fractional number of quarter notes at tick
// relative to this time signature.
func (ts TimeSignatureChange) GetQuarterNoteProgress(tick uint32, st *SyncTrack) float64 {
	return ts.progress(tick, ts.TicksPerQuarterNote(st.resolution))
}

// GetQuarterNoteCount returns the whole number of quarter notes at tick relative
// to this time signature.
func (ts TimeSignatureChange) GetQuarterNoteCount(tick uint32, st *SyncTrack) uint32 {
	return uint32(ts.GetQuarterNoteProgress(tick, st))
}

// GetQuarterNotePercentage returns how far into the current quarter note tick lies.
func (ts TimeSignatureChange) GetQuarterNotePercentage(tick uint32, st *SyncTrack) float64 {
	return ts.percentage(tick, ts.TicksPerQuarterNote(st.resolution))
}

// GetMeasureProgress returns the fractional number of measures at tick relative to
// this time signature.
func (ts TimeSignatureChange) GetMeasureProgress(tick uint32, st *SyncTrack) float64 {
	return ts.progress(tick, ts.TicksPerMeasure(st.resolution))
}

// GetMeasureCount returns the whole number of measures at tick relative to this
// time signature.
func (ts TimeSignatureChange) GetMeasureCount(tick uint32, st *SyncTrack) uint32 {
	return uint32(ts.GetMeasureProgress(tick, st))
}

// GetMeasurePercentage returns how far into the current measure tick lies.
func (ts TimeSignatureChange) GetMeasurePercentage(tick uint32, st *SyncTrack) float64 {
	return ts.percentage(tick, ts.TicksPerMeasure(st.resolution))
}

// GetBeatProgressAtTime is GetBeatProgress for a time in seconds.
func (ts TimeSignatureChange) GetBeatProgressAtTime(time float64, st *SyncTrack) float64 {
	return ts.GetBeatProgress(st.TimeToTick(time), st)
}

// GetMeasureProgressAtTime is GetMeasureProgress for a time in seconds.
func (ts TimeSignatureChange) GetMeasureProgressAtTime(time float64, st *SyncTrack) float64 {
	return ts.GetMeasureProgress(st.TimeToTick(time), st)
}
