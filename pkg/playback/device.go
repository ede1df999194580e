// Package playback drives the song clocks: song (audio) time, visual time and
// input time. A SongRunner keeps them consistent across pauses, seeks and speed
// changes, and runs a background goroutine that nudges the audio device's speed
// whenever its position drifts from the visual clock.
package playback

import (
	"math"
	"sync/atomic"
	"time"
)

// AudioDevice is the audio output the runner commands. Positions are in seconds
// of source audio. Implementations must be safe for concurrent use, since the
// sync goroutine queries and adjusts the device while the main goroutine plays,
// pauses and seeks it.
type AudioDevice interface {
	Play()
	Pause()
	IsPlaying() bool
	Position() float64
	SetPosition(seconds float64) error
	SetSpeed(speed float64)
	// Length returns the audio length in seconds, or 0 if unknown.
	Length() float64
}

// TimeSource provides monotonic timestamps in seconds.
type TimeSource interface {
	// InputUpdateTime is the time of the latest processed input update.
	InputUpdateTime() float64
	// GameUpdateTime is the time of the current visual frame.
	GameUpdateTime() float64
	// CurrentTime is the time right now.
	CurrentTime() float64
}

// SystemClock is a TimeSource backed by the monotonic clock. The frame loop calls
// MarkInput after polling input and MarkFrame at the start of each frame.
type SystemClock struct {
	start time.Time
	input atomicFloat64
	frame atomicFloat64
}

// NewSystemClock creates a clock whose zero is now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// MarkInput stamps the input update time.
func (c *SystemClock) MarkInput() { c.input.Store(c.CurrentTime()) }

// MarkFrame stamps the game update time.
func (c *SystemClock) MarkFrame() { c.frame.Store(c.CurrentTime()) }

// InputUpdateTime implements TimeSource.
func (c *SystemClock) InputUpdateTime() float64 { return c.input.Load() }

// GameUpdateTime implements TimeSource.
func (c *SystemClock) GameUpdateTime() float64 { return c.frame.Load() }

// CurrentTime implements TimeSource.
func (c *SystemClock) CurrentTime() float64 { return time.Since(c.start).Seconds() }

type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *atomicFloat64) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
