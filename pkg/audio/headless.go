package audio

import (
	"math"
	"sync"
	"time"
)

// HeadlessDevice is a silent device whose position advances with the wall clock
// while playing. It is used when no audio output is wanted.
type HeadlessDevice struct {
	length  float64
	playing bool
	base    float64   // position at since
	since   time.Time // wall time of the latest state change
	speed   float64
	now     func() time.Time

	mu sync.Mutex
}

// HeadlessOption configures a HeadlessDevice.
type HeadlessOption func(*HeadlessDevice)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) HeadlessOption {
	return func(d *HeadlessDevice) {
		d.now = now
	}
}

// NewHeadlessDevice creates a paused device of length seconds. A length of 0
// never ends.
func NewHeadlessDevice(length float64, opts ...HeadlessOption) *HeadlessDevice {
	d := &HeadlessDevice{
		length: length,
		speed:  1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.since = d.now()
	return d
}

// position must be called with d.mu held.
func (d *HeadlessDevice) position() float64 {
	pos := d.base
	if d.playing {
		pos += d.now().Sub(d.since).Seconds() * d.speed
	}
	if d.length > 0 {
		pos = math.Min(pos, d.length)
	}
	return pos
}

// rebase must be called with d.mu held.
func (d *HeadlessDevice) rebase() {
	d.base = d.position()
	d.since = d.now()
}

func (d *HeadlessDevice) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		d.since = d.now()
		d.playing = true
	}
}

func (d *HeadlessDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rebase()
	d.playing = false
}

func (d *HeadlessDevice) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing && (d.length <= 0 || d.position() < d.length)
}

func (d *HeadlessDevice) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position()
}

func (d *HeadlessDevice) SetPosition(seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.base = math.Max(0, seconds)
	d.since = d.now()
	return nil
}

func (d *HeadlessDevice) SetSpeed(speed float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rebase()
	d.speed = speed
}

func (d *HeadlessDevice) Length() float64 {
	return d.length
}
