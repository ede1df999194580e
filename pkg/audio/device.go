package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/zurustar/songsync/pkg/logger"
	"github.com/zurustar/songsync/pkg/playback"
)

// DefaultBufferSize is the output buffer of a Device. Smaller buffers make the
// reported position more accurate at the cost of underruns.
const DefaultBufferSize = 50 * time.Millisecond

var (
	// Ebitengine allows only one audio context per process
	sharedContext *audio.Context
	contextMu     sync.Mutex
)

// Context returns the shared audio context, creating it if necessary.
func Context() *audio.Context {
	contextMu.Lock()
	defer contextMu.Unlock()

	if sharedContext == nil {
		sharedContext = audio.NewContext(SampleRate)
	}
	return sharedContext
}

var (
	_ playback.AudioDevice = (*Device)(nil)
	_ playback.AudioDevice = (*HeadlessDevice)(nil)
)

// Device plays a PCM buffer through Ebitengine/audio with variable speed.
type Device struct {
	ctx        *audio.Context
	pcm        *PCM
	stream     *speedStream
	player     *audio.Player
	bufferSize time.Duration
	volume     float64
	log        *slog.Logger

	mu sync.Mutex
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// WithBufferSize sets the output buffer size.
func WithBufferSize(size time.Duration) Option {
	return func(d *Device) {
		if size > 0 {
			d.bufferSize = size
		}
	}
}

// NewDevice creates a paused device at position 0.
//
// Parameters:
//   - ctx: Ebitengine audio context (nil uses the shared context)
//   - pcm: The audio to play
//
// Returns:
//   - *Device: The device
//   - error: Error if the audio player cannot be created
func NewDevice(ctx *audio.Context, pcm *PCM, opts ...Option) (*Device, error) {
	if ctx == nil {
		ctx = Context()
	}

	d := &Device{
		ctx:        ctx,
		pcm:        pcm,
		stream:     newSpeedStream(pcm),
		bufferSize: DefaultBufferSize,
		volume:     1,
		log:        logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.Component(d.log, "audio")

	if err := d.resetPlayer(); err != nil {
		return nil, err
	}
	return d, nil
}

// resetPlayer replaces the player so that no stale audio stays buffered.
// Must be called with d.mu held or before d is shared.
func (d *Device) resetPlayer() error {
	if d.player != nil {
		if err := d.player.Close(); err != nil {
			d.log.Debug("Failed to close audio player", "error", err)
		}
	}

	player, err := d.ctx.NewPlayer(d.stream)
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}
	player.SetBufferSize(d.bufferSize)
	player.SetVolume(d.volume)
	d.player = player
	return nil
}

// Play starts or resumes playback.
func (d *Device) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.player.Play()
}

// Pause pauses playback.
func (d *Device) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.player.Pause()
}

// IsPlaying reports whether audio is playing. It turns false at the end of the
// audio.
func (d *Device) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.player.IsPlaying()
}

// Position returns the playback position in seconds of source audio.
func (d *Device) Position() float64 {
	return d.stream.Position(d.bufferSize.Seconds())
}

// SetPosition seeks to seconds. Playback continues if it was playing.
func (d *Device) SetPosition(seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasPlaying := d.player.IsPlaying()
	if wasPlaying {
		d.player.Pause()
	}
	d.stream.Seek(seconds)
	if err := d.resetPlayer(); err != nil {
		return err
	}
	if wasPlaying {
		d.player.Play()
	}
	return nil
}

// SetSpeed changes the playback speed, 1.0 = 100%.
func (d *Device) SetSpeed(speed float64) {
	d.stream.SetSpeed(speed)
}

// Length returns the audio length in seconds.
func (d *Device) Length() float64 {
	return d.pcm.Duration()
}

// SetMuted silences the output without stopping playback.
func (d *Device) SetMuted(muted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.volume = 1
	if muted {
		d.volume = 0
	}
	d.player.SetVolume(d.volume)
}

// Close releases the player.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.player.Close()
}
