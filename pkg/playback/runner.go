package playback

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zurustar/songsync/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	// SongStartDelay is the pre-roll, in seconds at 100% speed, before song time
	// reaches the requested start position.
	SongStartDelay = 2.0

	// MinSongSpeed and MaxSongSpeed bound the song speed. They leave room for one
	// SpeedAdjustmentStep in either direction.
	MinSongSpeed = 0.10
	MaxSongSpeed = 49.95

	// DefaultSyncInterval is the poll interval of the sync goroutine.
	DefaultSyncInterval = 5 * time.Millisecond
)

// ClampSongSpeed limits speed to [MinSongSpeed, MaxSongSpeed]. NaN becomes 1.
func ClampSongSpeed(speed float64) float64 {
	if math.IsNaN(speed) {
		return 1
	}
	return math.Max(MinSongSpeed, math.Min(MaxSongSpeed, speed))
}

// Config holds the construction-time settings of a SongRunner.
type Config struct {
	// SongSpeed is the playback speed, 1.0 = 100%.
	SongSpeed float64
	// AudioCalibrationMs and VideoCalibrationMs are the user's latency settings.
	AudioCalibrationMs int
	VideoCalibrationMs int
	// SongOffset is the chart's audio offset in seconds: positive values start the
	// song that far into the audio.
	SongOffset float64
}

// Option configures a SongRunner.
type Option func(*SongRunner)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *SongRunner) {
		r.log = log
	}
}

// WithSyncInterval sets the poll interval of the sync goroutine.
func WithSyncInterval(interval time.Duration) Option {
	return func(r *SongRunner) {
		if interval > 0 {
			r.syncInterval = interval
		}
	}
}

// SongRunner owns the song clocks.
//
// Update, SetSongTime, SetSongSpeed, AdjustSongSpeed, Pause, Resume and
// OverridePauseTime must be called from one goroutine (the frame loop). The sync
// statistics and Snapshot may be read from any goroutine.
//
// All times are in seconds. "Real" times exclude calibration:
//
//	SongTime   = RealSongTime   + AudioCalibration
//	VisualTime = RealVisualTime + VideoCalibration
//	InputTime  = RealInputTime  + VideoCalibration
type SongRunner struct {
	device AudioDevice
	clock  TimeSource
	log    *slog.Logger
	id     string

	audioCalibration float64
	videoCalibration float64
	songOffset       float64

	// owned by the frame loop
	realSongTime      float64
	realVisualTime    float64
	realInputTime     float64
	audioPlaybackTime float64
	audioStarted      bool
	pendingPauses     int
	pauseTime         float64
	pausePosition     float64
	seeked            bool
	warnLimiter       *rate.Limiter

	// clock anchor, read by the sync goroutine
	anchorMu        sync.RWMutex
	speed           float64
	inputTimeBase   float64
	inputTimeOffset float64

	paused atomic.Bool

	// sync goroutine
	syncInterval    time.Duration
	pauseSync       atomic.Bool
	finishedSyncing *syncGate
	stopCh          chan struct{}
	doneCh          chan struct{}
	stopOnce        sync.Once

	syncSpeedAdjustment atomicFloat64
	syncSpeedMultiplier atomic.Int32
	syncStartDelta      atomicFloat64
	syncWorstDelta      atomicFloat64
	syncVisualTime      atomicFloat64
	syncAudioTime       atomicFloat64

	published atomic.Pointer[Snapshot]
}

// New creates a runner positioned SongStartDelay seconds (scaled by speed) before
// time 0, rewinds the device and starts the sync goroutine. Call Close when done.
func New(device AudioDevice, clock TimeSource, cfg Config, opts ...Option) *SongRunner {
	r := &SongRunner{
		device:           device,
		clock:            clock,
		log:              logger.GetLogger(),
		id:               uuid.NewString(),
		audioCalibration: -float64(cfg.AudioCalibrationMs) / 1000.0,
		videoCalibration: -float64(cfg.VideoCalibrationMs) / 1000.0,
		songOffset:       -cfg.SongOffset,
		speed:            ClampSongSpeed(cfg.SongSpeed),
		warnLimiter:      rate.NewLimiter(rate.Every(time.Second), 3),
		syncInterval:     DefaultSyncInterval,
		finishedSyncing:  newSyncGate(true),
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Component(r.log, "runner").With("session", r.id)

	r.initializeSongTime(0, SongStartDelay)
	if err := r.device.SetPosition(0); err != nil {
		r.log.Warn("Failed to reset audio position", "error", err)
	}
	r.device.SetSpeed(r.speed)
	r.computeTimes()
	r.seeked = true
	r.publish()

	r.log.Info("Song runner created",
		"speed", r.speed,
		"audio_calibration", r.audioCalibration,
		"video_calibration", r.videoCalibration,
		"song_offset", r.songOffset,
	)

	go r.syncLoop()
	return r
}

// relativeTime maps a clock timestamp onto the song timeline.
func (r *SongRunner) relativeTime(t float64) float64 {
	r.anchorMu.RLock()
	defer r.anchorMu.RUnlock()
	return r.inputTimeBase + (t-r.inputTimeOffset)*r.speed
}

func (r *SongRunner) setAnchor(base, offset float64) {
	r.anchorMu.Lock()
	r.inputTimeBase = base
	r.inputTimeOffset = offset
	r.anchorMu.Unlock()
}

func (r *SongRunner) initializeSongTime(time, delay float64) {
	base := time - delay*r.SongSpeed()
	r.setAnchor(base, r.clock.InputUpdateTime())
	r.log.Debug("Initialized song time", "time", time, "delay", delay, "input_time_base", base)
}

// computeTimes refreshes the real times from the clock and the device.
func (r *SongRunner) computeTimes() {
	r.realInputTime = r.relativeTime(r.clock.InputUpdateTime())
	r.realVisualTime = r.relativeTime(r.clock.GameUpdateTime())
	r.audioPlaybackTime = r.device.Position()

	switch {
	case !r.audioStarted:
		r.realSongTime = r.realVisualTime
	case r.pastAudioEnd(r.realVisualTime):
		r.realSongTime = r.realVisualTime
	default:
		r.realSongTime = r.audioPlaybackTime + r.songOffset
	}
}

func (r *SongRunner) pastAudioEnd(songTime float64) bool {
	length := r.device.Length()
	return length > 0 && songTime-r.songOffset >= length
}

// Update advances the clocks to the current frame. While paused it does nothing.
// Audio starts once song time reaches the song offset.
func (r *SongRunner) Update() {
	if r.Paused() {
		return
	}

	prevSong, prevVisual, prevInput := r.realSongTime, r.realVisualTime, r.realInputTime
	r.computeTimes()

	if !r.audioStarted && r.realSongTime >= r.songOffset {
		r.startAudio(r.realSongTime)
	}

	if !r.seeked {
		r.checkMonotonic("song", prevSong, r.realSongTime)
		r.checkMonotonic("visual", prevVisual, r.realVisualTime)
		r.checkMonotonic("input", prevInput, r.realInputTime)
	}
	r.seeked = false

	r.publish()
}

func (r *SongRunner) startAudio(songTime float64) {
	r.pauseSyncing()
	defer r.resumeSyncing()

	position := songTime - r.songOffset
	if err := r.device.SetPosition(position); err != nil {
		r.log.Warn("Failed to seek audio on start", "position", position, "error", err)
	}
	if !r.pastAudioEnd(songTime) {
		r.device.Play()
	}
	r.audioStarted = true
	r.log.Debug("Audio started", "song_time", songTime, "position", position)
}

func (r *SongRunner) checkMonotonic(clock string, prev, cur float64) {
	if cur >= prev || !r.warnLimiter.Allow() {
		return
	}
	r.log.Warn("Unexpected time seek backwards", "clock", clock, "from", prev, "to", cur, "delta", cur-prev)
}

// SetSongTimeDefault is SetSongTime with the standard start delay.
func (r *SongRunner) SetSongTimeDefault(time float64) {
	r.SetSongTime(time, SongStartDelay)
}

// SetSongTime seeks so that song time reaches time after delay seconds (scaled by
// speed). The audio seek position is clamped to 0.
func (r *SongRunner) SetSongTime(time, delay float64) {
	r.pauseSyncing()
	defer r.resumeSyncing()

	r.initializeSongTime(time, delay)
	if r.Paused() {
		r.pauseTime = r.InputTimeOffset()
		r.pausePosition = r.InputTimeBase()
	}
	r.resetSync()

	r.device.Pause()
	seek := time - delay*r.SongSpeed() - r.songOffset
	if seek < 0 {
		seek = 0
		r.audioStarted = false
	} else {
		r.audioStarted = true
	}
	if err := r.device.SetPosition(seek); err != nil {
		r.log.Warn("Failed to seek audio", "position", seek, "error", err)
	}
	if r.audioStarted && !r.Paused() && !r.pastAudioEnd(seek+r.songOffset) {
		r.device.Play()
	}

	r.computeTimes()
	r.seeked = true
	r.publish()

	r.log.Debug("Set song time", "time", time, "delay", delay, "audio_position", seek, "song_time", r.SongTime())
}

// SetSongSpeed changes the song speed, clamped to [MinSongSpeed, MaxSongSpeed].
// The timeline is re-anchored at the current visual time so that visual and input
// time continue without a jump. While paused it is re-anchored at the paused
// position instead.
func (r *SongRunner) SetSongSpeed(speed float64) {
	speed = ClampSongSpeed(speed)

	r.pauseSyncing()
	defer r.resumeSyncing()

	prevVisual, prevInput := r.realVisualTime, r.realInputTime

	now := r.clock.GameUpdateTime()
	visual := r.relativeTime(now)
	if r.Paused() {
		visual = r.pausePosition
		r.pauseTime = now
	}
	r.anchorMu.Lock()
	r.inputTimeBase = visual
	r.inputTimeOffset = now
	r.speed = speed
	r.anchorMu.Unlock()

	r.resetSync()
	r.computeTimes()

	threshold := math.Max(0.001*speed, 0.0005)
	if math.Abs(r.realVisualTime-prevVisual) > threshold || math.Abs(r.realInputTime-prevInput) > threshold {
		r.log.Debug("Clock moved during speed change",
			"visual_from", prevVisual, "visual_to", r.realVisualTime,
			"input_from", prevInput, "input_to", r.realInputTime,
		)
	}
	r.publish()

	r.log.Debug("Set song speed", "speed", speed, "song_time", r.SongTime(), "visual_time", r.VisualTime())
}

// AdjustSongSpeed adds delta to the song speed.
func (r *SongRunner) AdjustSongSpeed(delta float64) {
	r.SetSongSpeed(r.SongSpeed() + delta)
}

// Pause pauses playback. Pauses nest: only the first of several outstanding
// pauses stops the audio.
func (r *SongRunner) Pause() {
	r.pendingPauses++
	if r.pendingPauses > 1 {
		return
	}

	r.pauseSyncing()
	defer r.resumeSyncing()

	r.paused.Store(true)
	r.pauseTime = r.clock.CurrentTime()
	r.pausePosition = r.relativeTime(r.pauseTime)
	r.device.Pause()
	r.resetSync()
	r.publish()

	r.log.Debug("Paused", "song_time", r.SongTime(), "visual_time", r.VisualTime(), "input_time", r.InputTime())
}

// Resume undoes one Pause. When the last pause is undone playback continues. With
// inputCompensation the time spent paused is excluded from the timeline;
// otherwise the timeline jumps ahead and the audio is seeked to match.
// Panics if there is no outstanding Pause.
func (r *SongRunner) Resume(inputCompensation bool) {
	if r.pendingPauses == 0 {
		panic("playback: Resume called without a matching Pause")
	}
	r.pendingPauses--
	if r.pendingPauses > 0 {
		return
	}

	r.pauseSyncing()
	defer r.resumeSyncing()

	now := r.clock.CurrentTime()
	if inputCompensation {
		r.setAnchor(r.pausePosition, now)
	}

	if r.audioStarted {
		songTime := r.relativeTime(now)
		if !inputCompensation {
			if err := r.device.SetPosition(math.Max(0, songTime-r.songOffset)); err != nil {
				r.log.Warn("Failed to seek audio on resume", "error", err)
			}
		}
		if !r.pastAudioEnd(songTime) {
			r.device.Play()
		}
	}

	r.paused.Store(false)
	r.seeked = !inputCompensation
	r.publish()

	r.log.Debug("Resumed", "input_compensation", inputCompensation, "song_time", r.SongTime())
}

// OverridePauseTime replaces the time at which the current pause started, so that
// time spent after it (loading, cutscenes) is not compensated on resume. A
// negative pauseTime means now. Returns false if not paused.
func (r *SongRunner) OverridePauseTime(pauseTime float64) bool {
	if !r.Paused() {
		return false
	}
	if pauseTime < 0 {
		pauseTime = r.clock.CurrentTime()
	}
	r.pauseTime = pauseTime
	r.pausePosition = r.relativeTime(pauseTime)
	return true
}

// Stop signals the sync goroutine to exit without waiting for it.
func (r *SongRunner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// Close stops the sync goroutine and waits for it to exit.
func (r *SongRunner) Close() error {
	r.Stop()
	<-r.doneCh
	r.log.Debug("Song runner closed")
	return nil
}

// SongTime returns the calibrated song (audio) time.
func (r *SongRunner) SongTime() float64 { return r.realSongTime + r.audioCalibration }

// VisualTime returns the calibrated visual time.
func (r *SongRunner) VisualTime() float64 { return r.realVisualTime + r.videoCalibration }

// InputTime returns the calibrated input time.
func (r *SongRunner) InputTime() float64 { return r.realInputTime + r.videoCalibration }

// RealSongTime returns the song time without calibration.
func (r *SongRunner) RealSongTime() float64 { return r.realSongTime }

// RealVisualTime returns the visual time without calibration.
func (r *SongRunner) RealVisualTime() float64 { return r.realVisualTime }

// RealInputTime returns the input time without calibration.
func (r *SongRunner) RealInputTime() float64 { return r.realInputTime }

// AudioPlaybackTime returns the device position read by the last update.
func (r *SongRunner) AudioPlaybackTime() float64 { return r.audioPlaybackTime }

// AudioTime returns the device position on the song timeline.
func (r *SongRunner) AudioTime() float64 { return r.audioPlaybackTime + r.songOffset }

// AudioCalibration returns the negated audio calibration in seconds.
func (r *SongRunner) AudioCalibration() float64 { return r.audioCalibration }

// VideoCalibration returns the negated video calibration in seconds.
func (r *SongRunner) VideoCalibration() float64 { return r.videoCalibration }

// SongOffset returns the negated song offset in seconds.
func (r *SongRunner) SongOffset() float64 { return r.songOffset }

// InputTimeBase returns the song time at the anchor.
func (r *SongRunner) InputTimeBase() float64 {
	r.anchorMu.RLock()
	defer r.anchorMu.RUnlock()
	return r.inputTimeBase
}

// InputTimeOffset returns the clock timestamp of the anchor.
func (r *SongRunner) InputTimeOffset() float64 {
	r.anchorMu.RLock()
	defer r.anchorMu.RUnlock()
	return r.inputTimeOffset
}

// SongSpeed returns the set song speed.
func (r *SongRunner) SongSpeed() float64 {
	r.anchorMu.RLock()
	defer r.anchorMu.RUnlock()
	return r.speed
}

// RealSongSpeed returns the song speed including the sync adjustment.
func (r *SongRunner) RealSongSpeed() float64 {
	return r.SongSpeed() + r.syncSpeedAdjustment.Load()
}

// Paused reports whether playback is paused.
func (r *SongRunner) Paused() bool { return r.paused.Load() }

// PendingPauses returns the number of outstanding pauses.
func (r *SongRunner) PendingPauses() int { return r.pendingPauses }

// AudioStarted reports whether song time has reached the song offset and the
// device is following it.
func (r *SongRunner) AudioStarted() bool { return r.audioStarted }

// SessionID identifies the runner in logs.
func (r *SongRunner) SessionID() string { return r.id }
