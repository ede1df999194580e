package playback

import (
	"math"
	"time"
)

const (
	// InitialSyncThreshold is the drift, in seconds at 100% speed, at which speed
	// correction starts.
	InitialSyncThreshold = 0.015
	// AdjustSyncThreshold is the drift, in seconds at 100% speed, at which speed
	// correction stops.
	AdjustSyncThreshold = 0.005
	// SpeedAdjustmentStep is the speed change per unit of the sync multiplier.
	SpeedAdjustmentStep = 0.05
)

// syncLoop polls the device until Stop. At the top of every iteration it sets
// finishedSyncing; it clears it only while adjusting, and never while pauseSync
// is raised.
func (r *SongRunner) syncLoop() {
	ticker := time.NewTicker(r.syncInterval)
	defer func() {
		ticker.Stop()
		r.finishedSyncing.Set()
		close(r.doneCh)
	}()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
		}

		r.finishedSyncing.Set()
		if r.pauseSync.Load() {
			continue
		}

		r.finishedSyncing.Reset()
		if r.pauseSync.Load() {
			r.finishedSyncing.Set()
			continue
		}

		r.syncOnce()
	}
}

// pauseSyncing blocks until the sync goroutine is outside of an adjustment and
// keeps it there until resumeSyncing.
func (r *SongRunner) pauseSyncing() {
	r.pauseSync.Store(true)
	r.finishedSyncing.Wait()
}

func (r *SongRunner) resumeSyncing() {
	r.pauseSync.Store(false)
}

// syncOnce measures the drift between the visual clock and the device and adjusts
// the device speed to close it.
func (r *SongRunner) syncOnce() {
	if r.paused.Load() || !r.device.IsPlaying() {
		return
	}

	r.anchorMu.RLock()
	speed, base, offset := r.speed, r.inputTimeBase, r.inputTimeOffset
	r.anchorMu.RUnlock()

	visual := base + (r.clock.CurrentTime()-offset)*speed
	audio := r.device.Position() + r.songOffset
	r.syncVisualTime.Store(visual)
	r.syncAudioTime.Store(audio)

	if visual < r.songOffset || r.pastAudioEnd(visual) || r.pastAudioEnd(audio) {
		return
	}

	initial := InitialSyncThreshold * speed
	adjust := AdjustSyncThreshold * speed

	delta := visual - audio
	deltaAbs := math.Abs(delta)

	current := r.syncSpeedMultiplier.Load()
	if current == 0 && deltaAbs < initial {
		return
	}

	multiplier := int32(math.Round(delta / initial))
	if multiplier == 0 {
		if delta > 0 {
			multiplier = 1
		} else {
			multiplier = -1
		}
	}

	if multiplier != current {
		if current == 0 {
			r.syncStartDelta.Store(delta)
			r.syncWorstDelta.Store(delta)
		} else if deltaAbs > math.Abs(r.syncWorstDelta.Load()) {
			r.syncWorstDelta.Store(delta)
		}
		r.syncSpeedMultiplier.Store(multiplier)

		adjustment := SpeedAdjustmentStep * float64(multiplier)
		if adjustment != r.syncSpeedAdjustment.Load() {
			r.syncSpeedAdjustment.Store(adjustment)
			r.device.SetSpeed(deviceSpeed(speed + adjustment))
		}
	}

	start := r.syncStartDelta.Load()
	if deltaAbs < adjust || (delta > 0 && start < 0) || (delta < 0 && start > 0) {
		r.resetSyncAt(speed)
	}
}

// resetSync drops any speed correction. The start and worst deltas are kept for
// display.
func (r *SongRunner) resetSync() {
	r.resetSyncAt(r.SongSpeed())
}

func (r *SongRunner) resetSyncAt(speed float64) {
	r.syncSpeedMultiplier.Store(0)
	r.syncSpeedAdjustment.Store(0)
	r.device.SetSpeed(deviceSpeed(speed))
}

// deviceSpeed keeps corrected speeds within one adjustment step of the song
// speed bounds.
func deviceSpeed(speed float64) float64 {
	return math.Max(MinSongSpeed-SpeedAdjustmentStep, math.Min(MaxSongSpeed+SpeedAdjustmentStep, speed))
}

// SyncSpeedAdjustment returns the speed currently added by drift correction.
func (r *SongRunner) SyncSpeedAdjustment() float64 { return r.syncSpeedAdjustment.Load() }

// SyncSpeedMultiplier returns the current correction in SpeedAdjustmentStep units.
func (r *SongRunner) SyncSpeedMultiplier() int { return int(r.syncSpeedMultiplier.Load()) }

// SyncStartDelta returns the drift that started the latest correction.
func (r *SongRunner) SyncStartDelta() float64 { return r.syncStartDelta.Load() }

// SyncWorstDelta returns the largest drift seen during the latest correction.
func (r *SongRunner) SyncWorstDelta() float64 { return r.syncWorstDelta.Load() }

// SyncVisualTime returns the visual time last sampled by the sync goroutine.
func (r *SongRunner) SyncVisualTime() float64 { return r.syncVisualTime.Load() }

// SyncAudioTime returns the audio time last sampled by the sync goroutine.
func (r *SongRunner) SyncAudioTime() float64 { return r.syncAudioTime.Load() }

// SyncDelta returns the drift last measured by the sync goroutine.
func (r *SongRunner) SyncDelta() float64 { return r.SyncVisualTime() - r.SyncAudioTime() }
