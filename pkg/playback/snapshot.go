package playback

// Snapshot is a copy of the runner's clocks and sync statistics.
type Snapshot struct {
	SessionID string `json:"session_id"`

	SongTime          float64 `json:"song_time"`
	VisualTime        float64 `json:"visual_time"`
	InputTime         float64 `json:"input_time"`
	RealSongTime      float64 `json:"real_song_time"`
	RealVisualTime    float64 `json:"real_visual_time"`
	RealInputTime     float64 `json:"real_input_time"`
	AudioTime         float64 `json:"audio_time"`
	AudioPlaybackTime float64 `json:"audio_playback_time"`

	AudioCalibration float64 `json:"audio_calibration"`
	VideoCalibration float64 `json:"video_calibration"`
	SongOffset       float64 `json:"song_offset"`
	InputTimeBase    float64 `json:"input_time_base"`
	InputTimeOffset  float64 `json:"input_time_offset"`

	SongSpeed     float64 `json:"song_speed"`
	RealSongSpeed float64 `json:"real_song_speed"`
	Paused        bool    `json:"paused"`
	PendingPauses int     `json:"pending_pauses"`
	AudioStarted  bool    `json:"audio_started"`

	SyncSpeedAdjustment float64 `json:"sync_speed_adjustment"`
	SyncSpeedMultiplier int     `json:"sync_speed_multiplier"`
	SyncStartDelta      float64 `json:"sync_start_delta"`
	SyncWorstDelta      float64 `json:"sync_worst_delta"`
	SyncDelta           float64 `json:"sync_delta"`
}

// publish stores the frame loop's view for readers on other goroutines.
func (r *SongRunner) publish() {
	s := &Snapshot{
		SessionID:         r.id,
		SongTime:          r.SongTime(),
		VisualTime:        r.VisualTime(),
		InputTime:         r.InputTime(),
		RealSongTime:      r.realSongTime,
		RealVisualTime:    r.realVisualTime,
		RealInputTime:     r.realInputTime,
		AudioTime:         r.AudioTime(),
		AudioPlaybackTime: r.audioPlaybackTime,
		AudioCalibration:  r.audioCalibration,
		VideoCalibration:  r.videoCalibration,
		SongOffset:        r.songOffset,
		InputTimeBase:     r.InputTimeBase(),
		InputTimeOffset:   r.InputTimeOffset(),
		SongSpeed:         r.SongSpeed(),
		Paused:            r.Paused(),
		PendingPauses:     r.pendingPauses,
		AudioStarted:      r.audioStarted,
	}
	r.published.Store(s)
}

// Snapshot returns the clocks as of the latest frame together with the current
// sync statistics. Safe to call from any goroutine.
func (r *SongRunner) Snapshot() Snapshot {
	var s Snapshot
	if p := r.published.Load(); p != nil {
		s = *p
	}
	s.RealSongSpeed = s.SongSpeed + r.SyncSpeedAdjustment()
	s.SyncSpeedAdjustment = r.SyncSpeedAdjustment()
	s.SyncSpeedMultiplier = r.SyncSpeedMultiplier()
	s.SyncStartDelta = r.SyncStartDelta()
	s.SyncWorstDelta = r.SyncWorstDelta()
	s.SyncDelta = r.SyncDelta()
	return s
}
