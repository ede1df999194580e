package beat

import "github.com/zurustar/songsync/pkg/tempo"

// Handler pairs a controller driven by song (audio) time with one driven by
// visual time. Both share the same sync track.
type Handler struct {
	Audio  *Controller
	Visual *Controller

	sync *tempo.SyncTrack
}

// NewHandler creates a handler for sync. Options apply to both controllers.
func NewHandler(sync *tempo.SyncTrack, opts ...Option) *Handler {
	return &Handler{
		Audio:  NewController(opts...),
		Visual: NewController(opts...),
		sync:   sync,
	}
}

// SyncTrack returns the shared sync track.
func (h *Handler) SyncTrack() *tempo.SyncTrack { return h.sync }

// Update drives the audio controller with songTime and the visual controller with
// visualTime.
func (h *Handler) Update(songTime, visualTime float64) {
	h.Audio.Update(songTime, h.sync)
	h.Visual.Update(visualTime, h.sync)
}

// Reset resets both controllers.
func (h *Handler) Reset() {
	h.Audio.Reset()
	h.Visual.Reset()
}
