package audio

import (
	"io"
	"math"
	"sync"
)

// speedStream implements io.Reader for Ebitengine/audio. It plays a PCM buffer at
// a variable speed by linear interpolation between neighbouring frames, so the
// pitch follows the speed.
type speedStream struct {
	mu     sync.Mutex
	pcm    *PCM
	pos    float64 // source frame
	anchor float64 // source frame of the latest seek
	speed  float64
}

func newSpeedStream(pcm *PCM) *speedStream {
	return &speedStream{pcm: pcm, speed: 1}
}

// Read renders frames until p is full or the source ends. It returns io.EOF once
// the position is past the last frame.
func (s *speedStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}

	total := float64(s.pcm.Frames())
	if s.pos >= total {
		return 0, io.EOF
	}

	n := 0
	for n < frames && s.pos < total {
		i := int64(s.pos)
		frac := float32(s.pos - float64(i))
		l0, r0 := s.pcm.frame(i)
		l1, r1 := s.pcm.frame(i + 1)
		l := float32(l0) + (float32(l1)-float32(l0))*frac
		r := float32(r0) + (float32(r1)-float32(r0))*frac
		putFrame(p[n*bytesPerFrame:], int16(clamp(l, -32768, 32767)), int16(clamp(r, -32768, 32767)))

		s.pos += s.speed
		n++
	}
	return n * bytesPerFrame, nil
}

// Position returns the source position in seconds, less latency seconds of
// output that are assumed to be buffered but not yet heard. It never reports a
// position before the latest seek.
func (s *speedStream) Position(latency float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := math.Max(s.anchor, s.pos-latency*SampleRate*s.speed)
	return math.Min(pos, float64(s.pcm.Frames())) / SampleRate
}

// Seek moves to seconds, clamped to 0.
func (s *speedStream) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = math.Max(0, seconds*SampleRate)
	s.anchor = s.pos
}

func (s *speedStream) SetSpeed(speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = speed
}

func (s *speedStream) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}
