// Package audio provides the audio devices a playback.SongRunner drives, and
// decodes song audio (WAV, or MIDI rendered through a SoundFont) into memory.
package audio

import "encoding/binary"

// SampleRate is the sample rate of all decoded audio and of the shared audio
// context.
const SampleRate = 44100

// bytesPerFrame is the size of one 16-bit stereo frame.
const bytesPerFrame = 4

// PCM is decoded audio held in memory as interleaved 16-bit little-endian stereo
// at SampleRate.
type PCM struct {
	data []byte
}

// NewPCM wraps data, dropping a trailing partial frame.
func NewPCM(data []byte) *PCM {
	return &PCM{data: data[:len(data)/bytesPerFrame*bytesPerFrame]}
}

// Frames returns the number of stereo frames.
func (p *PCM) Frames() int64 {
	return int64(len(p.data) / bytesPerFrame)
}

// Duration returns the length in seconds.
func (p *PCM) Duration() float64 {
	return float64(p.Frames()) / SampleRate
}

// Size returns the size in bytes.
func (p *PCM) Size() int {
	return len(p.data)
}

// frame returns the samples of frame i, clamped to the last frame.
func (p *PCM) frame(i int64) (left, right int16) {
	n := p.Frames()
	if n == 0 || i < 0 {
		return 0, 0
	}
	if i >= n {
		i = n - 1
	}
	off := i * bytesPerFrame
	left = int16(binary.LittleEndian.Uint16(p.data[off:]))
	right = int16(binary.LittleEndian.Uint16(p.data[off+2:]))
	return left, right
}

func putFrame(b []byte, left, right int16) {
	binary.LittleEndian.PutUint16(b, uint16(left))
	binary.LittleEndian.PutUint16(b[2:], uint16(right))
}

// clamp restricts a value to the range [min, max].
func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
