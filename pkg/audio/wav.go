package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// WAV-related errors
var (
	// ErrWAVFileNotFound is returned when the WAV file cannot be found.
	ErrWAVFileNotFound = errors.New("WAV file not found")

	// ErrWAVInvalidFormat is returned when the WAV file has an invalid format.
	ErrWAVInvalidFormat = errors.New("invalid WAV file format")
)

// DecodeWAV decodes a WAV file (PCM, 8-bit or 16-bit) into memory, resampled to
// SampleRate.
func DecodeWAV(r io.Reader) (*PCM, error) {
	stream, err := wav.DecodeWithSampleRate(SampleRate, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWAVInvalidFormat, err)
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWAVInvalidFormat, err)
	}
	return NewPCM(data), nil
}
