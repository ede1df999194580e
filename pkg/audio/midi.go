package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// ErrNoSoundFont is returned when MIDI audio is requested without a SoundFont.
var ErrNoSoundFont = errors.New("SoundFont file is required for MIDI playback")

// ErrSoundFontNotFound is returned when the SoundFont file cannot be found.
var ErrSoundFontNotFound = errors.New("SoundFont file not found")

// ErrMIDIFileNotFound is returned when the MIDI file cannot be found.
var ErrMIDIFileNotFound = errors.New("MIDI file not found")

// ErrMIDIInvalidFormat is returned when the MIDI file has an invalid format.
var ErrMIDIInvalidFormat = errors.New("invalid MIDI file format")

// renderBlock is the number of frames rendered per sequencer call.
const renderBlock = 1024

// releaseTail is rendered after the last MIDI event so that notes can decay.
const releaseTail = SampleRate / 2

// RenderMIDI renders a Standard MIDI File to PCM with the software synthesizer.
// The whole song is rendered up front so that the device can seek and change
// speed freely.
//
// Parameters:
//   - soundFont: The SoundFont used for synthesis
//   - r: The MIDI file
//
// Returns:
//   - *PCM: The rendered audio
//   - error: Error if the SoundFont is missing or the MIDI file is invalid
func RenderMIDI(soundFont *meltysynth.SoundFont, r io.Reader) (*PCM, error) {
	if soundFont == nil {
		return nil, ErrNoSoundFont
	}

	midi, err := meltysynth.NewMidiFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMIDIInvalidFormat, err)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	sequencer := meltysynth.NewMidiFileSequencer(synth)
	sequencer.Play(midi, false)

	frames := int64(midi.GetLength().Seconds()*SampleRate) + releaseTail
	data := make([]byte, frames*bytesPerFrame)
	left := make([]float32, renderBlock)
	right := make([]float32, renderBlock)

	for off := int64(0); off < frames; off += renderBlock {
		n := min(renderBlock, frames-off)
		sequencer.Render(left[:n], right[:n])
		for i := int64(0); i < n; i++ {
			l := int16(clamp(left[i], -1, 1) * 32767)
			r := int16(clamp(right[i], -1, 1) * 32767)
			putFrame(data[(off+i)*bytesPerFrame:], l, r)
		}
	}

	return NewPCM(data), nil
}
