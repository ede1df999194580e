package audio

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/songsync/pkg/fileutil"
)

// ReadSoundFontFS reads a SoundFont file through fs, or from the regular file
// system when fs is nil.
func ReadSoundFontFS(fs fileutil.FileSystem, path string) ([]byte, error) {
	if path == "" {
		return nil, ErrNoSoundFont
	}

	if fs == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
			}
			return nil, fmt.Errorf("failed to read SoundFont file: %w", err)
		}
		return data, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
	}
	return data, nil
}

// LoadSoundFontFS reads and parses a SoundFont file.
func LoadSoundFontFS(fs fileutil.FileSystem, path string) (*meltysynth.SoundFont, error) {
	data, err := ReadSoundFontFS(fs, path)
	if err != nil {
		return nil, err
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}

	return soundFont, nil
}
