package audio

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/zurustar/songsync/pkg/fileutil"
	"github.com/zurustar/songsync/pkg/logger"
)

// LoadSong decodes the song audio at path. MIDI files are rendered with the
// SoundFont at soundFontPath; anything else is decoded as WAV. With a nil fs the
// regular file system is used.
func LoadSong(fs fileutil.FileSystem, path, soundFontPath string, log *slog.Logger) (*PCM, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	log = logger.Component(log, "audio")

	data, err := readFile(fs, path)
	if err != nil {
		if fileutil.IsMIDI(path) {
			return nil, fmt.Errorf("%w: %s", ErrMIDIFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", ErrWAVFileNotFound, path)
	}

	var pcm *PCM
	if fileutil.IsMIDI(path) {
		soundFont, err := LoadSoundFontFS(fs, soundFontPath)
		if err != nil {
			return nil, err
		}
		pcm, err = RenderMIDI(soundFont, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	} else {
		pcm, err = DecodeWAV(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	}

	log.Info("Loaded song audio",
		"path", path,
		"file_size", humanize.Bytes(uint64(len(data))),
		"pcm_size", humanize.Bytes(uint64(pcm.Size())),
		"length", pcm.Duration(),
	)
	return pcm, nil
}

func readFile(fs fileutil.FileSystem, path string) ([]byte, error) {
	if fs == nil {
		return os.ReadFile(path)
	}
	return fs.ReadFile(path)
}
