package fileutil

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNoChart is returned when a song folder has no chart file.
var ErrNoChart = errors.New("no chart found in song folder")

var (
	// ChartNames are the chart file names looked for, in order of preference.
	ChartNames = []string{"notes.mid", "notes.midi"}
	// AudioNames are the audio file names looked for, in order of preference.
	AudioNames = []string{"song.wav", "guitar.wav", "audio.wav", "song.mid"}
	// SoundFontExt is the extension of SoundFont files.
	SoundFontExt = ".sf2"
)

// SongFiles are the files of a song folder, as paths on the FileSystem they were
// found on. Audio and SoundFont are empty when missing.
type SongFiles struct {
	Dir       string
	Chart     string
	Audio     string
	SoundFont string
}

// FindSongFiles resolves the chart, audio and SoundFont of the song folder dir.
// Only the chart is required.
func FindSongFiles(fsys FileSystem, dir string) (*SongFiles, error) {
	return findSongFiles(fsys, dir, ChartNames)
}

// FindSongFilesFor is FindSongFiles for a chart with a non-standard name.
func FindSongFilesFor(fsys FileSystem, dir, chart string) (*SongFiles, error) {
	return findSongFiles(fsys, dir, []string{chart})
}

func findSongFiles(fsys FileSystem, dir string, chartNames []string) (*SongFiles, error) {
	files := &SongFiles{Dir: dir}

	chart, err := findFirst(fsys, dir, chartNames)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoChart, dir)
	}
	files.Chart = chart

	if audio, err := findFirst(fsys, dir, AudioNames); err == nil {
		files.Audio = audio
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read song folder %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(path.Ext(entry.Name()), SoundFontExt) {
			files.SoundFont, _ = fsys.FindFile(dir, entry.Name())
			break
		}
	}

	return files, nil
}

func findFirst(fsys FileSystem, dir string, names []string) (string, error) {
	for _, name := range names {
		if found, err := fsys.FindFile(dir, name); err == nil {
			return found, nil
		}
	}
	return "", ErrFileNotFound
}

// IsMIDI reports whether name has a Standard MIDI File extension.
func IsMIDI(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".mid" || ext == ".midi"
}
