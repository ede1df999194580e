package app

import (
	"os"
	"path/filepath"
)

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont searches for a SoundFont file in the following order:
// 1. The file given with --soundfont
// 2. A .sf2 file in the song folder
// 3. DefaultSoundFontName in each of searchDirs
//
// Parameters:
//   - explicit: Path given on the command line, returned as is even if missing
//   - songSoundFont: SoundFont found in the song folder
//   - searchDirs: Directories searched for DefaultSoundFontName
//
// Returns:
//   - string: Path of the SoundFont file, or "" if not found
func findSoundFont(explicit, songSoundFont string, searchDirs ...string) string {
	if explicit != "" {
		return explicit
	}

	if songSoundFont != "" {
		return songSoundFont
	}

	for _, dir := range searchDirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, DefaultSoundFontName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}

	return ""
}

// soundFontSearchDirs returns the current directory and the directory of the
// executable.
func soundFontSearchDirs() []string {
	dirs := []string{"."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}
