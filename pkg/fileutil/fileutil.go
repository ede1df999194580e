// Package fileutil provides case-insensitive file lookup for song folders.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrFileNotFound is returned when no directory entry matches the requested name.
var ErrFileNotFound = errors.New("file not found")

// FindFileCaseInsensitive searches dir for a file named filename, ignoring case.
// Song packs are often authored on case-insensitive file systems, so "Song.WAV"
// and "song.wav" must resolve to the same file.
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/songs/foo", "NOTES.MID")
//	// finds "notes.mid", "Notes.mid", ...
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	if name, ok := matchEntry(entries, filename); ok {
		return filepath.Join(dir, name), nil
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrFileNotFound, filename, dir)
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive over an fs.FS. The returned
// path uses forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	if name, ok := matchEntry(entries, filename); ok {
		if dir == "." || dir == "" {
			return name, nil
		}
		return dir + "/" + name, nil
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrFileNotFound, filename, dir)
}

// matchEntry returns the first non-directory entry whose name equals filename
// ignoring case.
func matchEntry(entries []fs.DirEntry, filename string) (string, bool) {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return entry.Name(), true
		}
	}
	return "", false
}
