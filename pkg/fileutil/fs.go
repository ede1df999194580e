package fileutil

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem is what song discovery and audio loading read song folders
// through. Lookups of files ignore case.
type FileSystem interface {
	Open(name string) (fs.File, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	// FindFile returns the path of filename within dir as seen by this FileSystem.
	FindFile(dir, filename string) (string, error)
	BasePath() string
}

// RealFS reads the operating system's file system below basePath. Absolute names
// bypass basePath.
type RealFS struct {
	basePath string
}

// NewRealFS returns a RealFS rooted at basePath.
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) Open(name string) (fs.File, error) {
	p, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	p, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (r *RealFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(r.join(name))
}

// FindFile keeps absolute dirs absolute and relative dirs relative to basePath.
func (r *RealFS) FindFile(dir, filename string) (string, error) {
	found, err := FindFileCaseInsensitive(r.join(dir), filename)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(dir) {
		return found, nil
	}
	return filepath.Join(dir, filepath.Base(found)), nil
}

func (r *RealFS) BasePath() string { return r.basePath }

func (r *RealFS) join(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	name = strings.TrimLeft(name, `/\`)
	if r.basePath == "" {
		return name
	}
	return filepath.Join(r.basePath, name)
}

func (r *RealFS) locate(name string) (string, error) {
	p := r.join(name)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p))
}

// SubFS reads the subtree basePath of an fs.FS, such as an fstest.MapFS of song
// folders.
type SubFS struct {
	fsys     fs.FS
	basePath string
}

// NewSubFS returns a SubFS over the basePath subtree of fsys.
func NewSubFS(fsys fs.FS, basePath string) *SubFS {
	return &SubFS{fsys: fsys, basePath: basePath}
}

func (s *SubFS) Open(name string) (fs.File, error) {
	p, err := s.locate(name)
	if err != nil {
		return nil, err
	}
	return s.fsys.Open(p)
}

func (s *SubFS) ReadFile(name string) ([]byte, error) {
	p, err := s.locate(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(s.fsys, p)
}

func (s *SubFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(s.fsys, s.join(name))
}

// FindFile returns a path relative to basePath.
func (s *SubFS) FindFile(dir, filename string) (string, error) {
	found, err := FindFileCaseInsensitiveFS(s.fsys, s.join(dir), filename)
	if err != nil {
		return "", err
	}
	return path.Join(dir, path.Base(found)), nil
}

func (s *SubFS) BasePath() string { return s.basePath }

// join maps name onto the slash-separated, unrooted paths fs.FS expects.
func (s *SubFS) join(name string) string {
	name = strings.TrimLeft(strings.ReplaceAll(name, `\`, "/"), "/")
	if name == "" {
		name = "."
	}
	if s.basePath == "" {
		return path.Clean(name)
	}
	return path.Join(s.basePath, name)
}

func (s *SubFS) locate(name string) (string, error) {
	p := s.join(name)
	if f, err := s.fsys.Open(p); err == nil {
		f.Close()
		return p, nil
	}
	return FindFileCaseInsensitiveFS(s.fsys, path.Dir(p), path.Base(p))
}
