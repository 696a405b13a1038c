package docsync

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Files is the byte store the synchronizer reads and writes. Names are
// slash-separated paths relative to the project root.
type Files interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Exists(name string) (bool, error)
}

// DirFiles serves Files from a directory on disk.
type DirFiles struct {
	Root string
}

// Absolute names are used as they are.
func (d DirFiles) path(name string) string {
	name = filepath.FromSlash(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Root, name)
}

func (d DirFiles) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(d.path(name))
}

// WriteFile replaces the file, keeping its permissions when it exists.
func (d DirFiles) WriteFile(name string, data []byte) error {
	p := d.path(name)
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(p); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(p, data, mode)
}

func (d DirFiles) Exists(name string) (bool, error) {
	_, err := os.Stat(d.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
