package marker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath lives on tmpfs: it survives suspend but not power loss, the
// same lifetime as RTC memory on a microcontroller.
const DefaultPath = "/run/eink_frame/marker"

// FileStore keeps the region in a single file. Writes go to a temporary file
// that is synced and renamed over the old one.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("marker: empty path")
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (State, error) {
	var s State
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if err := s.UnmarshalBinary(b); err != nil {
		return State{}, fmt.Errorf("%s: %w", f.path, err)
	}
	return s, nil
}

func (f *FileStore) Save(s State) error {
	b, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
