package marker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "marker")
	f, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	s, err := f.Load()
	if err != nil {
		t.Fatalf("Load() on missing file failed: %v", err)
	}
	if !s.Empty() {
		t.Errorf("Load() on missing file = %v", s)
	}

	want := State{Marker: "img_20240101_0800.jpg", Valid: true}
	if err := f.Save(want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != Size {
		t.Errorf("file size = %d, want %d", info.Size(), Size)
	}

	got, err := f.Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Load() difference (-got +want):\n%s", diff)
	}

	if err := f.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := f.Clear(); err != nil {
		t.Errorf("second Clear() failed: %v", err)
	}
	if got, _ := f.Load(); !got.Empty() {
		t.Errorf("Load() after Clear = %v", got)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marker")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, _ := NewFileStore(path)
	if _, err := f.Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load() = %v, want ErrCorrupt", err)
	}
}

func TestNewFileStoreEmptyPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore(\"\") succeeded")
	}
}
