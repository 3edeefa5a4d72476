package marker

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "marker.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	got, err := s.Load()
	if err != nil || !got.Empty() {
		t.Fatalf("Load() on empty db = %v, %v", got, err)
	}

	for _, want := range []State{
		{Marker: "a.jpg"},
		{Marker: strings.Repeat("0f", 32), Valid: true},
	} {
		if err := s.Save(want); err != nil {
			t.Fatalf("Save(%v) failed: %v", want, err)
		}
		got, err := s.Load()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(got, want); diff != "" {
			t.Errorf("Load() difference (-got +want):\n%s", diff)
		}
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Load(); !got.Empty() {
		t.Errorf("Load() after Clear = %v", got)
	}
}
