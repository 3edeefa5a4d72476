package marker

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStateBinary(t *testing.T) {
	hash := strings.Repeat("ab", 32)
	for _, tc := range []struct {
		name  string
		state State
	}{
		{name: "zero"},
		{name: "filename", state: State{Marker: "img_20240101_0800.jpg", Valid: true}},
		{name: "hash", state: State{Marker: hash, Valid: true}},
		{name: "unconfirmed", state: State{Marker: "a.jpg"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.state.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary() failed: %v", err)
			}
			if len(b) != Size {
				t.Fatalf("len = %d, want %d", len(b), Size)
			}
			if b[len(tc.state.Marker)] != 0 {
				t.Errorf("identifier is not NUL terminated")
			}
			var got State
			if err := got.UnmarshalBinary(b); err != nil {
				t.Fatalf("UnmarshalBinary() failed: %v", err)
			}
			if diff := cmp.Diff(got, tc.state); diff != "" {
				t.Errorf("State difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestStateTooLong(t *testing.T) {
	s := State{Marker: strings.Repeat("x", Capacity+1)}
	if _, err := s.MarshalBinary(); !errors.Is(err, ErrTooLong) {
		t.Errorf("MarshalBinary() = %v, want ErrTooLong", err)
	}
	if Fits(s.Marker) {
		t.Errorf("Fits(%d chars) = true", len(s.Marker))
	}
	if !Fits(strings.Repeat("x", Capacity)) {
		t.Errorf("Fits(%d chars) = false", Capacity)
	}
}

func TestStateCorrupt(t *testing.T) {
	unterminated := make([]byte, Size)
	for i := range unterminated[:bufLen] {
		unterminated[i] = 'a'
	}
	badFlag := make([]byte, Size)
	badFlag[bufLen] = 7

	for _, tc := range []struct {
		name string
		b    []byte
	}{
		{"short", make([]byte, Size-1)},
		{"long", make([]byte, Size+1)},
		{"unterminated", unterminated},
		{"flag", badFlag},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var s State
			if err := s.UnmarshalBinary(tc.b); !errors.Is(err, ErrCorrupt) {
				t.Errorf("UnmarshalBinary() = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	s, err := m.Load()
	if err != nil || !s.Empty() || s.Valid {
		t.Fatalf("Load() on fresh region = %v, %v", s, err)
	}
	want := State{Marker: "b.jpg", Valid: true}
	if err := m.Save(want); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(State{Marker: strings.Repeat("y", 100)}); err == nil {
		t.Fatal("Save() of oversized marker succeeded")
	}
	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Load() difference (-got +want):\n%s", diff)
	}
	if m.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", m.Saves())
	}
	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	if m.Region() != nil {
		t.Errorf("Region() after Clear = %v", m.Region())
	}
}
