// Package marker holds the identifier of the content currently shown on the
// panel.
//
// The state is kept in a fixed binary layout sized for the handful of bytes
// that survive a low-power sleep: a NUL terminated identifier buffer followed
// by a single render-validity byte. There is no version and no checksum.
package marker

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// Capacity is the longest identifier a region can hold. It fits a
	// SHA-256 digest in hex as well as any reasonable file name.
	Capacity = 64

	bufLen = Capacity + 1

	// Size is the length in bytes of an encoded region.
	Size = bufLen + 1
)

var (
	ErrTooLong = errors.New("marker: identifier exceeds capacity")
	ErrCorrupt = errors.New("marker: corrupt region")
)

// State is the persisted marker plus the render-validity flag.
//
// An empty Marker means no content was observed since the last cold boot.
// Valid is only true once something was actually painted on the panel.
type State struct {
	Marker string
	Valid  bool
}

// Empty reports whether no identifier is stored.
func (s State) Empty() bool {
	return s.Marker == ""
}

func (s State) String() string {
	m := s.Marker
	if m == "" {
		m = "none"
	}
	return fmt.Sprintf("marker{%s, valid: %t}", m, s.Valid)
}

// Fits reports whether id can be stored in a region.
func Fits(id string) bool {
	return len(id) <= Capacity && bytes.IndexByte([]byte(id), 0) < 0
}

// MarshalBinary encodes s into exactly Size bytes.
func (s State) MarshalBinary() ([]byte, error) {
	if len(s.Marker) > Capacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLong, len(s.Marker), Capacity)
	}
	if !Fits(s.Marker) {
		return nil, fmt.Errorf("marker: identifier contains NUL byte")
	}
	b := make([]byte, Size)
	copy(b, s.Marker)
	if s.Valid {
		b[bufLen] = 1
	}
	return b, nil
}

// UnmarshalBinary decodes a region produced by MarshalBinary.
func (s *State) UnmarshalBinary(b []byte) error {
	if len(b) != Size {
		return fmt.Errorf("%w: %d bytes, want %d", ErrCorrupt, len(b), Size)
	}
	n := bytes.IndexByte(b[:bufLen], 0)
	if n < 0 {
		return fmt.Errorf("%w: unterminated identifier", ErrCorrupt)
	}
	var valid bool
	switch b[bufLen] {
	case 0:
	case 1:
		valid = true
	default:
		return fmt.Errorf("%w: validity byte 0x%02x", ErrCorrupt, b[bufLen])
	}
	s.Marker = string(b[:n])
	s.Valid = valid
	return nil
}

// Store is the durable region holding a State across sleeps.
//
// Load on a region that was never written returns the zero State.
type Store interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}
