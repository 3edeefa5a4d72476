package marker

import "sync"

// Memory is a Store kept in process memory. It goes through the same
// encoding as the durable backends, so capacity rules apply.
type Memory struct {
	mu     sync.Mutex
	region []byte
	saves  int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s State
	if m.region == nil {
		return s, nil
	}
	err := s.UnmarshalBinary(m.region)
	return s, err
}

func (m *Memory) Save(s State) error {
	b, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.region = b
	m.saves++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.region = nil
	m.mu.Unlock()
	return nil
}

// Region returns a copy of the encoded region, or nil if never written.
func (m *Memory) Region() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.region == nil {
		return nil
	}
	return append([]byte(nil), m.region...)
}

// Saves counts successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
