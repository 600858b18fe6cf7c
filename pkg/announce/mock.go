package announce

import (
	"context"
	"sync"
)

// Mock records spoken commands for tests.
type Mock struct {
	mu     sync.Mutex
	spoken []string
	closed bool

	// Err, when set, is returned from every Speak call.
	Err error
}

// NewMock creates a recording speaker.
func NewMock() *Mock {
	return &Mock{}
}

// Speak implements Speaker.
func (m *Mock) Speak(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.spoken = append(m.spoken, text)
	return nil
}

// Close implements Speaker.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Spoken returns a copy of everything spoken so far.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
