package audio

import (
	"context"
	"sync"
	"time"
)

// MockSink records clips instead of playing them. When Duration is set,
// Play holds for that long so tests can interrupt it.
type MockSink struct {
	Duration time.Duration
	PlayErr  error

	mu          sync.Mutex
	played      [][]byte
	interrupted int
}

// NewMockSink creates a sink that finishes instantly.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Play records audio and waits out Duration or ctx.
func (m *MockSink) Play(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	m.played = append(m.played, append([]byte(nil), audio...))
	m.mu.Unlock()

	if m.Duration > 0 {
		select {
		case <-time.After(m.Duration):
		case <-ctx.Done():
			m.mu.Lock()
			m.interrupted++
			m.mu.Unlock()
			return ctx.Err()
		}
	}
	return m.PlayErr
}

// Played returns every clip handed to Play, as strings.
func (m *MockSink) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.played))
	for i, b := range m.played {
		out[i] = string(b)
	}
	return out
}

// Interrupted returns how many clips were cut off by cancellation.
func (m *MockSink) Interrupted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}

var _ Sink = (*MockSink)(nil)
