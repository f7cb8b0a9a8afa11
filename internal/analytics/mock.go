package analytics

import (
	"context"
	"sync"
)

var _ Sink = (*MockSink)(nil)

// MockSink records events synchronously for tests.
type MockSink struct {
	mu     sync.Mutex
	events []Event
}

// NewMockSink creates an empty mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

func (m *MockSink) Record(_ context.Context, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded events.
func (m *MockSink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns the number of recorded events of kind.
func (m *MockSink) Count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
