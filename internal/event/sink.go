// Package event defines the sink consumed by the pool engine for its
// emitted operation records.
package event

import (
	"sync"

	"poolengine/internal/model"
)

// Sink receives one PoolEvent per successful pool operation. Sinks are
// informational: the ledger never depends on them for correctness.
type Sink interface {
	Append(ev model.PoolEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Append(model.PoolEvent) error { return nil }

// Memory buffers events in order, for tests and for batch persistence.
type Memory struct {
	mu     sync.Mutex
	events []model.PoolEvent
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ev model.PoolEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the buffered events.
func (m *Memory) Events() []model.PoolEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PoolEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Multi fans every event out to each sink in order, stopping at the first error.
type Multi []Sink

func (m Multi) Append(ev model.PoolEvent) error {
	for _, sink := range m {
		if err := sink.Append(ev); err != nil {
			return err
		}
	}
	return nil
}
