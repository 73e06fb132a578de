package event

import (
	"errors"
	"testing"

	"poolengine/internal/model"
)

type failSink struct{ err error }

func (s failSink) Append(model.PoolEvent) error { return s.err }

func TestMemoryOrderAndCopy(t *testing.T) {
	m := NewMemory()
	for _, kind := range []string{model.EventCreatePool, model.EventSwap} {
		if err := m.Append(model.PoolEvent{Kind: kind}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events := m.Events()
	if len(events) != 2 || events[0].Kind != model.EventCreatePool || events[1].Kind != model.EventSwap {
		t.Fatalf("unexpected events: %+v", events)
	}

	// Mutating the returned slice must not touch the buffer.
	events[0].Kind = "mutated"
	if m.Events()[0].Kind != model.EventCreatePool {
		t.Fatalf("Events should return a copy")
	}
}

func TestMultiFanOut(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	multi := Multi{a, b}
	if err := multi.Append(model.PoolEvent{Kind: model.EventSwap}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("both sinks should receive the event")
	}

	boom := errors.New("boom")
	failing := Multi{failSink{err: boom}, a}
	if err := failing.Append(model.PoolEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(a.Events()) != 1 {
		t.Fatalf("fan-out should stop at the first error")
	}
}
