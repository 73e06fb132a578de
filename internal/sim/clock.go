package sim

import "sync/atomic"

// StepClock is a manually advanced clock so scripted scenarios control
// elapsed time deterministically.
type StepClock struct {
	now atomic.Uint64
}

// NewStepClock starts the clock at start.
func NewStepClock(start uint64) *StepClock {
	c := &StepClock{}
	c.now.Store(start)
	return c
}

// Now returns the current scripted timestamp.
func (c *StepClock) Now() uint64 {
	return c.now.Load()
}

// Advance moves the clock forward by seconds.
func (c *StepClock) Advance(seconds uint64) {
	c.now.Add(seconds)
}
