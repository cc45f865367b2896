package entropy

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ManualClock is a Clock advanced explicitly by its owner.
type ManualClock struct {
	tick atomic.Uint64
}

// NewManualClock returns a ManualClock positioned at start.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.tick.Store(start)
	return c
}

// CurrentTick implements Clock.
func (c *ManualClock) CurrentTick() uint64 {
	return c.tick.Load()
}

// Advance moves the clock forward by n ticks and returns the new tick.
func (c *ManualClock) Advance(n uint64) uint64 {
	return c.tick.Add(n)
}

// Set moves the clock to tick. Moving backwards is rejected.
func (c *ManualClock) Set(tick uint64) error {
	for {
		cur := c.tick.Load()
		if tick < cur {
			return fmt.Errorf("clock is monotonic: cannot move from %d back to %d", cur, tick)
		}
		if c.tick.CompareAndSwap(cur, tick) {
			return nil
		}
	}
}

// TickerClock derives ticks from elapsed wall time: one tick per step,
// counted from base at origin.
type TickerClock struct {
	origin time.Time
	step   time.Duration
	base   uint64
	now    func() time.Time
}

// NewTickerClock returns a TickerClock starting at base now.
func NewTickerClock(base uint64, step time.Duration) *TickerClock {
	return newTickerClock(base, step, time.Now)
}

func newTickerClock(base uint64, step time.Duration, now func() time.Time) *TickerClock {
	if step <= 0 {
		step = time.Second
	}
	return &TickerClock{origin: now(), step: step, base: base, now: now}
}

// CurrentTick implements Clock.
func (c *TickerClock) CurrentTick() uint64 {
	elapsed := c.now().Sub(c.origin)
	if elapsed < 0 {
		return c.base
	}
	return c.base + uint64(elapsed/c.step)
}

// Step returns the wall duration of one tick.
func (c *TickerClock) Step() time.Duration {
	return c.step
}
